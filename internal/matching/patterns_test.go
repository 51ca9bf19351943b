// internal/matching/patterns_test.go
package matching

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPatternSet(t *testing.T) {
	ps := DefaultPatternSet()

	assert.Equal(t, DefaultPatternSetVersion, ps.Version())
	assert.Equal(t, defaultAnchorPhrases, ps.Labels())
}

func TestPatternSet_Present(t *testing.T) {
	ps := DefaultPatternSet()

	text := "Student   Name: RAHUL\nSeat\tNo B123456\ntotal marks 450"
	assert.Equal(t, []string{"STUDENT NAME", "SEAT NO", "TOTAL MARKS"}, ps.Present(text))
	assert.Empty(t, ps.Present("nothing to see"))
}

func TestPatternSet_RawTextSimilarity(t *testing.T) {
	ps, err := NewPatternSet("test", "STUDENT NAME", "SEAT NO", "RESULT", "GRADE")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, ps.RawTextSimilarity("STUDENT NAME x SEAT NO", "student name y seat no"), 1e-9)
	// GRADE and RESULT agree by being absent on both sides.
	assert.InDelta(t, 0.75, ps.RawTextSimilarity("STUDENT NAME SEAT NO", "STUDENT NAME"), 1e-9)
	assert.Zero(t, ps.RawTextSimilarity("", "STUDENT NAME"))
	assert.Zero(t, PatternSet{}.RawTextSimilarity("a", "b"))
}

func TestPatternSet_ExtendIsCopyOnWrite(t *testing.T) {
	base := DefaultPatternSet()

	extended, err := base.Extend("v2", "division", "Board of Secondary", "  board   of secondary ")
	require.NoError(t, err)

	assert.Equal(t, "v2", extended.Version())
	assert.Equal(t, base.Len()+1, extended.Len())
	assert.Contains(t, extended.Labels(), "BOARD OF SECONDARY")
	assert.Equal(t, DefaultPatternSetVersion, base.Version())
	assert.NotContains(t, base.Labels(), "BOARD OF SECONDARY")
}

func TestPatternSet_WithAnchor(t *testing.T) {
	ps, err := DefaultPatternSet().WithAnchor("v2", "MARKS LINE", DerivePattern("Total Marks 450"))
	require.NoError(t, err)
	assert.Contains(t, ps.Present("Total Marks 512"), "MARKS LINE")

	_, err = DefaultPatternSet().WithAnchor("v2", "BROKEN", "([")
	assert.Error(t, err)
}

func TestDerivePattern(t *testing.T) {
	tests := []struct {
		example  string
		expected string
	}{
		{"Total Marks 450", `[A-Z]+[a-z]+\s+[A-Z]+[a-z]+\s+\d+`},
		{"SEAT NO: B123456", `[A-Z]+\s+[A-Z]+:\s+[A-Z]+\d+`},
		{"12.5%", `\d+\.\d+%`},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.example, func(t *testing.T) {
			pattern := DerivePattern(tt.example)
			assert.Equal(t, tt.expected, pattern)
			assert.Regexp(t, regexp.MustCompile("^"+pattern+"$"), tt.example)
		})
	}
}
