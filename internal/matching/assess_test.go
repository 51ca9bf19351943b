// internal/matching/assess_test.go
package matching

import (
	"testing"

	"template-verifier/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAssessExtraction(t *testing.T) {
	rules := DefaultAssessmentRules()

	tests := []struct {
		name        string
		fs          models.ExtractedFieldSet
		valid       bool
		lenient     bool
		missing     []string
		problemHint string
	}{
		{
			name:    "complete marksheet",
			fs:      fullFieldSet(),
			valid:   true,
			missing: nil,
		},
		{
			name: "lenient state board rule",
			fs: models.ExtractedFieldSet{
				StudentName: "RAHUL",
				Board:       "Maharashtra State Board",
				Program:     "SSC",
				RollNumber:  "1234",
			},
			valid:   true,
			lenient: true,
			missing: []string{models.FieldExamYear, models.FieldSubjects},
		},
		{
			name: "unknown program",
			fs: models.ExtractedFieldSet{
				StudentName: "Jane Doe",
				Board:       "CBSE",
				Program:     "Diploma",
			},
			valid:       false,
			missing:     []string{models.FieldProgram, PairIdentifier, models.FieldExamYear, models.FieldSubjects},
			problemHint: `Program type "Diploma" not recognized`,
		},
		{
			name:        "empty extraction",
			fs:          models.ExtractedFieldSet{},
			valid:       false,
			missing:     []string{models.FieldStudentName, models.FieldBoard, models.FieldProgram, PairIdentifier, models.FieldExamYear, models.FieldSubjects},
			problemHint: "Both seat number and roll number are missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AssessExtraction(tt.fs, rules)
			assert.Equal(t, tt.valid, a.Valid)
			assert.Equal(t, tt.lenient, a.LenientRuleApplied)
			assert.Equal(t, tt.missing, a.MissingFields)
			assert.InDelta(t, float64(len(a.MatchedFields))/6, a.Coverage, 1e-9)
			if tt.problemHint != "" {
				assert.Contains(t, a.Problems, tt.problemHint)
			}
		})
	}
}
