// internal/matching/comparators.go
package matching

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"template-verifier/internal/models"

	"golang.org/x/text/unicode/norm"
)

// minTokenLength is the shortest document token that counts towards label
// overlap. Template tokens of any length can match.
const minTokenLength = 3

// Every comparator returns 0 when either side is absent and a value in [0,1]
// otherwise. They only look at the shape of the values passed in.

// LabelSimilarity compares board or program labels.
func LabelSimilarity(doc, tmpl string) float64 {
	a, b := normalizeLabel(doc), normalizeLabel(tmpl)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}

	docTokens := strings.Fields(a)
	tmplTokens := strings.Fields(b)
	matched := 0
	for _, dt := range docTokens {
		if utf8.RuneCountInString(dt) < minTokenLength {
			continue
		}
		for _, tt := range tmplTokens {
			if strings.Contains(tt, dt) || strings.Contains(dt, tt) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(docTokens))
}

// NameFormatSimilarity compares the shape of two names (word count and
// capitalisation), never their content.
func NameFormatSimilarity(doc, tmpl string) float64 {
	wordsA, wordsB := len(strings.Fields(doc)), len(strings.Fields(tmpl))
	if wordsA == 0 || wordsB == 0 {
		return 0
	}
	wordScore := 1 - math.Abs(float64(wordsA-wordsB))/float64(maxInt(wordsA, wordsB))

	upperA, upperB := countUpper(doc), countUpper(tmpl)
	upperScore := 1 - math.Abs(float64(upperA-upperB))/float64(maxInt(upperA, upperB, 1))

	return (wordScore + upperScore) / 2
}

// IdentifierFormatSimilarity compares seat or roll numbers by length and by
// their letter/digit mask.
func IdentifierFormatSimilarity(doc, tmpl string) float64 {
	a := []rune(strings.TrimSpace(doc))
	b := []rune(strings.TrimSpace(tmpl))
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	lengthScore := 1 - math.Abs(float64(len(a)-len(b)))/float64(maxInt(len(a), len(b)))

	maskA, maskB := formatMask(a), formatMask(b)
	shorter := minInt(len(maskA), len(maskB))
	same := 0
	for i := 0; i < shorter; i++ {
		if maskA[i] == maskB[i] {
			same++
		}
	}
	patternScore := float64(same) / float64(shorter)

	return (lengthScore + patternScore) / 2
}

// ExamYearSimilarity is 1 when both years are written with the same number
// of characters ("2023" vs "2019"), 0 otherwise.
func ExamYearSimilarity(doc, tmpl string) float64 {
	a := utf8.RuneCountInString(strings.TrimSpace(doc))
	b := utf8.RuneCountInString(strings.TrimSpace(tmpl))
	if a == 0 || b == 0 {
		return 0
	}
	if a == b {
		return 1
	}
	return 0
}

// SubjectStructureSimilarity compares subject tables by row count and by the
// attribute names of their first rows. An empty table scores 0.
func SubjectStructureSimilarity(doc, tmpl []models.Subject) float64 {
	if len(doc) == 0 || len(tmpl) == 0 {
		return 0
	}
	countScore := 1 - math.Abs(float64(len(doc)-len(tmpl)))/float64(maxInt(len(doc), len(tmpl), 1))

	keysA, keysB := doc[0].Fields, tmpl[0].Fields
	structureScore := 0.0
	switch {
	case len(keysA) == 0 && len(keysB) == 0:
		structureScore = 1
	case len(keysA) > 0:
		matched := 0
		for _, ka := range keysA {
			ka = strings.ToLower(ka)
			for _, kb := range keysB {
				kb = strings.ToLower(kb)
				if strings.Contains(kb, ka) || strings.Contains(ka, kb) {
					matched++
					break
				}
			}
		}
		structureScore = float64(matched) / float64(len(keysA))
	}

	return (countScore + structureScore) / 2
}

func normalizeLabel(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

func countUpper(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsUpper(r) {
			n++
		}
	}
	return n
}

func formatMask(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		switch {
		case unicode.IsLetter(r):
			out[i] = 'A'
		case unicode.IsDigit(r):
			out[i] = 'N'
		default:
			out[i] = r
		}
	}
	return out
}

func maxInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
