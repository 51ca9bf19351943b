// internal/matching/assess.go
package matching

import (
	"strings"

	"template-verifier/internal/models"
)

// AssessmentRules drive the extraction quality check.
type AssessmentRules struct {
	ProgramKeywords []string `mapstructure:"program_keywords"`
	// Documents whose board and program both hit these lists only need a
	// student name and an identifier to pass.
	LenientBoards   []string `mapstructure:"lenient_boards"`
	LenientPrograms []string `mapstructure:"lenient_programs"`
}

func DefaultAssessmentRules() AssessmentRules {
	return AssessmentRules{
		ProgramKeywords: []string{"SSC", "HSC", "SECONDARY"},
		LenientBoards:   []string{"MAHARASHTRA", "MSBSHSE"},
		LenientPrograms: []string{"SSC", "SECONDARY"},
	}
}

type Assessment struct {
	Valid              bool     `json:"valid"`
	MatchedFields      []string `json:"matchedFields"`
	MissingFields      []string `json:"missingFields"`
	Problems           []string `json:"problems,omitempty"`
	LenientRuleApplied bool     `json:"lenientRuleApplied"`
	Coverage           float64  `json:"coverage"`
}

const assessedFieldCount = 6

// AssessExtraction reports which fields of an extraction look usable. A
// document is valid when more checks pass than fail, or when the lenient
// board rule applies.
func AssessExtraction(fs models.ExtractedFieldSet, rules AssessmentRules) Assessment {
	var a Assessment
	mark := func(field string, ok bool) {
		if ok {
			a.MatchedFields = append(a.MatchedFields, field)
		} else {
			a.MissingFields = append(a.MissingFields, field)
		}
	}

	name := strings.TrimSpace(fs.StudentName)
	mark(models.FieldStudentName, len(strings.Fields(name)) >= 2)
	if name == "" {
		a.Problems = append(a.Problems, "Student name missing")
	}

	mark(models.FieldBoard, strings.TrimSpace(fs.Board) != "")

	program := strings.ToUpper(strings.TrimSpace(fs.Program))
	switch {
	case program == "":
		mark(models.FieldProgram, false)
		a.Problems = append(a.Problems, "Program type missing")
	case containsAny(program, rules.ProgramKeywords):
		mark(models.FieldProgram, true)
	default:
		mark(models.FieldProgram, false)
		a.Problems = append(a.Problems, `Program type "`+fs.Program+`" not recognized`)
	}

	hasIdentifier := fs.Identifier() != ""
	mark(PairIdentifier, hasIdentifier)
	if !hasIdentifier {
		a.Problems = append(a.Problems, "Both seat number and roll number are missing")
	}

	mark(models.FieldExamYear, strings.TrimSpace(fs.ExamYear) != "")
	mark(models.FieldSubjects, len(fs.Subjects) > 0)

	board := strings.ToUpper(fs.Board)
	if containsAny(board, rules.LenientBoards) && containsAny(program, rules.LenientPrograms) && name != "" && hasIdentifier {
		a.Valid = true
		a.LenientRuleApplied = true
		a.MissingFields = without(a.MissingFields, models.FieldStudentName, models.FieldBoard, models.FieldProgram, PairIdentifier)
	} else {
		a.Valid = len(a.MatchedFields) > len(a.MissingFields)
	}
	a.Coverage = float64(len(a.MatchedFields)) / assessedFieldCount
	return a
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, strings.ToUpper(n)) {
			return true
		}
	}
	return false
}

func without(in []string, drop ...string) []string {
	out := in[:0:0]
	for _, s := range in {
		keep := true
		for _, d := range drop {
			if s == d {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, s)
		}
	}
	return out
}
