// internal/models/fieldset_builder.go
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// fieldAliases is the one place where extractor spellings are mapped onto the
// canonical field names. The first alias present in a source map wins.
var fieldAliases = map[string][]string{
	FieldStudentName: {"studentName", "student_name", "candidateName", "candidate_name"},
	FieldBoard:       {"board", "boardName", "board_name"},
	FieldProgram:     {"program", "programType", "program_type", "programme"},
	FieldSeatNumber:  {"seatNumber", "seat_number", "seatNo", "seat_no"},
	FieldRollNumber:  {"rollNumber", "roll_number", "rollNo", "roll_no"},
	FieldExamYear:    {"examYear", "exam_year", "year"},
	FieldSubjects:    {"subjects", "subjectMarks", "subject_marks"},
	FieldRawText:     {"rawText", "raw_text", "text"},
}

var (
	subjectNameKeys     = []string{"name", "subject", "subjectname", "subject_name", "title"}
	subjectObtainedKeys = []string{"obtainedmarks", "obtained_marks", "marks", "score", "obtained"}
	subjectMaxKeys      = []string{"maxmarks", "max_marks", "outof", "out_of", "totalmarks", "max"}
)

// FieldSetBuilder assembles a canonical ExtractedFieldSet. Values are trimmed
// and subjects are normalized once here, so comparators never see raw shapes.
type FieldSetBuilder struct {
	fs ExtractedFieldSet
}

func NewFieldSetBuilder() *FieldSetBuilder {
	return &FieldSetBuilder{}
}

func (b *FieldSetBuilder) StudentName(v string) *FieldSetBuilder {
	b.fs.StudentName = strings.TrimSpace(v)
	return b
}

func (b *FieldSetBuilder) Board(v string) *FieldSetBuilder {
	b.fs.Board = strings.TrimSpace(v)
	return b
}

func (b *FieldSetBuilder) Program(v string) *FieldSetBuilder {
	b.fs.Program = strings.TrimSpace(v)
	return b
}

func (b *FieldSetBuilder) SeatNumber(v string) *FieldSetBuilder {
	b.fs.SeatNumber = strings.TrimSpace(v)
	return b
}

func (b *FieldSetBuilder) RollNumber(v string) *FieldSetBuilder {
	b.fs.RollNumber = strings.TrimSpace(v)
	return b
}

func (b *FieldSetBuilder) ExamYear(v string) *FieldSetBuilder {
	b.fs.ExamYear = strings.TrimSpace(v)
	return b
}

func (b *FieldSetBuilder) RawText(v string) *FieldSetBuilder {
	b.fs.RawText = strings.TrimSpace(v)
	return b
}

// Subjects accepts an array of rows, a name -> marks mapping, or already
// canonical []Subject values.
func (b *FieldSetBuilder) Subjects(v interface{}) *FieldSetBuilder {
	b.fs.Subjects = NormalizeSubjects(v)
	return b
}

// Set assigns a field by its canonical wire name. Unknown names are ignored.
func (b *FieldSetBuilder) Set(field string, v interface{}) *FieldSetBuilder {
	if field == FieldSubjects {
		return b.Subjects(v)
	}
	s, ok := scalarString(v)
	if !ok {
		return b
	}
	switch field {
	case FieldStudentName:
		b.StudentName(s)
	case FieldBoard:
		b.Board(s)
	case FieldProgram:
		b.Program(s)
	case FieldSeatNumber:
		b.SeatNumber(s)
	case FieldRollNumber:
		b.RollNumber(s)
	case FieldExamYear:
		b.ExamYear(s)
	case FieldRawText:
		b.RawText(s)
	}
	return b
}

func (b *FieldSetBuilder) Build() ExtractedFieldSet {
	return b.fs.Clone()
}

// Normalize passes a field set built by hand through the builder, so its
// values are trimmed and every subject row carries its attribute names.
func (f ExtractedFieldSet) Normalize() ExtractedFieldSet {
	return NewFieldSetBuilder().
		StudentName(f.StudentName).
		Board(f.Board).
		Program(f.Program).
		SeatNumber(f.SeatNumber).
		RollNumber(f.RollNumber).
		ExamYear(f.ExamYear).
		Subjects(f.Subjects).
		RawText(f.RawText).
		Build()
}

// FieldSetFromMap maps a loosely shaped extractor payload onto the canonical
// field set. Missing or oddly typed values are dropped, never rejected.
func FieldSetFromMap(raw map[string]interface{}) ExtractedFieldSet {
	b := NewFieldSetBuilder()
	for field, aliases := range fieldAliases {
		for _, alias := range aliases {
			v, ok := raw[alias]
			if !ok || v == nil {
				continue
			}
			b.Set(field, v)
			break
		}
	}
	return b.Build()
}

// NormalizeSubjects converts any supported subject representation into an
// ordered []Subject. Mappings are ordered by subject name.
func NormalizeSubjects(v interface{}) []Subject {
	switch t := v.(type) {
	case nil:
		return nil
	case []Subject:
		if len(t) == 0 {
			return nil
		}
		out := make([]Subject, 0, len(t))
		for _, s := range t {
			out = append(out, canonicalSubject(s))
		}
		return out
	case []interface{}:
		out := make([]Subject, 0, len(t))
		for _, item := range t {
			switch row := item.(type) {
			case map[string]interface{}:
				out = append(out, subjectFromRow(row, ""))
			case string:
				if name := strings.TrimSpace(row); name != "" {
					out = append(out, Subject{Name: name, Fields: []string{"name"}})
				}
			}
		}
		return out
	case []map[string]interface{}:
		out := make([]Subject, 0, len(t))
		for _, row := range t {
			out = append(out, subjectFromRow(row, ""))
		}
		return out
	case map[string]interface{}:
		names := make([]string, 0, len(t))
		for name := range t {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]Subject, 0, len(names))
		for _, name := range names {
			switch marks := t[name].(type) {
			case map[string]interface{}:
				out = append(out, subjectFromRow(marks, name))
			default:
				s := Subject{Name: strings.TrimSpace(name), Fields: []string{"marks", "name"}}
				s.ObtainedMarks, _ = scalarString(marks)
				out = append(out, s)
			}
		}
		return out
	case map[string]string:
		generic := make(map[string]interface{}, len(t))
		for k, val := range t {
			generic[k] = val
		}
		return NormalizeSubjects(generic)
	}
	return nil
}

func subjectFromRow(row map[string]interface{}, defaultName string) Subject {
	lowered := make(map[string]interface{}, len(row))
	var fields []string
	var declared []string
	for k, v := range row {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "fields" {
			declared = stringList(v)
			continue
		}
		lowered[key] = v
		fields = append(fields, key)
	}
	sort.Strings(fields)

	s := Subject{
		Name:          firstScalar(lowered, subjectNameKeys),
		ObtainedMarks: firstScalar(lowered, subjectObtainedKeys),
		MaxMarks:      firstScalar(lowered, subjectMaxKeys),
		Fields:        fields,
	}
	if s.Name == "" {
		s.Name = strings.TrimSpace(defaultName)
	}
	if len(declared) > 0 {
		s.Fields = declared
	}
	return s
}

func canonicalSubject(s Subject) Subject {
	s.Name = strings.TrimSpace(s.Name)
	if len(s.Fields) > 0 {
		s.Fields = append([]string(nil), s.Fields...)
		return s
	}
	fields := []string{"name"}
	if s.ObtainedMarks != "" {
		fields = append(fields, "obtainedmarks")
	}
	if s.MaxMarks != "" {
		fields = append(fields, "maxmarks")
	}
	sort.Strings(fields)
	s.Fields = fields
	return s
}

func firstScalar(row map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			if s, ok := scalarString(v); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func stringList(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int, int32, int64:
		return fmt.Sprintf("%d", t), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}
