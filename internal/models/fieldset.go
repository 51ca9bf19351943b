// internal/models/fieldset.go
package models

import (
	"encoding/json"
	"strings"
)

// Field names of an ExtractedFieldSet, as they appear on the wire.
const (
	FieldStudentName = "studentName"
	FieldBoard       = "board"
	FieldProgram     = "program"
	FieldSeatNumber  = "seatNumber"
	FieldRollNumber  = "rollNumber"
	FieldExamYear    = "examYear"
	FieldSubjects    = "subjects"
	FieldRawText     = "rawText"
)

// Subject is one canonical subject row of a marksheet.
//
// Fields keeps the attribute names the row carried before normalization
// (lowercased, sorted). Structure comparison works on those names, so two
// sources that spell their columns differently still look different.
type Subject struct {
	Name          string   `json:"name"`
	ObtainedMarks string   `json:"obtainedMarks,omitempty"`
	MaxMarks      string   `json:"maxMarks,omitempty"`
	Fields        []string `json:"fields,omitempty"`
}

// ExtractedFieldSet is the normalized output of extraction. Every field is
// optional; a blank string means the extractor did not find the field.
type ExtractedFieldSet struct {
	StudentName string    `json:"studentName,omitempty"`
	Board       string    `json:"board,omitempty"`
	Program     string    `json:"program,omitempty"`
	SeatNumber  string    `json:"seatNumber,omitempty"`
	RollNumber  string    `json:"rollNumber,omitempty"`
	ExamYear    string    `json:"examYear,omitempty"`
	Subjects    []Subject `json:"subjects,omitempty"`
	RawText     string    `json:"rawText,omitempty"`
}

// Identifier returns the seat number, falling back to the roll number.
func (f ExtractedFieldSet) Identifier() string {
	if s := strings.TrimSpace(f.SeatNumber); s != "" {
		return s
	}
	return strings.TrimSpace(f.RollNumber)
}

// PresentFields lists the wire names of the populated fields in a fixed order.
func (f ExtractedFieldSet) PresentFields() []string {
	var out []string
	add := func(name, value string) {
		if strings.TrimSpace(value) != "" {
			out = append(out, name)
		}
	}
	add(FieldStudentName, f.StudentName)
	add(FieldBoard, f.Board)
	add(FieldProgram, f.Program)
	add(FieldSeatNumber, f.SeatNumber)
	add(FieldRollNumber, f.RollNumber)
	add(FieldExamYear, f.ExamYear)
	if len(f.Subjects) > 0 {
		out = append(out, FieldSubjects)
	}
	add(FieldRawText, f.RawText)
	return out
}

// IsEmpty reports whether extraction produced nothing usable.
func (f ExtractedFieldSet) IsEmpty() bool {
	return len(f.PresentFields()) == 0
}

// Clone returns a deep copy so callers can hand the value out without sharing
// the subject slice.
func (f ExtractedFieldSet) Clone() ExtractedFieldSet {
	out := f
	if f.Subjects != nil {
		out.Subjects = make([]Subject, len(f.Subjects))
		for i, s := range f.Subjects {
			s.Fields = append([]string(nil), s.Fields...)
			out.Subjects[i] = s
		}
	}
	return out
}

// UnmarshalJSON accepts subjects either as an array of row objects or as a
// name -> marks mapping, and funnels every shape through the builder.
func (f *ExtractedFieldSet) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FieldSetFromMap(raw)
	return nil
}
