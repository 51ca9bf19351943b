// internal/extraction/mapping.go
package extraction

import (
	"fmt"
	"sort"
	"strings"

	"template-verifier/internal/models"

	"github.com/jmespath/go-jmespath"
)

// FieldMapping maps canonical field names to JMESPath expressions evaluated
// against the OCR service response.
type FieldMapping map[string]string

// DefaultFieldMapping accepts the common spellings returned by OCR backends.
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		models.FieldStudentName: "studentName || student_name || candidateName",
		models.FieldBoard:       "board || boardName || board_name",
		models.FieldProgram:     "program || programType || program_type",
		models.FieldSeatNumber:  "seatNumber || seat_number || seatNo",
		models.FieldRollNumber:  "rollNumber || roll_number || rollNo",
		models.FieldExamYear:    "examYear || exam_year || year",
		models.FieldSubjects:    "subjects || subjectMarks",
		models.FieldRawText:     "rawText || raw_text || text",
	}
}

// knownFields is keyed by lowercased name; config loaders lowercase map keys.
var knownFields = func() map[string]string {
	out := make(map[string]string)
	for _, f := range []string{
		models.FieldStudentName, models.FieldBoard, models.FieldProgram, models.FieldSeatNumber,
		models.FieldRollNumber, models.FieldExamYear, models.FieldSubjects, models.FieldRawText,
	} {
		out[strings.ToLower(f)] = f
	}
	return out
}()

type compiledField struct {
	field string
	expr  *jmespath.JMESPath
}

// Mapper applies a compiled FieldMapping. It is immutable and safe for
// concurrent use.
type Mapper struct {
	fields []compiledField
}

// NewMapper compiles every expression up front so a bad mapping fails at
// startup rather than on the first job. Fields missing from mapping keep
// their default expression.
func NewMapper(mapping FieldMapping) (*Mapper, error) {
	merged := DefaultFieldMapping()
	for key, expr := range mapping {
		field, ok := knownFields[strings.ToLower(key)]
		if !ok {
			return nil, fmt.Errorf("unknown extracted field %q", key)
		}
		merged[field] = expr
	}

	names := make([]string, 0, len(merged))
	for field := range merged {
		names = append(names, field)
	}
	sort.Strings(names)

	m := &Mapper{}
	for _, field := range names {
		if merged[field] == "" {
			continue
		}
		compiled, err := jmespath.Compile(merged[field])
		if err != nil {
			return nil, fmt.Errorf("invalid expression %q for %s: %w", merged[field], field, err)
		}
		m.fields = append(m.fields, compiledField{field: field, expr: compiled})
	}
	return m, nil
}

// Apply evaluates the mapping against a decoded JSON payload. Fields whose
// expression yields nothing or fails at runtime are left absent.
func (m *Mapper) Apply(payload interface{}) models.ExtractedFieldSet {
	b := models.NewFieldSetBuilder()
	for _, f := range m.fields {
		v, err := f.expr.Search(payload)
		if err != nil || v == nil {
			continue
		}
		b.Set(f.field, v)
	}
	return b.Build()
}
