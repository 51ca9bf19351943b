// internal/search/query.go
package search

import (
	"strings"
	"time"

	"template-verifier/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Query is a free-text template search with optional label filters.
type Query struct {
	Text    string `json:"text,omitempty"`
	Board   string `json:"board,omitempty"`
	Program string `json:"program,omitempty"`
	From    int    `json:"from,omitempty"`
	Size    int    `json:"size,omitempty"`
}

// Normalize trims the query and clamps pagination.
func (q Query) Normalize() Query {
	q.Text = strings.TrimSpace(q.Text)
	q.Board = strings.TrimSpace(q.Board)
	q.Program = strings.TrimSpace(q.Program)
	if q.From < 0 {
		q.From = 0
	}
	if q.Size <= 0 {
		q.Size = defaultPageSize
	}
	if q.Size > maxPageSize {
		q.Size = maxPageSize
	}
	return q
}

type Hit struct {
	TemplateID  string    `json:"templateId"`
	Board       string    `json:"board"`
	Program     string    `json:"program"`
	Description string    `json:"description,omitempty"`
	Score       float64   `json:"score"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Result struct {
	Hits  []Hit `json:"hits"`
	Total int   `json:"total"`
	Took  int   `json:"took"`
}

// document is the indexed projection of a TemplateRecord.
type document struct {
	TemplateID    string    `json:"templateId"`
	Board         string    `json:"board"`
	Program       string    `json:"program"`
	SampleBoard   string    `json:"sampleBoard,omitempty"`
	SampleProgram string    `json:"sampleProgram,omitempty"`
	Description   string    `json:"description,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Subjects      []string  `json:"subjects,omitempty"`
	RawText       string    `json:"rawText,omitempty"`
	PresentFields []string  `json:"presentFields,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func newDocument(rec models.TemplateRecord) document {
	doc := document{
		TemplateID:    rec.ID,
		Board:         rec.Board,
		Program:       rec.Program,
		SampleBoard:   rec.ExtractedFieldSet.Board,
		SampleProgram: rec.ExtractedFieldSet.Program,
		Description:   rec.Metadata.Description,
		Notes:         rec.Metadata.Notes,
		RawText:       rec.ExtractedFieldSet.RawText,
		PresentFields: rec.ExtractedFieldSet.PresentFields(),
		CreatedAt:     rec.CreatedAt,
	}
	for _, s := range rec.ExtractedFieldSet.Subjects {
		doc.Subjects = append(doc.Subjects, s.Name)
	}
	return doc
}

var indexMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"templateId":    map[string]interface{}{"type": "keyword"},
			"board":         map[string]interface{}{"type": "text"},
			"program":       map[string]interface{}{"type": "text"},
			"sampleBoard":   map[string]interface{}{"type": "text"},
			"sampleProgram": map[string]interface{}{"type": "text"},
			"description":   map[string]interface{}{"type": "text"},
			"notes":         map[string]interface{}{"type": "text"},
			"subjects":      map[string]interface{}{"type": "text"},
			"rawText":       map[string]interface{}{"type": "text"},
			"presentFields": map[string]interface{}{"type": "keyword"},
			"createdAt":     map[string]interface{}{"type": "date"},
		},
	},
}

// buildSearchQuery turns q into an Elasticsearch bool query. Label filters
// must match in either the record label or the sample label.
func buildSearchQuery(q Query) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     q.Text,
				"fields":    []string{"board^3", "program^3", "description^2", "notes", "subjects", "rawText"},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		})
	}
	if q.Board != "" {
		filter = append(filter, labelFilter(q.Board, "board", "sampleBoard"))
	}
	if q.Program != "" {
		filter = append(filter, labelFilter(q.Program, "program", "sampleProgram"))
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	boolQuery := map[string]interface{}{"must": must}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			"_score",
			map[string]interface{}{"createdAt": map[string]interface{}{"order": "asc"}},
		},
	}
}

func labelFilter(value string, fields ...string) map[string]interface{} {
	should := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		should = append(should, map[string]interface{}{
			"match": map[string]interface{}{
				f: map[string]interface{}{"query": value, "operator": "and"},
			},
		})
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{"should": should, "minimum_should_match": 1},
	}
}
