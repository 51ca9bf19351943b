// internal/workers/templates/list-templates/models.go
package listtemplates

import "template-verifier/internal/models"

// Input filters by case-insensitive substring of the labels. Both empty
// lists everything.
type Input struct {
	Board   string `json:"board,omitempty"`
	Program string `json:"program,omitempty"`
}

type Output struct {
	Templates []models.TemplateSummary `json:"templates"`
	Count     int                      `json:"count"`
	Truncated bool                     `json:"truncated"`
}
