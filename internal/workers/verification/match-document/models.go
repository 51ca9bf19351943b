// internal/workers/verification/match-document/models.go
package matchdocument

import "template-verifier/internal/models"

type Input struct {
	ExtractedFieldSet *models.ExtractedFieldSet `json:"extractedFieldSet,omitempty"`
	ImagePath         string                    `json:"imagePath,omitempty"`
	Board             string                    `json:"board,omitempty"`
	Program           string                    `json:"program,omitempty"`
}

// Output flattens the headline of the match so gateways can branch on it
// without reaching into matchResult.
type Output struct {
	Matched       bool                `json:"matched"`
	MatchStatus   models.MatchStatus  `json:"matchStatus"`
	MatchScore    float64             `json:"matchScore"`
	TemplateID    string              `json:"templateId,omitempty"`
	LowConfidence bool                `json:"lowConfidence"`
	MatchMessage  string              `json:"matchMessage"`
	MatchResult   *models.MatchResult `json:"matchResult"`
}
