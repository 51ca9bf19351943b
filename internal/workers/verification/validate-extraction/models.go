// internal/workers/verification/validate-extraction/models.go
package validateextraction

import (
	"template-verifier/internal/matching"
	"template-verifier/internal/models"
)

type Input struct {
	ExtractedFieldSet *models.ExtractedFieldSet `json:"extractedFieldSet,omitempty"`
	ImagePath         string                    `json:"imagePath,omitempty"`
}

// Output returns the field set that was assessed so a following
// match-document task can reuse it instead of extracting again.
type Output struct {
	ExtractionValid   bool                     `json:"extractionValid"`
	Assessment        matching.Assessment      `json:"assessment"`
	ExtractedFieldSet models.ExtractedFieldSet `json:"extractedFieldSet"`
}
