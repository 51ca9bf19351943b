// internal/verification/requests.go
package verification

import (
	"template-verifier/internal/matching"
	"template-verifier/internal/models"
)

// RegisterRequest registers a reference template either from a known field
// set or by extracting one from ImagePath.
type RegisterRequest struct {
	Board    string                    `json:"board"`
	Program  string                    `json:"program"`
	FieldSet *models.ExtractedFieldSet `json:"extractedFieldSet,omitempty"`
	// ImagePath is extracted when FieldSet is nil, and copied into the asset
	// store when StoreImage is set.
	ImagePath  string                  `json:"imagePath,omitempty"`
	StoreImage bool                    `json:"storeImage,omitempty"`
	Metadata   models.TemplateMetadata `json:"metadata"`
}

// MatchRequest names the document to verify. Board and Program optionally
// restrict the candidate templates before scoring.
type MatchRequest struct {
	FieldSet  *models.ExtractedFieldSet `json:"extractedFieldSet,omitempty"`
	ImagePath string                    `json:"imagePath,omitempty"`
	Board     string                    `json:"board,omitempty"`
	Program   string                    `json:"program,omitempty"`
}

type AssessRequest struct {
	FieldSet  *models.ExtractedFieldSet `json:"extractedFieldSet,omitempty"`
	ImagePath string                    `json:"imagePath,omitempty"`
}

// AssessResult pairs the quality report with the field set it was run on.
type AssessResult struct {
	matching.Assessment
	FieldSet models.ExtractedFieldSet `json:"extractedFieldSet"`
}
