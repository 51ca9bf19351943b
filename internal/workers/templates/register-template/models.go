// internal/workers/templates/register-template/models.go
package registertemplate

import "template-verifier/internal/models"

type Input struct {
	Board             string                    `json:"board"`
	Program           string                    `json:"program"`
	ExtractedFieldSet *models.ExtractedFieldSet `json:"extractedFieldSet,omitempty"`
	ImagePath         string                    `json:"imagePath,omitempty"`
	StoreImage        bool                      `json:"storeImage,omitempty"`
	Metadata          models.TemplateMetadata   `json:"metadata"`
}

type Output struct {
	TemplateID string                 `json:"templateId"`
	Template   models.TemplateSummary `json:"template"`
}
