// internal/workers/templates/get-template/models.go
package gettemplate

import "template-verifier/internal/models"

type Input struct {
	TemplateID string `json:"templateId"`
}

type Output struct {
	Found    bool                   `json:"found"`
	Template *models.TemplateRecord `json:"template"`
}
