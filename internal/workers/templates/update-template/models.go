// internal/workers/templates/update-template/models.go
package updatetemplate

import (
	"template-verifier/internal/models"
	"template-verifier/internal/templates"
)

// Input carries the template id plus the attributes to replace. Absent
// attributes are left as stored.
type Input struct {
	TemplateID string `json:"templateId"`
	templates.Update
}

type Output struct {
	Template *models.TemplateRecord `json:"template"`
}
