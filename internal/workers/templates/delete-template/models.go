// internal/workers/templates/delete-template/models.go
package deletetemplate

type Input struct {
	TemplateID string `json:"templateId"`
}

type Output struct {
	TemplateID string `json:"templateId"`
	Deleted    bool   `json:"deleted"`
}
