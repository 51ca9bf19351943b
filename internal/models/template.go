// internal/models/template.go
package models

import (
	"fmt"
	"time"
)

type TemplateMetadata struct {
	Description string `json:"description,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// TemplateRecord is a trusted reference sample. The repository owns its
// lifetime; the asset behind AssetHandle belongs to the record and goes away
// with it.
type TemplateRecord struct {
	ID                string            `json:"id"`
	Board             string            `json:"board"`
	Program           string            `json:"program"`
	ExtractedFieldSet ExtractedFieldSet `json:"extractedFieldSet"`
	Metadata          TemplateMetadata  `json:"metadata"`
	AssetHandle       string            `json:"assetHandle,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// DisplayName is the "board - program" label used in match messages.
func (t TemplateRecord) DisplayName() string {
	return fmt.Sprintf("%s - %s", t.Board, t.Program)
}

// CreatedBefore orders records by creation time, then id.
func (t TemplateRecord) CreatedBefore(other TemplateRecord) bool {
	if !t.CreatedAt.Equal(other.CreatedAt) {
		return t.CreatedAt.Before(other.CreatedAt)
	}
	return t.ID < other.ID
}

// TemplateSummary is the listing view of a record, without the field set.
type TemplateSummary struct {
	ID            string    `json:"id"`
	Board         string    `json:"board"`
	Program       string    `json:"program"`
	Description   string    `json:"description,omitempty"`
	HasAsset      bool      `json:"hasAsset"`
	PresentFields []string  `json:"presentFields"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (t TemplateRecord) Summary() TemplateSummary {
	return TemplateSummary{
		ID:            t.ID,
		Board:         t.Board,
		Program:       t.Program,
		Description:   t.Metadata.Description,
		HasAsset:      t.AssetHandle != "",
		PresentFields: t.ExtractedFieldSet.PresentFields(),
		CreatedAt:     t.CreatedAt,
	}
}

func (t TemplateRecord) Clone() TemplateRecord {
	out := t
	out.ExtractedFieldSet = t.ExtractedFieldSet.Clone()
	return out
}
