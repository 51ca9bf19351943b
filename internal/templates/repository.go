// internal/templates/repository.go
package templates

import (
	"context"
	"strings"
	"time"

	"template-verifier/internal/common/validation"
	"template-verifier/internal/models"
)

// Repository stores reference templates. GetByID returns (nil, nil) for an
// unknown id; Update and Delete report TEMPLATE_NOT_FOUND instead.
type Repository interface {
	Add(ctx context.Context, draft Draft) (*models.TemplateRecord, error)
	GetByID(ctx context.Context, id string) (*models.TemplateRecord, error)
	ListAll(ctx context.Context) ([]models.TemplateRecord, error)
	Update(ctx context.Context, id string, update Update) (*models.TemplateRecord, error)
	Delete(ctx context.Context, id string) error
	FindCandidates(ctx context.Context, board, program string) ([]models.TemplateRecord, error)
}

// Draft is a template that has not been stored yet.
type Draft struct {
	FieldSet    models.ExtractedFieldSet
	Board       string
	Program     string
	Metadata    models.TemplateMetadata
	AssetHandle string
}

// Normalize trims the labels, canonicalizes the field set and copies the labels
// into it when it lacks them.
func (d Draft) Normalize() Draft {
	d.Board = strings.TrimSpace(d.Board)
	d.Program = strings.TrimSpace(d.Program)
	d.FieldSet = d.FieldSet.Normalize()
	if strings.TrimSpace(d.FieldSet.Board) == "" {
		d.FieldSet.Board = d.Board
	}
	if strings.TrimSpace(d.FieldSet.Program) == "" {
		d.FieldSet.Program = d.Program
	}
	return d
}

func (d Draft) Validate() error {
	return validateLabels(d.Board, d.Program)
}

func (d Draft) record(id string, now time.Time) models.TemplateRecord {
	return models.TemplateRecord{
		ID:                id,
		Board:             d.Board,
		Program:           d.Program,
		ExtractedFieldSet: d.FieldSet,
		Metadata:          d.Metadata,
		AssetHandle:       d.AssetHandle,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Update carries the attributes to change; nil pointers leave a value as is.
type Update struct {
	Board       *string                   `json:"board,omitempty"`
	Program     *string                   `json:"program,omitempty"`
	FieldSet    *models.ExtractedFieldSet `json:"extractedFieldSet,omitempty"`
	Metadata    *models.TemplateMetadata  `json:"metadata,omitempty"`
	AssetHandle *string                   `json:"assetHandle,omitempty"`
}

func (u Update) IsEmpty() bool {
	return u.Board == nil && u.Program == nil && u.FieldSet == nil && u.Metadata == nil && u.AssetHandle == nil
}

// Apply returns rec with the update applied, or a validation error when the
// update would leave the record without a board or program.
func (u Update) Apply(rec models.TemplateRecord, now time.Time) (models.TemplateRecord, error) {
	out := rec.Clone()
	if u.Board != nil {
		out.Board = strings.TrimSpace(*u.Board)
	}
	if u.Program != nil {
		out.Program = strings.TrimSpace(*u.Program)
	}
	if u.FieldSet != nil {
		out.ExtractedFieldSet = u.FieldSet.Normalize()
	}
	if u.Metadata != nil {
		out.Metadata = *u.Metadata
	}
	if u.AssetHandle != nil {
		out.AssetHandle = *u.AssetHandle
	}
	if err := validateLabels(out.Board, out.Program); err != nil {
		return rec, err
	}
	out.UpdatedAt = now
	return out, nil
}

type labels struct {
	Board   string `json:"board" validate:"required"`
	Program string `json:"program" validate:"required"`
}

func validateLabels(board, program string) error {
	return validation.Struct(labels{
		Board:   strings.TrimSpace(board),
		Program: strings.TrimSpace(program),
	})
}

// MatchesFilter reports whether rec carries board and program, compared as
// case-insensitive substrings of either the record labels or the field-set
// labels. An empty filter matches everything.
func MatchesFilter(rec models.TemplateRecord, board, program string) bool {
	return labelContains(board, rec.Board, rec.ExtractedFieldSet.Board) &&
		labelContains(program, rec.Program, rec.ExtractedFieldSet.Program)
}

func labelContains(filter string, values ...string) bool {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return true
	}
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), filter) {
			return true
		}
	}
	return false
}

func filterRecords(in []models.TemplateRecord, board, program string) []models.TemplateRecord {
	out := make([]models.TemplateRecord, 0, len(in))
	for _, rec := range in {
		if MatchesFilter(rec, board, program) {
			out = append(out, rec)
		}
	}
	return out
}
