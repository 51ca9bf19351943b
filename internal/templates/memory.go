// internal/templates/memory.go
package templates

import (
	"context"
	"sort"
	"sync"

	"template-verifier/internal/common/errors"
	"template-verifier/internal/models"
)

// MemoryRepository keeps templates in process. Reads run concurrently and
// writes are serialized. Records are copied in and out.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]models.TemplateRecord
	ids     *IDGenerator
}

func NewMemoryRepository(ids *IDGenerator) *MemoryRepository {
	if ids == nil {
		ids = NewIDGenerator(nil)
	}
	return &MemoryRepository{
		records: make(map[string]models.TemplateRecord),
		ids:     ids,
	}
}

func (r *MemoryRepository) Add(ctx context.Context, draft Draft) (*models.TemplateRecord, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	id, now := r.ids.Next(draft.Board, draft.Program)
	rec := draft.record(id, now)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[id]; exists {
		return nil, errors.NewDuplicateTemplateError(id)
	}
	r.records[id] = rec.Clone()
	return &rec, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.TemplateRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	out := rec.Clone()
	return &out, nil
}

func (r *MemoryRepository) ListAll(ctx context.Context) ([]models.TemplateRecord, error) {
	r.mu.RLock()
	out := make([]models.TemplateRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedBefore(out[j]) })
	return out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, update Update) (*models.TemplateRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, errors.NewTemplateNotFoundError(id)
	}
	updated, err := update.Apply(rec, r.ids.Now())
	if err != nil {
		return nil, err
	}
	r.records[id] = updated.Clone()
	return &updated, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return errors.NewTemplateNotFoundError(id)
	}
	delete(r.records, id)
	return nil
}

func (r *MemoryRepository) FindCandidates(ctx context.Context, board, program string) ([]models.TemplateRecord, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterRecords(all, board, program), nil
}
