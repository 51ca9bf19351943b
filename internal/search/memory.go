// internal/search/memory.go
package search

import (
	"context"
	"sort"
	"strings"
	"sync"

	"template-verifier/internal/models"
)

// MemoryIndex is an in-process Index used when Elasticsearch is disabled.
// Text relevance is the share of query tokens found in the document.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]document
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]document)}
}

func (m *MemoryIndex) Index(_ context.Context, rec models.TemplateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[rec.ID] = newDocument(rec)
	return nil
}

func (m *MemoryIndex) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, q Query) (*Result, error) {
	q = q.Normalize()
	tokens := strings.Fields(strings.ToLower(q.Text))

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.docs))
	for _, doc := range m.docs {
		if !containsFold(q.Board, doc.Board, doc.SampleBoard) || !containsFold(q.Program, doc.Program, doc.SampleProgram) {
			continue
		}
		score := 1.0
		if len(tokens) > 0 {
			score = tokenScore(tokens, doc)
			if score == 0 {
				continue
			}
		}
		hits = append(hits, Hit{
			TemplateID:  doc.TemplateID,
			Board:       doc.Board,
			Program:     doc.Program,
			Description: doc.Description,
			Score:       score,
			CreatedAt:   doc.CreatedAt,
		})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.Before(hits[j].CreatedAt)
		}
		return hits[i].TemplateID < hits[j].TemplateID
	})

	total := len(hits)
	start := minInt(q.From, total)
	end := minInt(start+q.Size, total)
	return &Result{Hits: hits[start:end], Total: total}, nil
}

func tokenScore(tokens []string, doc document) float64 {
	haystack := strings.ToLower(strings.Join(append([]string{
		doc.Board, doc.Program, doc.SampleBoard, doc.SampleProgram,
		doc.Description, doc.Notes, doc.RawText,
	}, doc.Subjects...), " "))
	found := 0
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			found++
		}
	}
	return float64(found) / float64(len(tokens))
}

func containsFold(filter string, values ...string) bool {
	filter = strings.ToLower(filter)
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

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
