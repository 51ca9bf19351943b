// internal/search/memory_test.go
package search

import (
	"context"
	"testing"
	"time"

	"template-verifier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndex_Search(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	msb := sampleRecord()
	cbse := models.TemplateRecord{
		ID: "cbse_ssc_1", Board: "CBSE", Program: "SSC",
		Metadata:  models.TemplateMetadata{Description: "Central board secondary marksheet"},
		CreatedAt: created.Add(time.Minute),
	}
	hsc := models.TemplateRecord{
		ID: "msb_hsc_1", Board: "Maharashtra State Board", Program: "HSC",
		CreatedAt: created.Add(2 * time.Minute),
	}
	for _, rec := range []models.TemplateRecord{msb, cbse, hsc} {
		require.NoError(t, idx.Index(ctx, rec))
	}

	t.Run("label filters", func(t *testing.T) {
		res, err := idx.Search(ctx, Query{Board: "maharashtra"})
		require.NoError(t, err)
		require.Equal(t, 2, res.Total)
		assert.Equal(t, msb.ID, res.Hits[0].TemplateID)
		assert.Equal(t, hsc.ID, res.Hits[1].TemplateID)
	})

	t.Run("text relevance", func(t *testing.T) {
		res, err := idx.Search(ctx, Query{Text: "secondary marksheet"})
		require.NoError(t, err)
		require.Equal(t, 2, res.Total)
		assert.Equal(t, cbse.ID, res.Hits[0].TemplateID)
		assert.Equal(t, 1.0, res.Hits[0].Score)
		assert.Equal(t, msb.ID, res.Hits[1].TemplateID)
		assert.Equal(t, 0.5, res.Hits[1].Score)
	})

	t.Run("pagination", func(t *testing.T) {
		res, err := idx.Search(ctx, Query{From: 2, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)
		require.Len(t, res.Hits, 1)
		assert.Equal(t, hsc.ID, res.Hits[0].TemplateID)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, idx.Remove(ctx, cbse.ID))
		res, err := idx.Search(ctx, Query{Board: "cbse"})
		require.NoError(t, err)
		assert.Zero(t, res.Total)
		assert.Empty(t, res.Hits)
	})
}
