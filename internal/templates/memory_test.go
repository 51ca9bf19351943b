// internal/templates/memory_test.go
package templates

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"template-verifier/internal/common/errors"
	"template-verifier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func strPtr(s string) *string { return &s }

func maharashtraDraft() Draft {
	return Draft{
		Board:   " Maharashtra State Board ",
		Program: "SSC",
		FieldSet: models.NewFieldSetBuilder().
			StudentName("RAHUL SHARMA").
			SeatNumber("B123456").
			Subjects(map[string]interface{}{"English": 78.0, "Maths": 91.0}).
			Build(),
		Metadata: models.TemplateMetadata{Description: "SSC marksheet 2023"},
	}
}

func TestMemoryRepository_AddAndGet(t *testing.T) {
	repo := NewMemoryRepository(NewIDGenerator(fixedClock))
	ctx := context.Background()

	rec, err := repo.Add(ctx, maharashtraDraft())
	require.NoError(t, err)

	assert.Equal(t, "maharashtra_state_board_ssc_1714555800000", rec.ID)
	assert.Equal(t, "Maharashtra State Board", rec.Board)
	assert.Equal(t, "Maharashtra State Board", rec.ExtractedFieldSet.Board, "blank field-set board is backfilled")
	assert.Equal(t, "SSC", rec.ExtractedFieldSet.Program)
	assert.Equal(t, fixedTime, rec.CreatedAt)

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	missing, err := repo.GetByID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryRepository_AddRejectsBlankLabels(t *testing.T) {
	repo := NewMemoryRepository(nil)

	_, err := repo.Add(context.Background(), Draft{Board: "  ", Program: "SSC"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, []string{"board"}, stdErr.Metadata["fields"])
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	rec, err := repo.Add(ctx, maharashtraDraft())
	require.NoError(t, err)
	rec.ExtractedFieldSet.Subjects[0].Name = "changed"

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "English", got.ExtractedFieldSet.Subjects[0].Name)
}

func TestMemoryRepository_ListAllOrderedByCreation(t *testing.T) {
	repo := NewMemoryRepository(NewIDGenerator(fixedClock))
	ctx := context.Background()

	first, err := repo.Add(ctx, Draft{Board: "Zeta Board", Program: "HSC"})
	require.NoError(t, err)
	second, err := repo.Add(ctx, Draft{Board: "Alpha Board", Program: "SSC"})
	require.NoError(t, err)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
	assert.True(t, first.CreatedAt.Before(second.CreatedAt))
}

func TestMemoryRepository_Update(t *testing.T) {
	repo := NewMemoryRepository(NewIDGenerator(fixedClock))
	ctx := context.Background()
	rec, err := repo.Add(ctx, maharashtraDraft())
	require.NoError(t, err)

	updated, err := repo.Update(ctx, rec.ID, Update{
		Program:  strPtr("HSC"),
		Metadata: &models.TemplateMetadata{Notes: "reissued"},
	})
	require.NoError(t, err)
	assert.Equal(t, "HSC", updated.Program)
	assert.Equal(t, "reissued", updated.Metadata.Notes)
	assert.Equal(t, rec.Board, updated.Board)
	assert.Equal(t, rec.CreatedAt, updated.CreatedAt)

	_, err = repo.Update(ctx, rec.ID, Update{Board: strPtr("")})
	assert.True(t, stderrors.Is(err, errors.ErrValidation))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "HSC", got.Program, "rejected update leaves the record unchanged")
	assert.Equal(t, "Maharashtra State Board", got.Board)

	_, err = repo.Update(ctx, "missing", Update{Program: strPtr("SSC")})
	assert.True(t, stderrors.Is(err, errors.ErrTemplateNotFound))
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()
	rec, err := repo.Add(ctx, maharashtraDraft())
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, rec.ID))
	got, err := repo.GetByID(ctx, rec.ID)
	assert.NoError(t, err)
	assert.Nil(t, got)

	err = repo.Delete(ctx, rec.ID)
	assert.True(t, stderrors.Is(err, errors.ErrTemplateNotFound))
}

func TestMemoryRepository_FindCandidates(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	_, err := repo.Add(ctx, Draft{Board: "Maharashtra State Board", Program: "SSC"})
	require.NoError(t, err)
	_, err = repo.Add(ctx, Draft{Board: "Maharashtra State Board", Program: "HSC"})
	require.NoError(t, err)
	_, err = repo.Add(ctx, Draft{
		Board:    "MSBSHSE",
		Program:  "Secondary",
		FieldSet: models.ExtractedFieldSet{Board: "Maharashtra Board", Program: "SSC"},
	})
	require.NoError(t, err)
	_, err = repo.Add(ctx, Draft{Board: "CBSE", Program: "SSC"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		board   string
		program string
		count   int
	}{
		{"no filter", "", "", 4},
		{"board substring matches record or field set", "maharashtra", "", 3},
		{"board and program", "MAHARASHTRA", "ssc", 2},
		{"program only", "", "HSC", 1},
		{"no match", "ICSE", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindCandidates(ctx, tt.board, tt.program)
			require.NoError(t, err)
			assert.Len(t, got, tt.count)
		})
	}
}

func TestMemoryRepository_ConcurrentAdds(t *testing.T) {
	repo := NewMemoryRepository(NewIDGenerator(fixedClock))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Add(ctx, Draft{Board: "CBSE", Program: "SSC"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 50)
}
