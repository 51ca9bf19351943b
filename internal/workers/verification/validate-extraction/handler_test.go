// internal/workers/verification/validate-extraction/handler_test.go
package validateextraction

import (
	"context"
	"testing"
	"time"

	"template-verifier/internal/common/camunda/camundatest"
	"template-verifier/internal/common/errors"
	"template-verifier/internal/common/logger"
	"template-verifier/internal/matching"
	"template-verifier/internal/models"
	"template-verifier/internal/templates"
	"template-verifier/internal/verification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *verification.Service {
	t.Helper()
	engine, err := matching.NewEngine(matching.DefaultConfig(), matching.DefaultPatternSet())
	require.NoError(t, err)
	repo := templates.NewMemoryRepository(templates.NewIDGenerator(time.Now))
	return verification.NewService(repo, engine, logger.NewTestLogger(t))
}

func newTestHandler(t *testing.T, cfg *Config) *Handler {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	h, err := NewHandler(HandlerOptions{CustomConfig: cfg, Service: newService(t), Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)
	return h
}

func sscFieldSet() *models.ExtractedFieldSet {
	return &models.ExtractedFieldSet{
		StudentName: "PATIL ROHAN SURESH",
		Board:       "Maharashtra State Board of Secondary and Higher Secondary Education",
		Program:     "SSC",
		SeatNumber:  "M123456",
		ExamYear:    "2023",
		Subjects:    []models.Subject{{Name: "Marathi"}, {Name: "English"}, {Name: "Mathematics"}},
	}
}

func TestHandler_Execute(t *testing.T) {
	t.Run("usable extraction", func(t *testing.T) {
		out, err := newTestHandler(t, nil).Execute(context.Background(), &Input{ExtractedFieldSet: sscFieldSet()})
		require.NoError(t, err)
		assert.True(t, out.ExtractionValid)
		assert.Empty(t, out.Assessment.MissingFields)
		assert.Equal(t, "SSC", out.ExtractedFieldSet.Program)
	})

	t.Run("unusable extraction completes as invalid", func(t *testing.T) {
		out, err := newTestHandler(t, nil).Execute(context.Background(), &Input{
			ExtractedFieldSet: &models.ExtractedFieldSet{RawText: "illegible scan"},
		})
		require.NoError(t, err)
		assert.False(t, out.ExtractionValid)
		assert.NotEmpty(t, out.Assessment.MissingFields)
	})

	t.Run("unusable extraction fails when configured", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.FailOnInvalid = true
		_, err := newTestHandler(t, cfg).Execute(context.Background(), &Input{
			ExtractedFieldSet: &models.ExtractedFieldSet{RawText: "illegible scan"},
		})
		require.ErrorIs(t, err, errors.ErrValidation)

		var stdErr *errors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Contains(t, stdErr.Metadata, "assessment")
	})

	t.Run("image without extractor", func(t *testing.T) {
		_, err := newTestHandler(t, nil).Execute(context.Background(), &Input{ImagePath: "/scans/a.png"})
		assert.ErrorIs(t, err, errors.ErrValidation)
	})
}

func TestHandler_Handle(t *testing.T) {
	client := camundatest.NewJobClient()
	job := camundatest.NewJob(t, 7, TaskType, map[string]interface{}{"extractedFieldSet": sscFieldSet()})

	newTestHandler(t, nil).Handle(client, job)

	vars := client.CompletedVariables(t)
	assert.Equal(t, true, vars["extractionValid"])
	fs, ok := vars["extractedFieldSet"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "M123456", fs["seatNumber"])
}
