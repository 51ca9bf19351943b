// internal/workers/verification/match-document/handler_test.go
package matchdocument

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"template-verifier/internal/common/camunda/camundatest"
	"template-verifier/internal/common/errors"
	"template-verifier/internal/common/logger"
	"template-verifier/internal/common/validation"
	"template-verifier/internal/models"
	"template-verifier/internal/verification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMatcher struct {
	mock.Mock
}

func (m *MockMatcher) MatchDocument(ctx context.Context, req verification.MatchRequest) (*models.MatchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MatchResult), args.Error(1)
}

func loadSchemas(t *testing.T) *validation.SchemaSet {
	t.Helper()
	set, err := validation.LoadSchemaSet(filepath.Join("..", "..", "..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	return set
}

func newTestHandler(t *testing.T, svc Matcher) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: &Config{Enabled: true, MaxJobsActive: 1, Timeout: 5 * time.Second, MaxRankedCandidates: 2},
		Service:      svc,
		Schemas:      loadSchemas(t),
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func matchedResult() *models.MatchResult {
	return &models.MatchResult{
		TemplateID:   "tpl_1",
		TemplateName: "Maharashtra State Board - SSC",
		Score:        0.91,
		Matched:      true,
		Status:       models.MatchStatusMatched,
		Message:      "Matched Maharashtra State Board - SSC",
		RankedCandidates: []models.RankedCandidate{
			{TemplateID: "tpl_1", Score: 0.91, Relevant: true},
			{TemplateID: "tpl_2", Score: 0.40},
			{TemplateID: "tpl_3", Score: 0.10},
		},
		CandidatesConsidered: 3,
	}
}

func TestNewHandler(t *testing.T) {
	_, err := NewHandler(HandlerOptions{Logger: logger.NewNoOpLogger()})
	assert.ErrorContains(t, err, "verification service is required")

	_, err = NewHandler(HandlerOptions{
		CustomConfig: &Config{MaxJobsActive: 1},
		Service:      &MockMatcher{},
	})
	assert.ErrorContains(t, err, "timeout must be positive")

	h, err := NewHandler(HandlerOptions{Service: &MockMatcher{}, Logger: logger.NewNoOpLogger()})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), h.Config())
}

func TestHandler_Execute(t *testing.T) {
	t.Run("matched result trims the ranking", func(t *testing.T) {
		svc := &MockMatcher{}
		fs := &models.ExtractedFieldSet{Board: "Maharashtra State Board", Program: "SSC"}
		svc.On("MatchDocument", mock.Anything, verification.MatchRequest{FieldSet: fs, Board: "Maharashtra"}).
			Return(matchedResult(), nil)

		out, err := newTestHandler(t, svc).Execute(context.Background(), &Input{ExtractedFieldSet: fs, Board: "Maharashtra"})
		require.NoError(t, err)
		assert.True(t, out.Matched)
		assert.Equal(t, "tpl_1", out.TemplateID)
		assert.Equal(t, models.MatchStatusMatched, out.MatchStatus)
		assert.Len(t, out.MatchResult.RankedCandidates, 2)
		assert.Equal(t, 3, out.MatchResult.CandidatesConsidered)
		svc.AssertExpectations(t)
	})

	t.Run("not matched keeps the best candidate in the result only", func(t *testing.T) {
		svc := &MockMatcher{}
		res := &models.MatchResult{
			TemplateID: "tpl_1",
			Score:      0.2,
			Status:     models.MatchStatusNotMatched,
			Message:    "No good match found. Best candidate: Maharashtra State Board - SSC (Score: 0.20)",
		}
		svc.On("MatchDocument", mock.Anything, mock.Anything).Return(res, nil)

		out, err := newTestHandler(t, svc).Execute(context.Background(), &Input{ImagePath: "/scans/cbse.png"})
		require.NoError(t, err)
		assert.False(t, out.Matched)
		assert.Empty(t, out.TemplateID)
		assert.Equal(t, "tpl_1", out.MatchResult.TemplateID)
		assert.Equal(t, res.Message, out.MatchMessage)
	})

	t.Run("service error passes through", func(t *testing.T) {
		svc := &MockMatcher{}
		svc.On("MatchDocument", mock.Anything, mock.Anything).Return(nil, errors.NewNoTemplatesAvailableError())

		_, err := newTestHandler(t, svc).Execute(context.Background(), &Input{ImagePath: "/scans/a.png"})
		assert.ErrorIs(t, err, errors.ErrNoTemplatesAvailable)
	})

	t.Run("nil input", func(t *testing.T) {
		_, err := newTestHandler(t, &MockMatcher{}).Execute(context.Background(), nil)
		assert.ErrorIs(t, err, errors.ErrValidation)
	})
}

func TestHandler_Handle(t *testing.T) {
	t.Run("completes with match variables", func(t *testing.T) {
		svc := &MockMatcher{}
		svc.On("MatchDocument", mock.Anything, mock.MatchedBy(func(req verification.MatchRequest) bool {
			return req.FieldSet != nil && req.FieldSet.Program == "SSC"
		})).Return(matchedResult(), nil)

		client := camundatest.NewJobClient()
		job := camundatest.NewJob(t, 1, TaskType, map[string]interface{}{
			"extractedFieldSet": map[string]interface{}{"board": "Maharashtra State Board", "program": "SSC"},
		})
		newTestHandler(t, svc).Handle(client, job)

		vars := client.CompletedVariables(t)
		assert.Equal(t, true, vars["matched"])
		assert.Equal(t, "MATCHED", vars["matchStatus"])
		assert.Equal(t, "tpl_1", vars["templateId"])
		assert.InDelta(t, 0.91, vars["matchScore"], 1e-9)
		assert.Empty(t, client.Failed())
	})

	t.Run("rejects variables without a document", func(t *testing.T) {
		svc := &MockMatcher{}
		client := camundatest.NewJobClient()
		newTestHandler(t, svc).Handle(client, camundatest.NewJob(t, 2, TaskType, map[string]interface{}{"board": "CBSE"}))

		thrown := client.Thrown()
		require.Len(t, thrown, 1)
		assert.Equal(t, "INVALID_JOB_VARIABLES", thrown[0].ErrorCode)
		assert.Empty(t, client.Completed())
		svc.AssertNotCalled(t, "MatchDocument", mock.Anything, mock.Anything)
	})

	t.Run("empty store throws a business error", func(t *testing.T) {
		svc := &MockMatcher{}
		svc.On("MatchDocument", mock.Anything, mock.Anything).Return(nil, errors.NewNoTemplatesAvailableError())

		client := camundatest.NewJobClient()
		newTestHandler(t, svc).Handle(client, camundatest.NewJob(t, 3, TaskType, map[string]interface{}{"imagePath": "/scans/a.png"}))

		thrown := client.Thrown()
		require.Len(t, thrown, 1)
		assert.Equal(t, "NO_TEMPLATES_AVAILABLE", thrown[0].ErrorCode)
	})

	t.Run("extraction failure is retried", func(t *testing.T) {
		svc := &MockMatcher{}
		svc.On("MatchDocument", mock.Anything, mock.Anything).
			Return(nil, errors.NewExtractionFailedError("/scans/a.png", context.DeadlineExceeded))

		client := camundatest.NewJobClient()
		newTestHandler(t, svc).Handle(client, camundatest.NewJob(t, 4, TaskType, map[string]interface{}{"imagePath": "/scans/a.png"}))

		failed := client.Failed()
		require.Len(t, failed, 1)
		assert.Equal(t, int32(2), failed[0].Retries)
		assert.Contains(t, failed[0].ErrorMessage, "[EXTRACTION_FAILED]")
		assert.Empty(t, client.Thrown())
	})
}
