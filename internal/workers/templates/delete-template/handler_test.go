// internal/workers/templates/delete-template/handler_test.go
package deletetemplate

import (
	"context"
	"testing"
	"time"

	"template-verifier/internal/common/camunda/camundatest"
	"template-verifier/internal/common/errors"
	"template-verifier/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDeleter struct {
	mock.Mock
}

func (m *MockDeleter) DeleteTemplate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func newTestHandler(t *testing.T, ignoreMissing bool, svc Deleter) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: &Config{Enabled: true, MaxJobsActive: 1, Timeout: time.Second, IgnoreMissing: ignoreMissing},
		Service:      svc,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name          string
		serviceErr    error
		ignoreMissing bool
		wantDeleted   bool
		wantErr       error
	}{
		{name: "deleted", wantDeleted: true},
		{name: "missing fails", serviceErr: errors.NewTemplateNotFoundError("tpl_1"), wantErr: errors.ErrTemplateNotFound},
		{name: "missing ignored", serviceErr: errors.NewTemplateNotFoundError("tpl_1"), ignoreMissing: true},
		{name: "other errors are never ignored", serviceErr: errors.NewQueryExecutionFailedError("delete", context.Canceled), ignoreMissing: true, wantErr: context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockDeleter{}
			svc.On("DeleteTemplate", mock.Anything, "tpl_1").Return(tt.serviceErr)

			out, err := newTestHandler(t, tt.ignoreMissing, svc).Execute(context.Background(), &Input{TemplateID: "tpl_1"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDeleted, out.Deleted)
			assert.Equal(t, "tpl_1", out.TemplateID)
		})
	}
}

func TestHandler_Handle(t *testing.T) {
	svc := &MockDeleter{}
	svc.On("DeleteTemplate", mock.Anything, "tpl_1").Return(nil)

	client := camundatest.NewJobClient()
	newTestHandler(t, false, svc).Handle(client, camundatest.NewJob(t, 51, TaskType, map[string]interface{}{"templateId": "tpl_1"}))

	vars := client.CompletedVariables(t)
	assert.Equal(t, true, vars["deleted"])
	assert.Equal(t, "tpl_1", vars["templateId"])
}
