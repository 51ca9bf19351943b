// internal/common/camunda/client_test.go
package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"template-verifier/internal/common/errors"
	"template-verifier/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func fastPolicy() *RetryConfig {
	return &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetry_RecoversFromTransientErrors(t *testing.T) {
	calls := 0
	res, err := Retry(context.Background(), fastPolicy(), logger.NewTestLogger(t), "topology", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", status.Error(codes.Unavailable, "connection refused")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"grpc permission denied", status.Error(codes.PermissionDenied, "no"), "AUTHENTICATION_ERROR"},
		{"plain text permission denied", stderrors.New("permission denied"), "AUTHENTICATION_ERROR"},
		{"grpc not found", status.Error(codes.NotFound, "no such job"), "RESOURCE_NOT_FOUND"},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, "bad"), "EXTERNAL_SERVICE_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := Retry(context.Background(), fastPolicy(), logger.NewNoOpLogger(), "topology", func(context.Context) (struct{}, error) {
				calls++
				return struct{}{}, tt.err
			})

			assert.Equal(t, 1, calls)
			var stdErr *errors.StandardError
			require.True(t, stderrors.As(err, &stdErr))
			assert.Equal(t, tt.code, stdErr.Code)
		})
	}
}

func TestRetry_BudgetExhausted(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(), logger.NewNoOpLogger(), "topology", func(context.Context) (int, error) {
		calls++
		return 0, status.Error(codes.DeadlineExceeded, "slow broker")
	})

	assert.Equal(t, 3, calls)
	assert.ErrorContains(t, err, "after 3 attempts")
	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, errors.ErrorCode("TIMEOUT_ERROR"), stdErr.Code)
}

func TestRetry_ContextCancelled(t *testing.T) {
	policy := &RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, policy, logger.NewNoOpLogger(), "topology", func(context.Context) (int, error) {
		return 0, stderrors.New("unavailable")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryConfig_Delay(t *testing.T) {
	p := &RetryConfig{MaxRetries: 10, BaseDelay: time.Second, MaxDelay: 15 * time.Second}
	assert.Equal(t, time.Second, p.delay(1))
	assert.Equal(t, 4*time.Second, p.delay(3))
	assert.Equal(t, 15*time.Second, p.delay(5))
	assert.Equal(t, 15*time.Second, p.delay(70))
}
