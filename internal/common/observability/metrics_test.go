// internal/common/observability/metrics_test.go
package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestObservability(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := New("template-verifier-test", WithSpanProcessor(recorder), WithSampleRatio(1))
	defer obs.Shutdown()

	ctx := context.Background()
	_, span := obs.TracerProvider().Tracer("test").Start(ctx, "verification.MatchDocument")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "verification.MatchDocument", ended[0].Name())

	assert.NotPanics(t, func() {
		obs.RecordMatch(ctx, "MATCHED", false, 12*time.Millisecond)
		obs.RecordJobProcessed(ctx, "match-document")
		obs.RecordJobDuration(ctx, time.Second, "match-document")
	})
}

func TestObservability_ZeroValue(t *testing.T) {
	var obs Observability
	assert.NotNil(t, obs.TracerProvider())
	assert.NotPanics(t, func() {
		obs.RecordMatch(context.Background(), "NOT_MATCHED", true, time.Millisecond)
		obs.Shutdown()
	})
}
