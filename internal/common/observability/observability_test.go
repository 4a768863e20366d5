package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestObservability(t *testing.T) (*Observability, *tracetest.SpanRecorder, *promclient.Registry) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	reg := promclient.NewRegistry()
	obs := New("lifelink-test", WithRegisterer(reg), WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })
	return obs, recorder, reg
}

func TestStartSpan_RecordsErrors(t *testing.T) {
	obs, recorder, _ := newTestObservability(t)

	_, end := obs.StartSpan(context.Background(), "rank-donors", attribute.Int64("requestId", 7))
	end(nil)

	_, end = obs.StartSpan(context.Background(), "notify-matched-donors")
	end(errors.New("sns throttled"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "rank-donors", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int64("requestId", 7))
	assert.Equal(t, otelcodes.Unset, spans[0].Status().Code)

	assert.Equal(t, otelcodes.Error, spans[1].Status().Code)
	assert.Equal(t, "sns throttled", spans[1].Status().Description)
}

func TestMetrics_ExportedToRegistry(t *testing.T) {
	obs, _, reg := newTestObservability(t)
	ctx := context.Background()

	obs.RecordJobProcessed(ctx, "rank-donors", "completed")
	obs.RecordJobDuration(ctx, "rank-donors", 12*time.Millisecond, "completed")
	obs.RecordTopScore(ctx, "A+", 87.5)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	for _, want := range []string{"jobs_processed", "jobs_duration", "ranking_top_score"} {
		assert.True(t, hasPrefix(names, want), "%s missing from %v", want, names)
	}
}

func hasPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}

func TestZeroValueIsSafe(t *testing.T) {
	var obs Observability
	obs.RecordJobProcessed(context.Background(), "x", "failed")
	_, end := obs.StartSpan(context.Background(), "noop")
	end(nil)
	assert.NoError(t, obs.Shutdown(context.Background()))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var obs *Observability
	obs.RecordJobDuration(context.Background(), "rank-donors", time.Second, "completed")
	obs.RecordTopScore(context.Background(), "O-", 91)
	_, end := obs.StartSpan(context.Background(), "noop")
	end(nil)
	assert.NoError(t, obs.Shutdown(context.Background()))
}
