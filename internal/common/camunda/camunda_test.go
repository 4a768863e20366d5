package camunda

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lifelink-workers/internal/common/camunda/camundatest"
	"lifelink-workers/internal/common/config"
	"lifelink-workers/internal/common/errors"
	"lifelink-workers/internal/common/metrics"
)

// ==========================
// Broker errors
// ==========================

func TestBrokerError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorCode
	}{
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "deadline exceeded"), errors.ErrCodeBrokerTimeout},
		{"context deadline", context.DeadlineExceeded, errors.ErrCodeBrokerTimeout},
		{"unavailable", status.Error(codes.Unavailable, "connection refused"), errors.ErrCodeBrokerUnavailable},
		{"permission denied", status.Error(codes.PermissionDenied, "no access"), errors.ErrCodeBrokerRejected},
		{"not found", status.Error(codes.NotFound, "job not found"), errors.ErrCodeBrokerRejected},
		{"plain error", stderrors.New("something odd"), errors.ErrCodeBrokerUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := brokerError(fmt.Errorf("topology: %w", tt.err))
			assert.Equal(t, tt.want, errors.Normalize(err).Code)
		})
	}
}

func TestBrokerError_RetryableUnlessRejected(t *testing.T) {
	assert.True(t, errors.Normalize(brokerError(status.Error(codes.Unavailable, "down"))).Retryable)
	assert.False(t, errors.Normalize(brokerError(status.Error(codes.NotFound, "gone"))).Retryable)
}

func TestClientConfigFrom(t *testing.T) {
	cc := ClientConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", Plaintext: true, RequestTimeout: 1500})
	assert.Equal(t, "zeebe:26500", cc.GatewayAddress)
	assert.True(t, cc.UsePlaintextConnection)
	assert.Equal(t, 1500*time.Millisecond, cc.RequestTimeout)
	assert.Equal(t, 10*time.Second, cc.ConnectionTimeout)
}

// ==========================
// Instrumentation
// ==========================

type recordingTracer struct {
	names []string
	errs  []error
}

func (r *recordingTracer) StartSpan(ctx context.Context, name string, _ ...attribute.KeyValue) (context.Context, func(error)) {
	r.names = append(r.names, name)
	return ctx, func(err error) { r.errs = append(r.errs, err) }
}

func TestInstrument_RecordsSpanAndDuration(t *testing.T) {
	tracer := &recordingTracer{}
	ran := false
	h := Instrument("instrument-ok", func(worker.JobClient, entities.Job) { ran = true }, tracer, zaptest.NewLogger(t))

	h(camundatest.NewJobClient(), camundatest.NewJob(1, "instrument-ok", "{}"))

	assert.True(t, ran)
	assert.Equal(t, []string{"instrument-ok"}, tracer.names)
	assert.Equal(t, []error{nil}, tracer.errs)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.WorkerJobsActive.WithLabelValues("instrument-ok")))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(metrics.WorkerJobDuration, "worker_job_duration_seconds"), 1)
}

func TestInstrument_PanicFailsJob(t *testing.T) {
	tracer := &recordingTracer{}
	client := camundatest.NewJobClient()
	h := Instrument("instrument-panic", func(worker.JobClient, entities.Job) { panic("nil donor") }, tracer, zaptest.NewLogger(t))

	assert.NotPanics(t, func() { h(client, camundatest.NewJob(9, "instrument-panic", "{}")) })

	failed := client.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(9), failed[0].JobKey)
	assert.Equal(t, int32(2), failed[0].Retries)
	assert.Contains(t, failed[0].ErrorMessage, "nil donor")
	require.Len(t, tracer.errs, 1)
	assert.Error(t, tracer.errs[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WorkerJobsFailed.WithLabelValues("instrument-panic", "PANIC")))
}
