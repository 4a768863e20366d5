// internal/workers/matching/refresh-donor-availability/handler.go
package refreshavailability

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"lifelink-workers/internal/common/errors"
	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/common/metrics"
	"lifelink-workers/internal/common/observability"
	"lifelink-workers/internal/common/validation"
	"lifelink-workers/internal/donorstore"
	"lifelink-workers/internal/matching"
	"lifelink-workers/internal/workers/matching/jobutil"
)

const TaskType = "refresh-donor-availability"

type Store interface {
	RefreshAvailability(ctx context.Context, today time.Time, cooldownDays int) (donorstore.AvailabilityChange, error)
}

// Handler writes the cooldown rule back to users.is_available so that
// storage-side filters agree with the ranker.
type Handler struct {
	config   *Config
	store    Store
	settings matching.SettingsProvider
	clock    matching.Clock
	reporter *jobutil.Reporter
	logger   logger.Logger
}

func NewHandler(cfg *Config, store Store, settings matching.SettingsProvider, clock matching.Clock, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	if clock == nil {
		clock = matching.SystemClock{}
	}
	return &Handler{
		config:   cfg,
		store:    store,
		settings: settings,
		clock:    clock,
		reporter: jobutil.NewReporter(TaskType, obs, log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := jobutil.ParseInput(validation.RefreshAvailabilityInput, job.Variables, &input); err != nil {
		h.reporter.Fail(client, job, err, started)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.reporter.Fail(client, job, err, started)
		return
	}

	h.reporter.Complete(client, job, output, started)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	asOf := h.clock.Now()
	if input.AsOf != nil {
		asOf = *input.AsOf
	}
	cooldown := h.settings.Snapshot().CooldownDays

	change, err := h.store.RefreshAvailability(ctx, asOf, cooldown)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewQueryTimeoutError("availability_refresh")
		}
		return nil, errors.NewAvailabilityRefreshFailedError(err)
	}

	metrics.AvailabilityRefreshed.Add(float64(change.Restored))
	h.logger.Info("donor availability refreshed", map[string]interface{}{
		"madeAvailable":   change.Restored,
		"madeUnavailable": change.Suspended,
		"cooldownDays":    cooldown,
		"asOf":            asOf.Format("2006-01-02"),
	})

	return &Output{
		MadeAvailable:   change.Restored,
		MadeUnavailable: change.Suspended,
		CooldownDays:    cooldown,
		AsOf:            asOf,
	}, nil
}

// Execute is also the entry point of the scheduled refresh.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
