// internal/workers/matching/update-matching-settings/handler.go
package updatesettings

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
	"lifelink-workers/internal/matching"
	"lifelink-workers/internal/workers/matching/jobutil"
)

const TaskType = "update-matching-settings"

// publishAttempts bounds how often a save is redone when another writer
// moves the snapshot between our read and our publish.
const publishAttempts = 3

type Store interface {
	SaveSettings(ctx context.Context, next matching.Settings) error
}

// Settings is the in-process snapshot holder rankings read from.
type Settings interface {
	Snapshot() matching.Settings
	CompareAndSwap(base, next matching.Settings) (bool, error)
}

type Handler struct {
	config   *Config
	store    Store
	settings Settings
	clock    matching.Clock
	reporter *jobutil.Reporter
	logger   logger.Logger
}

func NewHandler(cfg *Config, store Store, settings Settings, clock matching.Clock, obs *observability.Observability, log logger.Logger) *Handler {
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
	if err := jobutil.ParseInput(validation.UpdateSettingsInput, job.Variables, &input); err != nil {
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

// execute persists first and publishes second, so a failed write never
// leaves rankings on settings the database does not have. The published
// snapshot is exactly the one saved; if the in-process snapshot moved in
// between, the update is recomputed from the newer base and saved again.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	for attempt := 1; ; attempt++ {
		base := h.settings.Snapshot()
		next := input.apply(base)
		if err := next.Validate(); err != nil {
			metrics.SettingsUpdates.WithLabelValues("rejected").Inc()
			return nil, errors.NewInvalidSettingsError(err)
		}

		if err := h.store.SaveSettings(ctx, next); err != nil {
			metrics.SettingsUpdates.WithLabelValues("failed").Inc()
			if ctx.Err() == context.DeadlineExceeded {
				return nil, errors.NewQueryTimeoutError("save_settings")
			}
			return nil, errors.NewDatabaseUpdateFailedError("save_settings", err)
		}

		swapped, err := h.settings.CompareAndSwap(base, next)
		if err != nil {
			metrics.SettingsUpdates.WithLabelValues("rejected").Inc()
			return nil, errors.NewInvalidSettingsError(err)
		}
		if swapped {
			metrics.SettingsUpdates.WithLabelValues("applied").Inc()
			return h.applied(next, input), nil
		}

		h.logger.Warn("matching settings changed during update, saving again", map[string]interface{}{
			"attempt": attempt,
		})
		if attempt == publishAttempts {
			metrics.SettingsUpdates.WithLabelValues("failed").Inc()
			return nil, errors.NewDatabaseUpdateFailedError("publish_settings", matching.ErrSettingsChanged)
		}
	}
}

func (h *Handler) applied(s matching.Settings, input *Input) *Output {
	h.logger.Info("matching settings updated", map[string]interface{}{
		"cooldownDays":      s.CooldownDays,
		"emergencyRadiusKm": s.EmergencyRadiusKm,
		"weights":           s.Weights,
		"updatedBy":         input.UpdatedBy,
	})

	return &Output{
		CooldownDays:      s.CooldownDays,
		EmergencyRadiusKm: s.EmergencyRadiusKm,
		Weights:           s.Weights,
		WeightsTotal:      s.Weights.Sum(),
		UpdatedBy:         input.UpdatedBy,
		UpdatedAt:         h.clock.Now(),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
