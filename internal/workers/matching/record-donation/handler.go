// internal/workers/matching/record-donation/handler.go
package recorddonation

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"lifelink-workers/internal/common/errors"
	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/common/observability"
	"lifelink-workers/internal/common/validation"
	"lifelink-workers/internal/donorstore"
	"lifelink-workers/internal/matching"
	"lifelink-workers/internal/workers/matching/jobutil"
)

const TaskType = "record-donation"

type Store interface {
	RecordDonation(ctx context.Context, d donorstore.Donation) (donorstore.Donation, error)
}

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
	if err := jobutil.ParseInput(validation.RecordDonationInput, job.Variables, &input); err != nil {
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
	now := h.clock.Now()
	donatedAt := now
	if input.DonatedAt != nil {
		donatedAt = *input.DonatedAt
		if donatedAt.After(now) {
			return nil, errors.NewInputValidationFailedError("donatedAt must not be in the future")
		}
	}

	notes := input.Notes
	if notes == "" && input.RequestID > 0 {
		notes = fmt.Sprintf("request %d", input.RequestID)
	}

	d, err := h.store.RecordDonation(ctx, donorstore.Donation{
		DonorID:   input.DonorID,
		RequestID: input.RequestID,
		DonatedAt: donatedAt,
		Notes:     notes,
	})
	if err != nil {
		if jobutil.NotFound(err) {
			return nil, errors.NewDonorNotFoundError(input.DonorID)
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewQueryTimeoutError("record_donation")
		}
		return nil, errors.NewDatabaseUpdateFailedError("record_donation", err)
	}

	cooldown := h.settings.Snapshot().CooldownDays
	next := donatedAt.AddDate(0, 0, cooldown)

	h.logger.Info("donation recorded", map[string]interface{}{
		"donationId":     d.ID,
		"donorId":        d.DonorID,
		"requestId":      d.RequestID,
		"nextEligibleAt": next.Format("2006-01-02"),
	})

	return &Output{
		DonationID:     d.ID,
		DonorID:        d.DonorID,
		RequestID:      d.RequestID,
		DonatedAt:      donatedAt,
		NextEligibleAt: next,
		Available:      false,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
