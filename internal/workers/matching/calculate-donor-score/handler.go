// internal/workers/matching/calculate-donor-score/handler.go
package calculatedonorscore

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"lifelink-workers/internal/common/errors"
	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/common/observability"
	"lifelink-workers/internal/common/validation"
	"lifelink-workers/internal/matching"
	"lifelink-workers/internal/workers/matching/jobutil"
)

const TaskType = "calculate-donor-score"

type Store interface {
	Donor(ctx context.Context, id int64) (matching.DonorProfile, error)
	Request(ctx context.Context, id int64) (matching.RequestProfile, error)
}

type Handler struct {
	config   *Config
	store    Store
	ranker   *matching.Ranker
	reporter *jobutil.Reporter
	logger   logger.Logger
}

func NewHandler(cfg *Config, store Store, settings matching.SettingsProvider, clock matching.Clock, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   cfg,
		store:    store,
		ranker:   matching.NewRanker(settings, clock),
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
	if err := jobutil.ParseInput(validation.CalculateDonorScoreInput, job.Variables, &input); err != nil {
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
	request, err := h.resolveRequest(ctx, input)
	if err != nil {
		return nil, err
	}

	donor, err := h.store.Donor(ctx, input.DonorID)
	if err != nil {
		if jobutil.NotFound(err) {
			return nil, errors.NewDonorNotFoundError(input.DonorID)
		}
		return nil, jobutil.StoreError(ctx, "donor", err)
	}

	b, eligible, tier := h.ranker.ScoreDonor(request, donor)

	h.logger.Info("donor scored", map[string]interface{}{
		"donorId":   donor.ID,
		"requestId": request.ID,
		"score":     b.Total,
		"eligible":  eligible,
		"blocked":   b.Blocked,
	})

	return &Output{
		DonorID:    donor.ID,
		RequestID:  request.ID,
		Score:      b.Total,
		Breakdown:  b,
		DistanceKm: b.DistanceKm,
		Compatible: donor.BloodGroup.CanDonateTo(request.BloodGroup),
		Eligible:   eligible,
		Blocked:    b.Blocked,
		Tier:       string(tier),
	}, nil
}

func (h *Handler) resolveRequest(ctx context.Context, input *Input) (matching.RequestProfile, error) {
	if input.RequestID > 0 {
		request, err := h.store.Request(ctx, input.RequestID)
		if err != nil {
			if jobutil.NotFound(err) {
				return request, errors.NewRequestNotFoundError(input.RequestID)
			}
			return request, jobutil.StoreError(ctx, "blood_request", err)
		}
		return request, nil
	}

	if input.Request == nil {
		return matching.RequestProfile{}, errors.NewInputValidationFailedError("requestId or request is required")
	}
	group, err := matching.ParseBloodGroup(input.Request.BloodGroup)
	if err != nil {
		return matching.RequestProfile{}, errors.NewInvalidBloodGroupError(input.Request.BloodGroup)
	}
	loc := matching.Coordinates{Latitude: input.Request.Latitude, Longitude: input.Request.Longitude}
	if !loc.Valid() {
		return matching.RequestProfile{}, errors.NewInvalidCoordinatesError("request latitude/longitude out of range")
	}
	return matching.RequestProfile{
		RequesterID: input.Request.RequesterID,
		BloodGroup:  group,
		Location:    loc,
		Urgency:     matching.UrgencyMedium,
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
