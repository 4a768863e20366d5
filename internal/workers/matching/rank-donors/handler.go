// internal/workers/matching/rank-donors/handler.go
package rankdonors

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"lifelink-workers/internal/common/config"
	"lifelink-workers/internal/common/errors"
	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/common/metrics"
	"lifelink-workers/internal/common/observability"
	"lifelink-workers/internal/common/validation"
	"lifelink-workers/internal/donorindex"
	"lifelink-workers/internal/matching"
	"lifelink-workers/internal/workers/matching/jobutil"
)

const TaskType = "rank-donors"

type Store interface {
	Request(ctx context.Context, id int64) (matching.RequestProfile, error)
	Candidates(ctx context.Context, groups []matching.BloodGroup) ([]matching.DonorProfile, error)
}

type Index interface {
	Candidates(ctx context.Context, q donorindex.CandidateQuery) ([]matching.DonorProfile, error)
}

// Dependencies wires a Handler. Index is optional; without it every
// ranking reads candidates from the store.
type Dependencies struct {
	Store         Store
	Index         Index
	Settings      matching.SettingsProvider
	Clock         matching.Clock
	Observability *observability.Observability
	Logger        logger.Logger
}

type Handler struct {
	config   *Config
	store    Store
	index    Index
	settings matching.SettingsProvider
	clock    matching.Clock
	obs      *observability.Observability
	reporter *jobutil.Reporter
	logger   logger.Logger
}

func NewHandler(cfg *Config, deps Dependencies) *Handler {
	log := deps.Logger.WithFields(map[string]interface{}{"taskType": TaskType})
	clock := deps.Clock
	if clock == nil {
		clock = matching.SystemClock{}
	}
	return &Handler{
		config:   cfg,
		store:    deps.Store,
		index:    deps.Index,
		settings: deps.Settings,
		clock:    clock,
		obs:      deps.Observability,
		reporter: jobutil.NewReporter(TaskType, deps.Observability, log),
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
	if err := jobutil.ParseInput(validation.RankDonorsInput, job.Variables, &input); err != nil {
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

	// one snapshot for the whole ranking call
	snapshot := h.settings.Snapshot()

	source := input.Source
	if source == "" {
		source = h.config.DefaultSource
	}
	pool, source, err := h.loadCandidates(ctx, request, source)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ranking := matching.NewRanker(matching.FixedSettings(snapshot), h.clock).Rank(request, pool, input.Limit)
	elapsed := time.Since(start)

	h.record(ctx, request, source, ranking)

	fields := map[string]interface{}{
		"requestId":  request.ID,
		"bloodGroup": string(request.BloodGroup),
		"source":     source,
		"candidates": ranking.Stats.PoolSize,
		"eligible":   ranking.Stats.Eligible,
		"inCooldown": ranking.Stats.InCooldown,
		"returned":   ranking.Stats.Returned,
		"strong":     ranking.Stats.Strong,
		"duration":   elapsed.String(),
	}
	if h.config.SlowThreshold > 0 && elapsed > h.config.SlowThreshold {
		h.logger.Warn("slow ranking", fields)
	} else {
		h.logger.Info("donors ranked", fields)
	}

	return buildOutput(request, source, ranking), nil
}

func (h *Handler) resolveRequest(ctx context.Context, input *Input) (matching.RequestProfile, error) {
	var request matching.RequestProfile

	if input.RequestID > 0 {
		var err error
		request, err = h.store.Request(ctx, input.RequestID)
		if err != nil {
			if jobutil.NotFound(err) {
				return request, errors.NewRequestNotFoundError(input.RequestID)
			}
			return request, jobutil.StoreError(ctx, "blood_request", err)
		}
	} else {
		in := input.Request
		if in == nil {
			return request, errors.NewInputValidationFailedError("requestId or request is required")
		}
		urgency, err := matching.ParseUrgency(in.Urgency)
		if err != nil {
			return request, errors.NewInputValidationFailedError(err.Error())
		}
		request = matching.RequestProfile{
			RequesterID: in.RequesterID,
			BloodGroup:  matching.BloodGroup(in.BloodGroup),
			Location:    matching.Coordinates{Latitude: in.Latitude, Longitude: in.Longitude},
			Urgency:     urgency,
			CreatedAt:   h.clock.Now(),
		}
	}

	group, err := matching.ParseBloodGroup(string(request.BloodGroup))
	if err != nil {
		return request, errors.NewInvalidBloodGroupError(string(request.BloodGroup))
	}
	request.BloodGroup = group
	return request, nil
}

func (h *Handler) loadCandidates(ctx context.Context, request matching.RequestProfile, source string) ([]matching.DonorProfile, string, error) {
	groups := matching.SearchGroups(request.BloodGroup)

	if source == config.CandidateSourceElasticsearch {
		if h.index != nil {
			pool, err := h.index.Candidates(ctx, donorindex.CandidateQuery{Groups: groups})
			if err != nil {
				return nil, source, jobutil.SearchError(ctx, h.config.IndexName, err)
			}
			return pool, source, nil
		}
		h.logger.Warn("search index not configured, reading candidates from postgres", map[string]interface{}{
			"requestId": request.ID,
		})
		source = config.CandidateSourcePostgres
	}

	pool, err := h.store.Candidates(ctx, groups)
	if err != nil {
		return nil, source, jobutil.StoreError(ctx, "donor_candidates", err)
	}
	return pool, source, nil
}

func (h *Handler) record(ctx context.Context, request matching.RequestProfile, source string, r matching.Ranking) {
	metrics.RankingsTotal.WithLabelValues(string(request.BloodGroup), source).Inc()
	metrics.RankingCandidates.Observe(float64(r.Stats.PoolSize))
	metrics.RankingReturned.WithLabelValues(string(matching.TierStrong)).Observe(float64(r.Stats.Strong))
	metrics.RankingReturned.WithLabelValues(string(matching.TierModerate)).Observe(float64(r.Stats.Returned - r.Stats.Strong))
	metrics.DonorsInCooldown.Add(float64(r.Stats.InCooldown))
	if len(r.Results) > 0 {
		h.obs.RecordTopScore(ctx, string(request.BloodGroup), r.Results[0].Score)
	}
}

func buildOutput(request matching.RequestProfile, source string, r matching.Ranking) *Output {
	donors := make([]RankedDonor, len(r.Results))
	for i, m := range r.Results {
		donors[i] = RankedDonor{
			DonorID:    m.Donor.ID,
			FullName:   m.Donor.FullName,
			BloodGroup: string(m.Donor.BloodGroup),
			Score:      m.Score,
			DistanceKm: m.DistanceKm,
			Tier:       string(m.Tier),
			Breakdown:  m.Breakdown,
		}
	}
	return &Output{
		RequestID:      request.ID,
		BloodGroup:     string(request.BloodGroup),
		Urgency:        string(request.Urgency),
		RankedDonors:   donors,
		CandidateCount: r.Stats.PoolSize,
		EligibleCount:  r.Stats.Eligible,
		StrongCount:    r.Stats.Strong,
		Weights:        r.Settings.Weights,
		Source:         source,
		RankedAt:       r.RankedAt,
	}
}

// Execute runs a ranking without a job, for tests and direct callers.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
