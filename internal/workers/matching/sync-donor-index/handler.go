// internal/workers/matching/sync-donor-index/handler.go
package syncdonorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"lifelink-workers/internal/common/errors"
	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/common/metrics"
	"lifelink-workers/internal/common/observability"
	"lifelink-workers/internal/common/validation"
	"lifelink-workers/internal/donorindex"
	"lifelink-workers/internal/matching"
	"lifelink-workers/internal/workers/matching/jobutil"
)

const TaskType = "sync-donor-index"

type Store interface {
	AllDonors(ctx context.Context) ([]matching.DonorProfile, error)
	DonorsByIDs(ctx context.Context, ids []int64) ([]matching.DonorProfile, error)
}

type Index interface {
	Name() string
	EnsureIndex(ctx context.Context, recreate bool) (bool, error)
	BulkIndex(ctx context.Context, donors []matching.DonorProfile) (donorindex.BulkStats, error)
}

type Handler struct {
	config   *Config
	store    Store
	index    Index
	clock    matching.Clock
	reporter *jobutil.Reporter
	logger   logger.Logger
}

func NewHandler(cfg *Config, store Store, index Index, clock matching.Clock, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	if clock == nil {
		clock = matching.SystemClock{}
	}
	return &Handler{
		config:   cfg,
		store:    store,
		index:    index,
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
	if err := jobutil.ParseInput(validation.SyncDonorIndexInput, job.Variables, &input); err != nil {
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
	name := h.index.Name()

	created, err := h.index.EnsureIndex(ctx, input.Recreate)
	if err != nil {
		return nil, errors.NewIndexSyncFailedError(name, 0, err)
	}

	var donors []matching.DonorProfile
	if len(input.DonorIDs) > 0 {
		donors, err = h.store.DonorsByIDs(ctx, input.DonorIDs)
	} else {
		donors, err = h.store.AllDonors(ctx)
	}
	if err != nil {
		return nil, jobutil.StoreError(ctx, "donor_profiles", err)
	}

	out := &Output{
		Index:    name,
		Created:  created,
		Loaded:   len(donors),
		SyncedAt: h.clock.Now(),
	}
	if len(donors) == 0 {
		h.logger.Info("no donors to index", map[string]interface{}{"created": created})
		return out, nil
	}

	stats, err := h.index.BulkIndex(ctx, donors)
	metrics.IndexedDonors.WithLabelValues("indexed").Add(float64(stats.Indexed))
	metrics.IndexedDonors.WithLabelValues("failed").Add(float64(stats.Failed))
	if err != nil {
		return nil, errors.NewIndexSyncFailedError(name, int64(stats.Failed), err)
	}

	out.Indexed = stats.Indexed
	out.Failed = stats.Failed
	out.FailedIDs = stats.FailedIDs

	fields := map[string]interface{}{
		"created": created,
		"loaded":  out.Loaded,
		"indexed": out.Indexed,
		"failed":  out.Failed,
	}
	if stats.Failed > 0 && stats.Indexed == 0 {
		return nil, errors.NewIndexSyncFailedError(name, int64(stats.Failed),
			fmt.Errorf("none of %d donors were indexed", len(donors)))
	}
	if stats.Failed > 0 {
		h.logger.Warn("donor index sync partially failed", fields)
	} else {
		h.logger.Info("donor index synced", fields)
	}
	return out, nil
}

// Execute is also the entry point of the scheduled sync.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
