// internal/workers/matching/notify-matched-donors/handler.go
package notifydonors

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"lifelink-workers/internal/common/aws"
	"lifelink-workers/internal/common/errors"
	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/common/metrics"
	"lifelink-workers/internal/common/observability"
	"lifelink-workers/internal/common/validation"
	"lifelink-workers/internal/matching"
	"lifelink-workers/internal/workers/matching/jobutil"
)

const TaskType = "notify-matched-donors"

const (
	reasonDisabled     = "sms disabled"
	reasonTier         = "not selected for urgency"
	reasonUnknownDonor = "donor not found"
	reasonNoPhone      = "invalid mobile number"
)

type Store interface {
	Request(ctx context.Context, id int64) (matching.RequestProfile, error)
	DonorsByIDs(ctx context.Context, ids []int64) ([]matching.DonorProfile, error)
}

// Publisher is satisfied by *aws.SNSClient and *sns.Client.
type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Handler struct {
	config    *Config
	store     Store
	publisher Publisher
	clock     matching.Clock
	reporter  *jobutil.Reporter
	logger    logger.Logger
}

// NewHandler accepts a nil publisher; every donor is then skipped.
func NewHandler(cfg *Config, store Store, publisher Publisher, clock matching.Clock, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	if clock == nil {
		clock = matching.SystemClock{}
	}
	return &Handler{
		config:    cfg,
		store:     store,
		publisher: publisher,
		clock:     clock,
		reporter:  jobutil.NewReporter(TaskType, obs, log),
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := jobutil.ParseInput(validation.NotifyMatchedDonorsInput, job.Variables, &input); err != nil {
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
	request, err := h.store.Request(ctx, input.RequestID)
	if err != nil {
		if jobutil.NotFound(err) {
			return nil, errors.NewRequestNotFoundError(input.RequestID)
		}
		return nil, jobutil.StoreError(ctx, "request", err)
	}

	out := &Output{
		BatchID:    uuid.New().String(),
		RequestID:  request.ID,
		Urgency:    request.Urgency,
		NotifiedAt: h.clock.Now(),
	}

	selected, skipped := h.selectDonors(request, input)
	out.Deliveries = append(out.Deliveries, skipped...)

	if len(selected) > 0 && (!h.config.Enabled || h.publisher == nil) {
		for _, rd := range selected {
			out.Deliveries = append(out.Deliveries, Delivery{DonorID: rd.DonorID, Status: StatusSkipped, Reason: reasonDisabled})
		}
		selected = nil
	}

	if len(selected) > 0 {
		if err := h.send(ctx, request, selected, out); err != nil {
			return nil, err
		}
	}

	var lastFailure string
	for _, d := range out.Deliveries {
		switch d.Status {
		case StatusSent:
			out.Sent++
		case StatusFailed:
			out.Failed++
			lastFailure = d.Reason
		default:
			out.Skipped++
		}
		metrics.NotificationsSent.WithLabelValues(d.Status).Inc()
	}

	h.logger.Info("donor notifications processed", map[string]interface{}{
		"batchId":   out.BatchID,
		"requestId": out.RequestID,
		"urgency":   out.Urgency,
		"sent":      out.Sent,
		"failed":    out.Failed,
		"skipped":   out.Skipped,
	})

	if out.Failed > 0 && out.Sent == 0 {
		err := fmt.Errorf("%d of %d messages failed, last: %s", out.Failed, out.Failed+out.Sent, lastFailure)
		return nil, errors.NewNotificationSendFailedError("sms", err).
			WithMetadata("batchId", out.BatchID).
			WithMetadata("failed", out.Failed)
	}
	return out, nil
}

// selectDonors keeps every ranked donor for High urgency and only the
// strong tier otherwise.
func (h *Handler) selectDonors(request matching.RequestProfile, input *Input) (selected []RankedDonor, skipped []Delivery) {
	strongOnly := h.config.StrongOnly || input.StrongOnly || request.Urgency != matching.UrgencyHigh
	for _, rd := range input.RankedDonors {
		if strongOnly && rd.Tier != matching.TierStrong {
			skipped = append(skipped, Delivery{DonorID: rd.DonorID, Status: StatusSkipped, Reason: reasonTier})
			continue
		}
		selected = append(selected, rd)
	}
	return selected, skipped
}

// send appends one delivery per selected donor. Only a failed donor lookup
// aborts the batch.
func (h *Handler) send(ctx context.Context, request matching.RequestProfile, selected []RankedDonor, out *Output) error {
	ids := make([]int64, len(selected))
	for i, rd := range selected {
		ids[i] = rd.DonorID
	}
	donors, err := h.store.DonorsByIDs(ctx, ids)
	if err != nil {
		return jobutil.StoreError(ctx, "donors_by_ids", err)
	}
	byID := make(map[int64]matching.DonorProfile, len(donors))
	for _, d := range donors {
		byID[d.ID] = d
	}

	for _, rd := range selected {
		donor, ok := byID[rd.DonorID]
		if !ok {
			out.Deliveries = append(out.Deliveries, Delivery{DonorID: rd.DonorID, Status: StatusSkipped, Reason: reasonUnknownDonor})
			continue
		}
		phone, ok := validation.NormalizePhone(donor.MobileNumber, h.config.CountryCode)
		if !ok {
			out.Deliveries = append(out.Deliveries, Delivery{DonorID: rd.DonorID, Status: StatusSkipped, Reason: reasonNoPhone})
			continue
		}

		msg := aws.SMSInput(phone, h.message(request, donor, rd), h.config.SenderID)
		res, err := h.publisher.Publish(ctx, msg)
		if err != nil {
			h.logger.Warn("sms publish failed", map[string]interface{}{
				"donorId": rd.DonorID,
				"error":   err.Error(),
			})
			out.Deliveries = append(out.Deliveries, Delivery{DonorID: rd.DonorID, Status: StatusFailed, Reason: err.Error()})
			continue
		}

		d := Delivery{DonorID: rd.DonorID, Status: StatusSent}
		if res != nil && res.MessageId != nil {
			d.MessageID = *res.MessageId
		}
		out.Deliveries = append(out.Deliveries, d)
	}
	return nil
}

func (h *Handler) message(request matching.RequestProfile, donor matching.DonorProfile, rd RankedDonor) string {
	name := donor.FullName
	if name == "" {
		name = "donor"
	}
	msg := fmt.Sprintf("%s: Hi %s, a %s urgency request (#%d) needs %s blood",
		h.config.MessageTitle, name, request.Urgency, request.ID, request.BloodGroup)
	if rd.DistanceKm > 0 {
		msg += fmt.Sprintf(" %.1f km from you", rd.DistanceKm)
	}
	return msg + ". Open the app to respond if you can donate."
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
