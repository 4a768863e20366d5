package notifydonors

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelink-workers/internal/common/camunda/camundatest"
	"lifelink-workers/internal/common/config"
	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/donorstore"
	"lifelink-workers/internal/matching"
)

type fakeStore struct {
	request     func(ctx context.Context, id int64) (matching.RequestProfile, error)
	donorsByIDs func(ctx context.Context, ids []int64) ([]matching.DonorProfile, error)
}

func (f *fakeStore) Request(ctx context.Context, id int64) (matching.RequestProfile, error) {
	return f.request(ctx, id)
}

func (f *fakeStore) DonorsByIDs(ctx context.Context, ids []int64) ([]matching.DonorProfile, error) {
	return f.donorsByIDs(ctx, ids)
}

type fakePublisher struct {
	mu      sync.Mutex
	inputs  []*sns.PublishInput
	failFor map[string]error
}

func (p *fakePublisher) Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, input)
	if err := p.failFor[awssdk.ToString(input.PhoneNumber)]; err != nil {
		return nil, err
	}
	return &sns.PublishOutput{MessageId: awssdk.String("msg-" + awssdk.ToString(input.PhoneNumber))}, nil
}

func (p *fakePublisher) phones() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.inputs))
	for i, in := range p.inputs {
		out[i] = awssdk.ToString(in.PhoneNumber)
	}
	return out
}

var donors = map[int64]matching.DonorProfile{
	1: {ID: 1, FullName: "Asha", MobileNumber: "+91 98765-43210"},
	2: {ID: 2, FullName: "Ravi", MobileNumber: "098450 12345"},
	3: {ID: 3, FullName: "Meena", MobileNumber: "n/a"},
}

func storeWithUrgency(urgency matching.Urgency) *fakeStore {
	return &fakeStore{
		request: func(ctx context.Context, id int64) (matching.RequestProfile, error) {
			if id != 7 {
				return matching.RequestProfile{}, donorstore.ErrRequestNotFound
			}
			return matching.RequestProfile{ID: 7, BloodGroup: matching.OPositive, Urgency: urgency}, nil
		},
		donorsByIDs: func(ctx context.Context, ids []int64) ([]matching.DonorProfile, error) {
			var out []matching.DonorProfile
			for _, id := range ids {
				if d, ok := donors[id]; ok {
					out = append(out, d)
				}
			}
			return out, nil
		},
	}
}

func ranked() []RankedDonor {
	return []RankedDonor{
		{DonorID: 1, Score: 92, Tier: matching.TierStrong, DistanceKm: 2.4},
		{DonorID: 2, Score: 71, Tier: matching.TierModerate, DistanceKm: 11},
		{DonorID: 3, Score: 85, Tier: matching.TierStrong},
		{DonorID: 9, Score: 60, Tier: matching.TierModerate},
	}
}

func newHandler(t *testing.T, cfg *Config, store Store, pub Publisher) *Handler {
	clock := matching.FixedClock(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	return NewHandler(cfg, store, pub, clock, nil, logger.NewTestLogger(t))
}

func statuses(out *Output) map[int64]string {
	m := make(map[int64]string, len(out.Deliveries))
	for _, d := range out.Deliveries {
		m[d.DonorID] = d.Status
	}
	return m
}

// ==========================
// Selection
// ==========================

func TestHandler_Execute_Selection(t *testing.T) {
	tests := []struct {
		name       string
		urgency    matching.Urgency
		strongOnly bool
		want       map[int64]string
		wantPhones []string
	}{
		{
			name:    "high urgency notifies every ranked donor",
			urgency: matching.UrgencyHigh,
			want: map[int64]string{
				1: StatusSent, 2: StatusSent, 3: StatusSkipped, 9: StatusSkipped,
			},
			wantPhones: []string{"+919876543210", "+919845012345"},
		},
		{
			name:    "medium urgency notifies strong tier only",
			urgency: matching.UrgencyMedium,
			want: map[int64]string{
				1: StatusSent, 2: StatusSkipped, 3: StatusSkipped, 9: StatusSkipped,
			},
			wantPhones: []string{"+919876543210"},
		},
		{
			name:       "strongOnly overrides high urgency",
			urgency:    matching.UrgencyHigh,
			strongOnly: true,
			want: map[int64]string{
				1: StatusSent, 2: StatusSkipped, 3: StatusSkipped, 9: StatusSkipped,
			},
			wantPhones: []string{"+919876543210"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			h := newHandler(t, DefaultConfig(), storeWithUrgency(tt.urgency), pub)

			out, err := h.Execute(context.Background(), &Input{RequestID: 7, StrongOnly: tt.strongOnly, RankedDonors: ranked()})
			require.NoError(t, err)

			assert.Equal(t, tt.want, statuses(out))
			assert.Equal(t, tt.wantPhones, pub.phones())
			assert.Equal(t, len(tt.wantPhones), out.Sent)
			assert.Equal(t, 4-len(tt.wantPhones), out.Skipped)
			assert.NotEmpty(t, out.BatchID)
			assert.Equal(t, tt.urgency, out.Urgency)
		})
	}
}

func TestHandler_Execute_MessageContent(t *testing.T) {
	pub := &fakePublisher{}
	cfg := DefaultConfig()
	cfg.SenderID = "LIFELNK"
	h := newHandler(t, cfg, storeWithUrgency(matching.UrgencyHigh), pub)

	_, err := h.Execute(context.Background(), &Input{RequestID: 7, RankedDonors: ranked()[:1]})
	require.NoError(t, err)

	require.Len(t, pub.inputs, 1)
	msg := awssdk.ToString(pub.inputs[0].Message)
	assert.Contains(t, msg, "LifeLink: Hi Asha")
	assert.Contains(t, msg, "O+ blood 2.4 km from you")
	assert.Equal(t, "LIFELNK", awssdk.ToString(pub.inputs[0].MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
}

func TestHandler_Execute_DisabledSkipsEveryone(t *testing.T) {
	pub := &fakePublisher{}
	cfg := DefaultConfig()
	cfg.Enabled = false
	h := newHandler(t, cfg, storeWithUrgency(matching.UrgencyHigh), pub)

	out, err := h.Execute(context.Background(), &Input{RequestID: 7, RankedDonors: ranked()})
	require.NoError(t, err)

	assert.Equal(t, 4, out.Skipped)
	assert.Zero(t, out.Sent)
	assert.Empty(t, pub.inputs)
}

// ==========================
// Failures
// ==========================

func TestHandler_Execute_PartialFailureCompletes(t *testing.T) {
	pub := &fakePublisher{failFor: map[string]error{"+919845012345": errors.New("throttled")}}
	h := newHandler(t, DefaultConfig(), storeWithUrgency(matching.UrgencyHigh), pub)

	out, err := h.Execute(context.Background(), &Input{RequestID: 7, RankedDonors: ranked()})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Sent)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, StatusFailed, statuses(out)[2])
}

func TestHandler_Handle_AllFailedIsRetried(t *testing.T) {
	pub := &fakePublisher{failFor: map[string]error{"+919876543210": errors.New("opted out")}}
	h := newHandler(t, DefaultConfig(), storeWithUrgency(matching.UrgencyLow), pub)
	client := camundatest.NewJobClient()

	h.Handle(client, camundatest.NewJob(30, TaskType, map[string]interface{}{
		"requestId": 7,
		"rankedDonors": []map[string]interface{}{
			{"donorId": 1, "score": 92, "tier": "strong"},
		},
	}))

	failed := client.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, int32(2), failed[0].Retries)
	assert.Contains(t, failed[0].Variables, `"errorCode":"NOTIFICATION_SEND_FAILED"`)
}

func TestHandler_Handle_RequestNotFound(t *testing.T) {
	h := newHandler(t, DefaultConfig(), storeWithUrgency(matching.UrgencyHigh), &fakePublisher{})
	client := camundatest.NewJobClient()

	h.Handle(client, camundatest.NewJob(31, TaskType, map[string]interface{}{
		"requestId":    8,
		"rankedDonors": []map[string]interface{}{},
	}))

	thrown := client.Thrown()
	require.Len(t, thrown, 1)
	assert.Equal(t, "REQUEST_NOT_FOUND", thrown[0].ErrorCode)
}

func TestHandler_Handle_Completes(t *testing.T) {
	h := newHandler(t, DefaultConfig(), storeWithUrgency(matching.UrgencyHigh), &fakePublisher{})
	client := camundatest.NewJobClient()

	h.Handle(client, camundatest.NewJob(32, TaskType, `{"requestId": 7, "rankedDonors": [{"donorId": 2, "score": 70, "tier": "moderate"}]}`))

	var out Output
	require.NoError(t, client.DecodeCompletion(&out))
	require.Len(t, out.Deliveries, 1)
	assert.Equal(t, "msg-+919845012345", out.Deliveries[0].MessageID)
}

func TestConfigFrom(t *testing.T) {
	app := &config.Config{Workers: map[string]config.WorkerConfig{TaskType: {Timeout: 5000}}}
	app.Notifications.SMS.Enabled = true
	app.Notifications.SMS.CountryCode = "+44"
	app.Integrations.AWS.SNS.DefaultSMSSenderID = "LIFELNK"

	cfg := ConfigFrom(app)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.False(t, cfg.Enabled, "SNS integration is off")
	assert.Equal(t, "+44", cfg.CountryCode)
	assert.Equal(t, "LifeLink", cfg.MessageTitle)

	app.Integrations.AWS.SNS.Enabled = true
	assert.True(t, ConfigFrom(app).Enabled)
}
