// internal/tasks/deliverytrack/service_test.go
package deliverytrack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nudge-engine/internal/common/logger"
	"nudge-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type mockApplier struct {
	applied []models.DeliveryEvent
	matched bool
	err     error
	emails  map[string]string
}

func (m *mockApplier) ApplyDeliveryEvent(ctx context.Context, ev models.DeliveryEvent, at time.Time) (bool, error) {
	m.applied = append(m.applied, ev)
	return m.matched, m.err
}

func (m *mockApplier) RecipientEmailByProviderID(ctx context.Context, providerMessageID string) (string, error) {
	return m.emails[providerMessageID], nil
}

type mockParties struct {
	bounced      []string
	unsubscribed []string
	tokens       map[string]bool
}

func (m *mockParties) MarkEmailBounced(ctx context.Context, email string) (int64, error) {
	m.bounced = append(m.bounced, email)
	return 1, nil
}

func (m *mockParties) UnsubscribeByToken(ctx context.Context, token string) (bool, error) {
	m.unsubscribed = append(m.unsubscribed, token)
	return m.tokens[token], nil
}

type redisDeduper struct {
	client *redis.Client
}

func (d *redisDeduper) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return d.client.SetNX(ctx, key, value, expiration).Result()
}

type failingDeduper struct{}

func (failingDeduper) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return false, errors.New("redis unavailable")
}

func newTestDeduper(t *testing.T) Deduper {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return &redisDeduper{client: client}
}

func newTestService(t *testing.T, applier *mockApplier, parties *mockParties, dedupe Deduper) *Service {
	if dedupe == nil {
		dedupe = newTestDeduper(t)
	}
	return NewService(applier, parties, dedupe, logger.NewTestLogger(t))
}

// ==========================
// Event ingestion
// ==========================

func TestHandleEvent_AppliesDeliveredEvent(t *testing.T) {
	applier := &mockApplier{matched: true}
	svc := newTestService(t, applier, &mockParties{}, nil)

	err := svc.HandleEvent(context.Background(), models.DeliveryEvent{
		Type: models.DeliveryEventDelivered, ProviderMessageID: "ses-1",
	})

	require.NoError(t, err)
	require.Len(t, applier.applied, 1)
	assert.Equal(t, "ses-1", applier.applied[0].ProviderMessageID)
}

func TestHandleEvent_DuplicateWebhookDeliveriesAreAbsorbed(t *testing.T) {
	applier := &mockApplier{matched: true}
	svc := newTestService(t, applier, &mockParties{}, nil)
	ev := models.DeliveryEvent{Type: models.DeliveryEventOpened, ProviderMessageID: "ses-1"}

	require.NoError(t, svc.HandleEvent(context.Background(), ev))
	require.NoError(t, svc.HandleEvent(context.Background(), ev))
	require.NoError(t, svc.HandleEvent(context.Background(), ev))

	assert.Len(t, applier.applied, 1)
}

func TestHandleEvent_SameIDDifferentTypesBothApply(t *testing.T) {
	applier := &mockApplier{matched: true}
	svc := newTestService(t, applier, &mockParties{}, nil)

	require.NoError(t, svc.HandleEvent(context.Background(),
		models.DeliveryEvent{Type: models.DeliveryEventDelivered, ProviderMessageID: "ses-1"}))
	require.NoError(t, svc.HandleEvent(context.Background(),
		models.DeliveryEvent{Type: models.DeliveryEventOpened, ProviderMessageID: "ses-1"}))

	assert.Len(t, applier.applied, 2)
}

func TestHandleEvent_UnknownTypeIsDropped(t *testing.T) {
	applier := &mockApplier{matched: true}
	svc := newTestService(t, applier, &mockParties{}, nil)

	err := svc.HandleEvent(context.Background(), models.DeliveryEvent{
		Type: "rendered", ProviderMessageID: "ses-1",
	})

	require.NoError(t, err)
	assert.Empty(t, applier.applied)
}

func TestHandleEvent_UnknownProviderIDIsDropped(t *testing.T) {
	applier := &mockApplier{matched: false}
	parties := &mockParties{}
	svc := newTestService(t, applier, parties, nil)

	err := svc.HandleEvent(context.Background(), models.DeliveryEvent{
		Type: models.DeliveryEventBounced, ProviderMessageID: "never-seen",
	})

	require.NoError(t, err)
	assert.Len(t, applier.applied, 1)
	assert.Empty(t, parties.bounced)
}

func TestHandleEvent_BounceFlagsRecipient(t *testing.T) {
	applier := &mockApplier{
		matched: true,
		emails:  map[string]string{"ses-1": "buyer@example.com"},
	}
	parties := &mockParties{}
	svc := newTestService(t, applier, parties, nil)

	err := svc.HandleEvent(context.Background(), models.DeliveryEvent{
		Type: models.DeliveryEventBounced, ProviderMessageID: "ses-1", Detail: "mailbox full",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"buyer@example.com"}, parties.bounced)
}

func TestHandleEvent_DedupeOutageStillProcesses(t *testing.T) {
	applier := &mockApplier{matched: true}
	svc := newTestService(t, applier, &mockParties{}, failingDeduper{})

	err := svc.HandleEvent(context.Background(), models.DeliveryEvent{
		Type: models.DeliveryEventDelivered, ProviderMessageID: "ses-1",
	})

	require.NoError(t, err)
	assert.Len(t, applier.applied, 1)
}

// ==========================
// Unsubscribe
// ==========================

func TestUnsubscribe_ConsumesToken(t *testing.T) {
	parties := &mockParties{tokens: map[string]bool{"tok-1": true}}
	svc := newTestService(t, &mockApplier{}, parties, nil)

	ok, err := svc.Unsubscribe(context.Background(), "tok-1")

	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Unsubscribe(context.Background(), "tok-unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}
