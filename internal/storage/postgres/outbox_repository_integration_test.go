package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

func orderCreated(orderID string, payload string) domain.OutboxMessage {
	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   orderID,
		EventType:     domain.EventTypeOrderCreated,
	}
	if payload != "" {
		msg.Payload = []byte(payload)
	}
	return msg
}

func newClockedOutbox(store *Store, start time.Time) (*OutboxRepository, func(time.Duration)) {
	repo := NewOutboxRepository(store)
	now := start
	repo.now = func() time.Time { return now }
	return repo, func(d time.Duration) { now = now.Add(d) }
}

func TestOutboxRepository_PostgresLifecycle(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo, advance := newClockedOutbox(store, start)
	ctx := context.Background()

	first, err := repo.Enqueue(ctx, orderCreated("order-1", `{"order_id":"order-1"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	advance(time.Second)
	fixed := orderCreated("order-2", "")
	fixed.ID = "outbox-fixed-id"
	second, err := repo.Enqueue(ctx, fixed)
	require.NoError(t, err)
	assert.Equal(t, "outbox-fixed-id", second.ID)

	_, err = repo.Enqueue(ctx, fixed)
	assert.ErrorContains(t, err, "already exists")

	pending, err := repo.PullPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(pending[0].Payload))
	assert.Equal(t, "null", string(pending[1].Payload))

	limited, err := repo.PullPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PendingCount)
	assert.True(t, stats.OldestPendingAt.Equal(start), "oldest=%s", stats.OldestPendingAt)

	advance(time.Second)
	require.NoError(t, repo.MarkSent(ctx, first.ID))
	require.NoError(t, repo.MarkFailed(ctx, second.ID))

	pending, err = repo.PullPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
	assert.True(t, stats.OldestPendingAt.IsZero())

	var (
		status      string
		attempts    int
		publishedAt *time.Time
	)
	require.NoError(t, store.Pool().QueryRow(ctx,
		`SELECT status, attempt_count, published_at FROM outbox_messages WHERE id = $1`, first.ID,
	).Scan(&status, &attempts, &publishedAt))
	assert.Equal(t, outboxSent, status)
	assert.Equal(t, 1, attempts)
	require.NotNil(t, publishedAt)
	assert.True(t, publishedAt.Equal(start.Add(2*time.Second)))

	require.NoError(t, store.Pool().QueryRow(ctx,
		`SELECT status, published_at FROM outbox_messages WHERE id = $1`, second.ID,
	).Scan(&status, &publishedAt))
	assert.Equal(t, outboxFailed, status)
	assert.Nil(t, publishedAt)
}

func TestOutboxRepository_PostgresMarkMissing(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)
	ctx := context.Background()

	err := repo.MarkSent(ctx, "missing-outbox")
	assert.ErrorIs(t, err, domain.ErrOutboxPublish)
	assert.ErrorContains(t, err, "missing-outbox")

	assert.ErrorIs(t, repo.MarkFailed(ctx, "missing-outbox"), domain.ErrOutboxPublish)
}

func TestOutboxRepository_PostgresEnqueueRollsBackWithTx(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)
	tx := NewTxManager(store)
	ctx := context.Background()
	boom := errors.New("boom")

	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := repo.Enqueue(ctx, orderCreated("order-rolled-back", `{}`)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
}
