package queue

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/regflow_go_server/internal/pkg/pubsub"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestNewInbox(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	assert.Equal(t, int64(50), NewInbox(client, 0).size)
	assert.Equal(t, int64(5), NewInbox(client, 5).size)
}

func TestInbox_PushDrain(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewInbox(client, 10)
	ctx := context.Background()

	t.Run("drain empty inbox", func(t *testing.T) {
		events, err := q.Drain(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("drain returns oldest first and clears", func(t *testing.T) {
		for _, typ := range []string{pubsub.EventRulesGenerated, pubsub.EventRulesApproved} {
			require.NoError(t, q.Push(ctx, 1, &pubsub.Event{Type: typ, CycleID: 58, ReportID: 156}))
		}

		n, err := q.Length(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		events, err := q.Drain(ctx, 1)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, pubsub.EventRulesGenerated, events[0].Type)
		assert.Equal(t, pubsub.EventRulesApproved, events[1].Type)

		n, err = q.Length(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("inboxes are per user", func(t *testing.T) {
		require.NoError(t, q.Push(ctx, 2, &pubsub.Event{Type: pubsub.EventJobFailed}))

		events, err := q.Drain(ctx, 3)
		require.NoError(t, err)
		assert.Empty(t, events)

		events, err = q.Drain(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}

func TestInbox_Capped(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewInbox(client, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(ctx, 9, &pubsub.Event{Type: pubsub.EventJobFailed, Message: fmt.Sprintf("m%d", i)}))
	}

	events, err := q.Drain(ctx, 9)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "m2", events[0].Message)
	assert.Equal(t, "m4", events[2].Message)
}
