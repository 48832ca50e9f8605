package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/regflow_go_server/internal/pkg/pubsub"
)

const inboxKeyPrefix = "notice_inbox"

// Inbox 离线用户的通知收件箱，每个用户一个定长 list
type Inbox struct {
	client *redis.Client
	size   int64
}

func NewInbox(client *redis.Client, size int) *Inbox {
	if size <= 0 {
		size = 50
	}
	return &Inbox{
		client: client,
		size:   int64(size),
	}
}

func (q *Inbox) key(userID int64) string {
	return fmt.Sprintf("%s:%d", inboxKeyPrefix, userID)
}

// Push 将通知加入收件箱，超出容量时丢弃最旧的
func (q *Inbox) Push(ctx context.Context, userID int64, event *pubsub.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := q.key(userID)
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, q.size-1)
		return nil
	})
	return err
}

// Drain 取出并清空收件箱，按时间从旧到新返回
func (q *Inbox) Drain(ctx context.Context, userID int64) ([]*pubsub.Event, error) {
	key := q.key(userID)

	var items *redis.StringSliceCmd
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to drain inbox: %w", err)
	}

	raw := items.Val()
	events := make([]*pubsub.Event, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var e pubsub.Event
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			continue
		}
		events = append(events, &e)
	}
	return events, nil
}

// Length 获取收件箱长度
func (q *Inbox) Length(ctx context.Context, userID int64) (int64, error) {
	return q.client.LLen(ctx, q.key(userID)).Result()
}
