package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelWorkflowEvents = "workflow_events"
)

// 事件类型
const (
	EventJobProgress        = "job_progress"
	EventRulesGenerated     = "rules_generated"
	EventProfilingExecuted  = "profiling_executed"
	EventJobFailed          = "job_failed"
	EventJobCancelled       = "job_cancelled"
	EventRulesApproved      = "rules_approved"
	EventRulesRejected      = "rules_rejected"
	EventPhaseStartConflict = "phase_start_conflict"
)

// IsNotice 是否为用户可见的通知（而非进度事件）
func IsNotice(eventType string) bool {
	return eventType != EventJobProgress
}

// Event 工作流事件
type Event struct {
	Type      string                 `json:"type"`
	UserID    int64                  `json:"user_id,omitempty"`
	CycleID   int64                  `json:"cycle_id"`
	ReportID  int64                  `json:"report_id"`
	JobID     string                 `json:"job_id,omitempty"`
	Status    string                 `json:"status,omitempty"`
	Progress  int                    `json:"progress"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish 发布事件
func (p *Publisher) Publish(ctx context.Context, event *Event) error {
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.client.Publish(ctx, ChannelWorkflowEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅工作流事件，阻塞直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*Event)) error {
	pubsub := s.client.Subscribe(ctx, ChannelWorkflowEvents)
	defer pubsub.Close()

	// 等待订阅确认，避免丢失紧随其后的消息
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue // 忽略解析错误
			}

			handler(&event)
		}
	}
}
