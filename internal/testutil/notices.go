package testutil

import (
	"context"
	"sync"

	"github.com/qs3c/regflow_go_server/internal/pkg/pubsub"
)

// NoticeRecorder 记录发出的事件，实现 notify.Notifier
type NoticeRecorder struct {
	mu     sync.Mutex
	events []*pubsub.Event
}

func (r *NoticeRecorder) Notify(_ context.Context, event *pubsub.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *NoticeRecorder) Events() []*pubsub.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*pubsub.Event(nil), r.events...)
}

// Count 返回某类型事件的数量
func (r *NoticeRecorder) Count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// Last 返回某类型最近一次的事件
func (r *NoticeRecorder) Last(eventType string) *pubsub.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == eventType {
			return r.events[i]
		}
	}
	return nil
}
