// Package notify delivers workflow events to users: published on redis, fanned out to
// websocket connections, and parked in a per-user inbox when the user is offline.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/pkg/pubsub"
	"github.com/qs3c/regflow_go_server/internal/pkg/queue"
	"github.com/qs3c/regflow_go_server/internal/pkg/ws"
)

// Notifier emits one workflow event. Delivery failures are the notifier's concern.
type Notifier interface {
	Notify(ctx context.Context, event *pubsub.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event *pubsub.Event)

func (f NotifierFunc) Notify(ctx context.Context, event *pubsub.Event) { f(ctx, event) }

// Nop discards events.
var Nop Notifier = NotifierFunc(func(context.Context, *pubsub.Event) {})

// PublishNotifier publishes events over redis pub/sub. Publish failures are only logged.
type PublishNotifier struct {
	pub *pubsub.Publisher
	log zerolog.Logger
}

func NewPublishNotifier(pub *pubsub.Publisher, log zerolog.Logger) *PublishNotifier {
	return &PublishNotifier{pub: pub, log: log.With().Str("component", "notifier").Logger()}
}

func (n *PublishNotifier) Notify(ctx context.Context, event *pubsub.Event) {
	if err := n.pub.Publish(ctx, event); err != nil {
		n.log.Warn().Err(err).
			Str("type", event.Type).
			Int64("cycle_id", event.CycleID).
			Int64("report_id", event.ReportID).
			Msg("failed to publish event (non-fatal)")
	}
}

// Dispatcher is the subscriber side. Online users get the event pushed, notices for offline users go to the inbox.
type Dispatcher struct {
	hub   *ws.Hub
	inbox *queue.Inbox
	log   zerolog.Logger
}

func NewDispatcher(hub *ws.Hub, inbox *queue.Inbox, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{hub: hub, inbox: inbox, log: log.With().Str("component", "dispatcher").Logger()}
}

// Dispatch routes one event. User-addressed events go to that user; report-wide events
// go to every connection watching the report.
func (d *Dispatcher) Dispatch(ctx context.Context, event *pubsub.Event) {
	msg := &ws.Message{Type: event.Type, Data: event}

	if event.UserID == 0 {
		key := model.ReportKey{CycleID: event.CycleID, ReportID: event.ReportID}
		if err := d.hub.SendToReport(key, msg); err != nil {
			d.log.Warn().Err(err).Str("type", event.Type).Msg("report broadcast failed")
		}
		return
	}

	if d.hub.IsOnline(event.UserID) {
		if err := d.hub.SendToUser(event.UserID, msg); err != nil {
			d.log.Warn().Err(err).Int64("user_id", event.UserID).Msg("push failed")
		}
		return
	}

	// progress ticks go stale, keep them out of the inbox
	if !pubsub.IsNotice(event.Type) || d.inbox == nil {
		return
	}
	if err := d.inbox.Push(ctx, event.UserID, event); err != nil {
		d.log.Warn().Err(err).Int64("user_id", event.UserID).Str("type", event.Type).Msg("failed to park notice")
	}
}

// Run subscribes to workflow events and dispatches them until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, sub *pubsub.Subscriber) error {
	d.log.Info().Msg("dispatcher started")
	return sub.Subscribe(ctx, func(event *pubsub.Event) {
		d.Dispatch(ctx, event)
	})
}
