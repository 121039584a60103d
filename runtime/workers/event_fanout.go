package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-sync/contract"
	"chat-sync/domain/event"
)

// Ensure *EventFanout implements the contract.Worker interface at compile
// time.
var _ contract.Worker = (*EventFanout)(nil)

// EventFanout drains the coordinator's settled-event stream and hands each
// event to every sink: the realtime channel plus any permanent sinks.
//
// Fan-out is best-effort with no delivery, durability or retry guarantees;
// the durable store is the source of truth and subscribers resync from it
// via snapshots. EventFanout is not a message broker.
type EventFanout struct {
	log         *slog.Logger
	events      chan event.DomainEvent
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, events chan event.DomainEvent,
	sinkTimeout time.Duration, sinks ...contract.EventSink) *EventFanout {
	return &EventFanout{log: log, events: events, sinkTimeout: sinkTimeout, sinks: sinks}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Event channel closed")
				return nil
			}
			w.fanout(ctx, evt)
		}
	}
}

// fanout delivers one event to each sink under the sink timeout. A failing
// sink is logged and skipped; it never stalls the others.
func (w *EventFanout) fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink failed to consume event",
				"key", evt.Key(), "error", err)
		}
		cancel()
	}
}
