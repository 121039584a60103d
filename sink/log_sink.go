// Package sink holds EventSink implementations that are not realtime
// subscribers.
package sink

import (
	"context"
	"log/slog"

	"chat-sync/domain/event"
)

// LogSink traces settled events, wired as a permanent sink when the log
// level allows it. Observability only, no domain effect.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) LogSink {
	return LogSink{log: log}
}

func (s LogSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageAppended:
		s.log.Debug("Message appended",
			"key", evt.Message.ConversationKey,
			"sender", evt.Message.SenderID,
			"seq", evt.Message.Seq)
	case event.MirrorUpdated:
		s.log.Debug("Mirror updated",
			"owner", evt.OwnerID,
			"key", evt.Entry.ConversationKey)
	}
	return nil
}
