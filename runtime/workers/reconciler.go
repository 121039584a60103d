package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/repositories"
)

var _ contract.Worker = (*Reconciler)(nil)

// Reconciler is the background convergence pass. The two mirror legs of a
// send are not atomic, so a crash or exhausted retry can leave one side's
// conversation list behind the message log. Each pass reads the latest
// message per conversation and re-upserts any mirror entry whose updatedAt
// is older, which also refreshes stale counterparty display snapshots.
// Last-writer-wins makes the pass idempotent and safe to run concurrently
// with live sends.
type Reconciler struct {
	log           *slog.Logger
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	mirrors       repositories.IMirrorRepository
	profiles      repositories.IProfileRepository
	emit          func(event.DomainEvent)
	interval      time.Duration
}

func NewReconciler(log *slog.Logger,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	mirrors repositories.IMirrorRepository,
	profiles repositories.IProfileRepository,
	emit func(event.DomainEvent),
	interval time.Duration) *Reconciler {
	return &Reconciler{
		log:           log,
		conversations: conversations,
		messages:      messages,
		mirrors:       mirrors,
		profiles:      profiles,
		emit:          emit,
		interval:      interval,
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("Context done, stopping reconciler")
			return nil
		case <-ticker.C:
			if err := r.Reconcile(ctx); err != nil {
				r.log.Warn("Reconciliation pass failed", "error", err)
			}
		}
	}
}

// Reconcile runs one full pass over every conversation. Failures on a
// single conversation are logged and skipped so one bad record cannot
// starve the rest; the next pass retries it.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	conversations, err := r.conversations.All()
	if err != nil {
		return err
	}
	repaired := 0
	for _, conv := range conversations {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := r.reconcileConversation(conv)
		if err != nil {
			r.log.Warn("Skipping conversation in reconciliation pass",
				"key", conv.Key, "error", err)
			continue
		}
		repaired += n
	}
	if repaired > 0 {
		r.log.Info("Reconciliation pass repaired mirrors", "count", repaired)
	}
	return nil
}

func (r *Reconciler) reconcileConversation(conv domain.Conversation) (int, error) {
	lastText := conv.LastMessageText
	updatedAt := conv.UpdatedAt

	latest, found, err := r.messages.Latest(conv.Key)
	if err != nil {
		return 0, err
	}
	if found {
		// The message log is the source of truth; the shared record may
		// itself lag after a crash between append and summary update.
		if latest.ServerTimestamp.After(updatedAt) {
			lastText = latest.Text
			updatedAt = latest.ServerTimestamp
			if err := r.conversations.SetLastMessage(conv.Key, lastText, updatedAt); err != nil {
				r.log.Warn("Conversation summary repair failed",
					"key", conv.Key, "error", err)
			}
		} else {
			lastText = latest.Text
		}
	}

	repaired := 0
	for _, side := range []struct{ owner, other string }{
		{conv.ParticipantA, conv.ParticipantB},
		{conv.ParticipantB, conv.ParticipantA},
	} {
		other, err := r.profiles.Get(side.other)
		if err != nil {
			other = domain.Participant{ID: side.other}
		}
		entry := domain.MirrorEntry{
			ConversationKey: conv.Key,
			OtherID:         side.other,
			OtherName:       other.DisplayName(),
			OtherAvatarURL:  other.AvatarOrFallback(),
			LastMessageText: lastText,
			UpdatedAt:       updatedAt,
		}
		applied, err := r.mirrors.Upsert(side.owner, entry)
		if err != nil {
			return repaired, err
		}
		if applied {
			repaired++
			r.emit(event.MirrorUpdated{OwnerID: side.owner, Entry: entry})
		}
	}
	return repaired, nil
}
