// Package runtime orchestrates the per-send protocol: conversation
// creation, durable append, the two mirror legs and event emission. It
// contains no storage or transport code of its own.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/repositories"
)

// Coordinator drives a send through the states Identified, Appended,
// MirroredSelf/MirroredOther, Done. There are no backward transitions: a
// failure before Appended surfaces to the caller with nothing persisted; a
// failure after Appended leaves a durable message and a lagging mirror,
// which the reconciler repairs.
type Coordinator struct {
	log           *slog.Logger
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	mirrors       repositories.IMirrorRepository
	profiles      repositories.IProfileRepository
	events        chan event.DomainEvent
	locks         *keyLocks
	retryMax      int
	retryBase     time.Duration
}

func NewCoordinator(log *slog.Logger,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	mirrors repositories.IMirrorRepository,
	profiles repositories.IProfileRepository,
	bufferSize, retryMax int, retryBase time.Duration) *Coordinator {
	return &Coordinator{
		log:           log,
		conversations: conversations,
		messages:      messages,
		mirrors:       mirrors,
		profiles:      profiles,
		events:        make(chan event.DomainEvent, bufferSize),
		locks:         newKeyLocks(),
		retryMax:      retryMax,
		retryBase:     retryBase,
	}
}

// Events exposes the settled-event stream consumed by the fanout worker.
func (c *Coordinator) Events() chan event.DomainEvent {
	return c.events
}

// Emit hands a settled event to the fanout pipeline. Delivery to the
// pipeline is best-effort: subscribers losing an event resync via
// snapshot, nothing durable depends on it.
func (c *Coordinator) Emit(e event.DomainEvent) {
	select {
	case c.events <- e:
	default:
		c.log.Warn(fmt.Sprintf("Event channel full, dropping event for %s", e.Key()))
	}
}

// Open returns the conversation between the two participants, creating it
// and seeding both mirror entries on first contact. Concurrent first
// contacts race on the compare-and-set create; the loser observes the
// winner's record and proceeds without error.
func (c *Coordinator) Open(ctx context.Context, cmd domain.OpenCommand) (domain.Conversation, error) {
	key, err := domain.DeriveKey(cmd.SelfID, cmd.OtherID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if _, err := c.profiles.Get(cmd.OtherID); err != nil {
		if errors.Is(err, errors.ErrProfileNotFound) {
			return domain.Conversation{}, errors.ErrInvalidParticipant
		}
		return domain.Conversation{}, err
	}

	unlock := c.locks.acquire(key)
	conv, err := domain.NewConversation(key, time.Now().UTC())
	if err != nil {
		unlock()
		return domain.Conversation{}, err
	}
	stored, created, err := c.conversations.Create(conv)
	unlock()
	if err != nil {
		return domain.Conversation{}, err
	}
	if created {
		c.log.Info("Conversation created", "key", key)
	}

	// Seed both list entries so the conversation shows up on each side
	// before the first message. Last-writer-wins keeps existing entries.
	c.seedMirrors(ctx, stored)
	return stored, nil
}

// Send runs the full per-send protocol. The returned delayed flag is true
// when the message is durable but one or both mirrors exhausted their
// retries; the reconciler converges them later, the caller must not
// re-send.
func (c *Coordinator) Send(ctx context.Context, cmd domain.SendCommand) (domain.Message, bool, error) {
	// Identified: the sender must be one of the two encoded participants.
	otherID, err := cmd.Key.Split(cmd.SenderID)
	if err != nil {
		return domain.Message{}, false, err
	}

	unlock := c.locks.acquire(cmd.Key)
	if _, err := c.conversations.Get(cmd.Key); err != nil {
		if !errors.Is(err, errors.ErrConversationNotFound) {
			unlock()
			return domain.Message{}, false, err
		}
		conv, err := domain.NewConversation(cmd.Key, time.Now().UTC())
		if err != nil {
			unlock()
			return domain.Message{}, false, err
		}
		if _, _, err := c.conversations.Create(conv); err != nil {
			unlock()
			return domain.Message{}, false, err
		}
	}

	// Appended: the durable point. From here on the caller sees success.
	msg, created, err := c.messages.Append(cmd.Key, cmd.SenderID, cmd.ClientMessageID, cmd.Text)
	unlock()
	if err != nil {
		return domain.Message{}, false, err
	}
	if !created {
		// Replay of an already-settled send, nothing left to do.
		return msg, false, nil
	}

	c.Emit(event.MessageAppended{Message: msg})

	if err := c.withRetry(ctx, "conversation summary", func() error {
		return c.conversations.SetLastMessage(cmd.Key, msg.Text, msg.ServerTimestamp)
	}); err != nil {
		c.log.Warn("Conversation summary update deferred to reconciler",
			"key", cmd.Key, "error", err)
	}

	// MirroredSelf / MirroredOther: independent legs, neither blocks the
	// other and neither re-runs the append.
	delayed := false
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, side := range []struct{ owner, other string }{
		{cmd.SenderID, otherID},
		{otherID, cmd.SenderID},
	} {
		wg.Add(1)
		go func(owner, other string) {
			defer wg.Done()
			entry := c.buildMirror(cmd.Key, other, msg.Text, msg.ServerTimestamp)
			err := c.withRetry(ctx, "mirror upsert", func() error {
				applied, err := c.mirrors.Upsert(owner, entry)
				if err != nil {
					return err
				}
				if applied {
					c.Emit(event.MirrorUpdated{OwnerID: owner, Entry: entry})
				}
				return nil
			})
			if err != nil {
				c.log.Warn("Mirror leg gave up, reconciler will converge it",
					"owner", owner, "key", cmd.Key, "error", err)
				mu.Lock()
				delayed = true
				mu.Unlock()
			}
		}(side.owner, side.other)
	}
	wg.Wait()

	// Done.
	return msg, delayed, nil
}

// Read returns the page of messages after the cursor.
func (c *Coordinator) Read(cmd domain.ReadCommand) ([]domain.Message, domain.Cursor, error) {
	if _, err := c.conversations.Get(cmd.Key); err != nil {
		return nil, cmd.Since, err
	}
	return c.messages.ReadSince(cmd.Key, cmd.Since)
}

// Mirrors returns a participant's conversation list view.
func (c *Coordinator) Mirrors(ownerID string) ([]domain.MirrorEntry, error) {
	return c.mirrors.List(ownerID)
}

func (c *Coordinator) seedMirrors(ctx context.Context, conv domain.Conversation) {
	for _, side := range []struct{ owner, other string }{
		{conv.ParticipantA, conv.ParticipantB},
		{conv.ParticipantB, conv.ParticipantA},
	} {
		entry := c.buildMirror(conv.Key, side.other, conv.LastMessageText, conv.UpdatedAt)
		err := c.withRetry(ctx, "mirror seed", func() error {
			applied, err := c.mirrors.Upsert(side.owner, entry)
			if err != nil {
				return err
			}
			if applied {
				c.Emit(event.MirrorUpdated{OwnerID: side.owner, Entry: entry})
			}
			return nil
		})
		if err != nil {
			c.log.Warn("Mirror seed gave up, reconciler will converge it",
				"owner", side.owner, "key", conv.Key, "error", err)
		}
	}
}

// buildMirror assembles the owner's entry with the counterparty's current
// display snapshot. A missing profile degrades to placeholders; the
// reconciler refreshes the snapshot once the profile is readable again.
func (c *Coordinator) buildMirror(key domain.ConversationKey, otherID, lastText string, at time.Time) domain.MirrorEntry {
	other, err := c.profiles.Get(otherID)
	if err != nil {
		other = domain.Participant{ID: otherID}
	}
	return domain.MirrorEntry{
		ConversationKey: key,
		OtherID:         otherID,
		OtherName:       other.DisplayName(),
		OtherAvatarURL:  other.AvatarOrFallback(),
		LastMessageText: lastText,
		UpdatedAt:       at,
	}
}

// withRetry retries transient store failures with exponential backoff up
// to the bounded attempt count. Non-transient errors surface immediately.
func (c *Coordinator) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := c.retryBase
	var err error
	for attempt := 1; attempt <= c.retryMax; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !errors.Is(err, errors.ErrStoreUnavailable) {
			return err
		}
		if attempt == c.retryMax {
			break
		}
		c.log.Debug(fmt.Sprintf("Retrying %s after transient failure", op),
			"attempt", attempt, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
