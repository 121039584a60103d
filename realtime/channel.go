// Package realtime is the push-subscription side of the engine. Clients
// subscribe to a conversation's message stream or to a participant's
// mirror list and receive a snapshot followed by ordered increments.
//
// The registry is process-local state, safe for concurrent add, remove and
// fan-out. Reconnection after a gap takes a fresh snapshot instead of
// replaying a possibly-incomplete incremental log.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/repositories"
)

type Channel struct {
	mu         sync.RWMutex
	log        *slog.Logger
	messages   repositories.IMessageRepository
	mirrors    repositories.IMirrorRepository
	bufferSize int

	messageSubs map[domain.ConversationKey]map[string]*MessageSubscription
	mirrorSubs  map[string]map[string]*MirrorSubscription
}

func NewChannel(log *slog.Logger, messages repositories.IMessageRepository,
	mirrors repositories.IMirrorRepository, bufferSize int) *Channel {
	return &Channel{
		log:         log,
		messages:    messages,
		mirrors:     mirrors,
		bufferSize:  bufferSize,
		messageSubs: make(map[domain.ConversationKey]map[string]*MessageSubscription),
		mirrorSubs:  make(map[string]map[string]*MirrorSubscription),
	}
}

// SubscribeMessages registers a subscriber on the conversation stream.
// The snapshot read and the registration happen under the registry lock,
// so no settled message can fall between snapshot and first increment;
// a message covered by both is deduplicated by cursor.
func (c *Channel) SubscribeMessages(key domain.ConversationKey, since domain.Cursor) (*MessageSubscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot, next, err := c.messages.ReadSince(key, since)
	if err != nil {
		return nil, err
	}
	sub := &MessageSubscription{
		id:       uuid.NewString(),
		key:      key,
		Snapshot: snapshot,
		next:     next,
		updates:  make(chan domain.Message, c.bufferSize),
		done:     make(chan struct{}),
	}
	if c.messageSubs[key] == nil {
		c.messageSubs[key] = make(map[string]*MessageSubscription)
	}
	c.messageSubs[key][sub.id] = sub
	return sub, nil
}

// SubscribeMirrors registers a subscriber on a participant's list view.
func (c *Channel) SubscribeMirrors(ownerID string) (*MirrorSubscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot, err := c.mirrors.List(ownerID)
	if err != nil {
		return nil, err
	}
	sub := &MirrorSubscription{
		id:       uuid.NewString(),
		ownerID:  ownerID,
		Snapshot: snapshot,
		lastSeen: make(map[domain.ConversationKey]domain.MirrorEntry, len(snapshot)),
		updates:  make(chan domain.MirrorEntry, c.bufferSize),
		done:     make(chan struct{}),
	}
	for _, entry := range snapshot {
		sub.lastSeen[entry.ConversationKey] = entry
	}
	if c.mirrorSubs[ownerID] == nil {
		c.mirrorSubs[ownerID] = make(map[string]*MirrorSubscription)
	}
	c.mirrorSubs[ownerID][sub.id] = sub
	return sub, nil
}

// CancelMessages stops delivery and releases the subscription's buffer.
func (c *Channel) CancelMessages(sub *MessageSubscription) {
	c.mu.Lock()
	c.removeMessageSub(sub.key, sub.id)
	c.mu.Unlock()
	sub.fail(nil)
}

func (c *Channel) CancelMirrors(sub *MirrorSubscription) {
	c.mu.Lock()
	c.removeMirrorSub(sub.ownerID, sub.id)
	c.mu.Unlock()
	sub.fail(nil)
}

// Consume routes a settled domain event to its subscribers. It implements
// contract.EventSink and is driven by the fanout worker. A subscriber that
// cannot keep up is disconnected rather than allowed to stall the sender.
func (c *Channel) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageAppended:
		c.fanoutMessage(evt.Message)
	case event.MirrorUpdated:
		c.fanoutMirror(evt.OwnerID, evt.Entry)
	default:
		c.log.Debug(fmt.Sprintf("Not implemented event : %v", evt))
	}
	return nil
}

func (c *Channel) fanoutMessage(msg domain.Message) {
	c.mu.RLock()
	subs := make([]*MessageSubscription, 0, len(c.messageSubs[msg.ConversationKey]))
	for _, sub := range c.messageSubs[msg.ConversationKey] {
		subs = append(subs, sub)
	}
	c.mu.RUnlock()

	var overflowed []*MessageSubscription
	for _, sub := range subs {
		if !sub.deliver(msg) {
			overflowed = append(overflowed, sub)
		}
	}
	for _, sub := range overflowed {
		c.log.Warn("Disconnecting slow message subscriber",
			"conversation", msg.ConversationKey, "subscription", sub.id)
		c.mu.Lock()
		c.removeMessageSub(sub.key, sub.id)
		c.mu.Unlock()
		sub.fail(errors.ErrSubscriptionOverflow)
	}
}

func (c *Channel) fanoutMirror(ownerID string, entry domain.MirrorEntry) {
	c.mu.RLock()
	subs := make([]*MirrorSubscription, 0, len(c.mirrorSubs[ownerID]))
	for _, sub := range c.mirrorSubs[ownerID] {
		subs = append(subs, sub)
	}
	c.mu.RUnlock()

	var overflowed []*MirrorSubscription
	for _, sub := range subs {
		if !sub.deliver(entry) {
			overflowed = append(overflowed, sub)
		}
	}
	for _, sub := range overflowed {
		c.log.Warn("Disconnecting slow mirror subscriber",
			"owner", ownerID, "subscription", sub.id)
		c.mu.Lock()
		c.removeMirrorSub(sub.ownerID, sub.id)
		c.mu.Unlock()
		sub.fail(errors.ErrSubscriptionOverflow)
	}
}

func (c *Channel) removeMessageSub(key domain.ConversationKey, id string) {
	if subs, ok := c.messageSubs[key]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(c.messageSubs, key)
		}
	}
}

func (c *Channel) removeMirrorSub(ownerID, id string) {
	if subs, ok := c.mirrorSubs[ownerID]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(c.mirrorSubs, ownerID)
		}
	}
}
