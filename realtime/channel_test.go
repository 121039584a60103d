package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/repositories"
)

type channelFixture struct {
	channel  *Channel
	messages repositories.IMessageRepository
	mirrors  repositories.IMirrorRepository
	key      domain.ConversationKey
}

func newChannelFixture(t *testing.T, bufferSize int) channelFixture {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	conversations := repositories.NewConversationRepository(db, log)
	messages := repositories.NewMessageRepository(db, log, nil)
	mirrors := repositories.NewMirrorRepository(db, log)

	key := domain.ConversationKey("alice_bob")
	conv, err := domain.NewConversation(key, time.Now().UTC())
	req.NoError(err)
	_, _, err = conversations.Create(conv)
	req.NoError(err)

	return channelFixture{
		channel:  NewChannel(log, messages, mirrors, bufferSize),
		messages: messages,
		mirrors:  mirrors,
		key:      key,
	}
}

func (f channelFixture) append(t *testing.T, text string) domain.Message {
	t.Helper()
	msg, _, err := f.messages.Append(f.key, "alice", uuid.NewString(), text)
	require.NoError(t, err)
	return msg
}

func Test_Subscribe_Returns_Snapshot_Then_Increments(t *testing.T) {
	req := require.New(t)
	f := newChannelFixture(t, 8)
	ctx := context.Background()

	before := f.append(t, "already settled")

	sub, err := f.channel.SubscribeMessages(f.key, domain.Cursor{})
	req.NoError(err)
	defer f.channel.CancelMessages(sub)

	req.Len(sub.Snapshot, 1)
	req.Equal(before, sub.Snapshot[0])

	after := f.append(t, "live update")
	req.NoError(f.channel.Consume(ctx, event.MessageAppended{Message: after}))

	select {
	case got := <-sub.Updates():
		req.Equal(after, got)
	case <-time.After(time.Second):
		req.Fail("live message not delivered")
	}
}

func Test_Subscribe_Deduplicates_Snapshot_Overlap(t *testing.T) {
	req := require.New(t)
	f := newChannelFixture(t, 8)
	ctx := context.Background()

	covered := f.append(t, "covered by snapshot")

	sub, err := f.channel.SubscribeMessages(f.key, domain.Cursor{})
	req.NoError(err)
	defer f.channel.CancelMessages(sub)
	req.Len(sub.Snapshot, 1)

	// The event for a message already inside the snapshot is dropped.
	req.NoError(f.channel.Consume(ctx, event.MessageAppended{Message: covered}))

	fresh := f.append(t, "genuinely new")
	req.NoError(f.channel.Consume(ctx, event.MessageAppended{Message: fresh}))

	select {
	case got := <-sub.Updates():
		req.Equal(fresh, got, "the duplicate must not reach the subscriber")
	case <-time.After(time.Second):
		req.Fail("new message not delivered")
	}
}

func Test_Subscribe_Resumes_From_Cursor(t *testing.T) {
	req := require.New(t)
	f := newChannelFixture(t, 8)

	first := f.append(t, "first")
	second := f.append(t, "second")

	sub, err := f.channel.SubscribeMessages(f.key, first.Cursor())
	req.NoError(err)
	defer f.channel.CancelMessages(sub)

	req.Len(sub.Snapshot, 1)
	req.Equal(second, sub.Snapshot[0])
}

func Test_Slow_Subscriber_Is_Disconnected_With_Overflow(t *testing.T) {
	req := require.New(t)
	f := newChannelFixture(t, 2)
	ctx := context.Background()

	sub, err := f.channel.SubscribeMessages(f.key, domain.Cursor{})
	req.NoError(err)

	// Nobody drains the subscription; fill the buffer and push one more.
	for i := 0; i < 3; i++ {
		msg := f.append(t, fmt.Sprintf("flood %d", i))
		req.NoError(f.channel.Consume(ctx, event.MessageAppended{Message: msg}))
	}

	select {
	case <-sub.Done():
		req.ErrorIs(sub.Err(), errors.ErrSubscriptionOverflow)
	case <-time.After(time.Second):
		req.Fail("overflowing subscriber was not disconnected")
	}

	// A fresh subscription takes a snapshot and sees everything.
	fresh, err := f.channel.SubscribeMessages(f.key, domain.Cursor{})
	req.NoError(err)
	defer f.channel.CancelMessages(fresh)
	req.Len(fresh.Snapshot, 3)
}

func Test_Cancel_Closes_Subscription_Without_Error(t *testing.T) {
	req := require.New(t)
	f := newChannelFixture(t, 8)

	sub, err := f.channel.SubscribeMessages(f.key, domain.Cursor{})
	req.NoError(err)

	f.channel.CancelMessages(sub)

	select {
	case <-sub.Done():
		req.NoError(sub.Err())
	case <-time.After(time.Second):
		req.Fail("cancelled subscription did not close")
	}

	// Events after cancel are not delivered.
	msg := f.append(t, "after cancel")
	req.NoError(f.channel.Consume(context.Background(), event.MessageAppended{Message: msg}))
	select {
	case <-sub.Updates():
		req.Fail("delivery after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

func Test_Mirror_Subscription_Snapshot_And_Updates(t *testing.T) {
	req := require.New(t)
	f := newChannelFixture(t, 8)
	ctx := context.Background()

	now := time.Now().UTC()
	seeded := domain.MirrorEntry{
		ConversationKey: f.key,
		OtherID:         "bob",
		OtherName:       "Bob",
		LastMessageText: "seeded",
		UpdatedAt:       now,
	}
	_, err := f.mirrors.Upsert("alice", seeded)
	req.NoError(err)

	sub, err := f.channel.SubscribeMirrors("alice")
	req.NoError(err)
	defer f.channel.CancelMirrors(sub)

	req.Len(sub.Snapshot, 1)
	req.Equal(seeded, sub.Snapshot[0])

	// A stale event for the seeded entry is dropped.
	stale := seeded
	stale.LastMessageText = "out of order"
	stale.UpdatedAt = now.Add(-time.Second)
	req.NoError(f.channel.Consume(ctx, event.MirrorUpdated{OwnerID: "alice", Entry: stale}))

	// A newer summary comes through.
	newer := seeded
	newer.LastMessageText = "latest"
	newer.UpdatedAt = now.Add(time.Second)
	req.NoError(f.channel.Consume(ctx, event.MirrorUpdated{OwnerID: "alice", Entry: newer}))

	select {
	case got := <-sub.Updates():
		req.Equal(newer, got, "stale update must not reach the subscriber")
	case <-time.After(time.Second):
		req.Fail("mirror update not delivered")
	}
}

func Test_Mirror_Events_Are_Scoped_To_Owner(t *testing.T) {
	req := require.New(t)
	f := newChannelFixture(t, 8)
	ctx := context.Background()

	aliceSub, err := f.channel.SubscribeMirrors("alice")
	req.NoError(err)
	defer f.channel.CancelMirrors(aliceSub)

	entry := domain.MirrorEntry{
		ConversationKey: f.key,
		OtherID:         "alice",
		LastMessageText: "for bob only",
		UpdatedAt:       time.Now().UTC(),
	}
	req.NoError(f.channel.Consume(ctx, event.MirrorUpdated{OwnerID: "bob", Entry: entry}))

	select {
	case <-aliceSub.Updates():
		req.Fail("alice received bob's mirror update")
	case <-time.After(50 * time.Millisecond):
	}
}
