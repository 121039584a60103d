//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"

	"chat-sync/domain"
	"chat-sync/realtime"
	"chat-sync/runtime"
)

// IChatService is the public surface of the engine: send, open, and the
// two subscription kinds, plus the paged reads backing initial loads.
type IChatService interface {
	Send(ctx context.Context, cmd domain.SendCommand) (domain.Message, bool, error)
	OpenConversation(ctx context.Context, cmd domain.OpenCommand) (domain.Conversation, error)
	ReadMessages(cmd domain.ReadCommand) ([]domain.Message, domain.Cursor, error)
	ListMirrors(ownerID string) ([]domain.MirrorEntry, error)
	SubscribeMessages(key domain.ConversationKey, since domain.Cursor) (*realtime.MessageSubscription, error)
	SubscribeMirrors(ownerID string) (*realtime.MirrorSubscription, error)
	CancelMessages(sub *realtime.MessageSubscription)
	CancelMirrors(sub *realtime.MirrorSubscription)
}

type ChatService struct {
	coordinator *runtime.Coordinator
	channel     *realtime.Channel
}

func NewChatService(coordinator *runtime.Coordinator, channel *realtime.Channel) *ChatService {
	return &ChatService{coordinator: coordinator, channel: channel}
}

func (s *ChatService) Send(ctx context.Context, cmd domain.SendCommand) (domain.Message, bool, error) {
	return s.coordinator.Send(ctx, cmd)
}

func (s *ChatService) OpenConversation(ctx context.Context, cmd domain.OpenCommand) (domain.Conversation, error) {
	return s.coordinator.Open(ctx, cmd)
}

func (s *ChatService) ReadMessages(cmd domain.ReadCommand) ([]domain.Message, domain.Cursor, error) {
	return s.coordinator.Read(cmd)
}

func (s *ChatService) ListMirrors(ownerID string) ([]domain.MirrorEntry, error) {
	return s.coordinator.Mirrors(ownerID)
}

func (s *ChatService) SubscribeMessages(key domain.ConversationKey, since domain.Cursor) (*realtime.MessageSubscription, error) {
	return s.channel.SubscribeMessages(key, since)
}

func (s *ChatService) SubscribeMirrors(ownerID string) (*realtime.MirrorSubscription, error) {
	return s.channel.SubscribeMirrors(ownerID)
}

func (s *ChatService) CancelMessages(sub *realtime.MessageSubscription) {
	s.channel.CancelMessages(sub)
}

func (s *ChatService) CancelMirrors(sub *realtime.MirrorSubscription) {
	s.channel.CancelMirrors(sub)
}
