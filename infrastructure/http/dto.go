package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"chat-sync/domain"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	Name      string `json:"name" binding:"required"`
	AvatarURL string `json:"avatar_url"`
}

type sessionResponse struct {
	Token       string         `json:"token"`
	Participant participantDTO `json:"participant"`
}

type participantDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url"`
}

type openConversationRequest struct {
	OtherID string `json:"other_id" binding:"required"`
}

type conversationDTO struct {
	Key             string    `json:"key"`
	ParticipantA    string    `json:"participant_a"`
	ParticipantB    string    `json:"participant_b"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	LastMessageText string    `json:"last_message_text,omitempty"`
}

type sendMessageRequest struct {
	ClientMessageID string `json:"client_message_id" binding:"required"`
	Text            string `json:"text" binding:"required"`
}

type messageDTO struct {
	ConversationKey string    `json:"conversation_key"`
	SenderID        string    `json:"sender_id"`
	Text            string    `json:"text"`
	ServerTimestamp time.Time `json:"server_timestamp"`
	Seq             uint64    `json:"seq"`
	ClientMessageID string    `json:"client_message_id"`
	Cursor          string    `json:"cursor"`
}

type historyResponse struct {
	Messages []messageDTO `json:"messages"`
	Cursor   string       `json:"cursor"`
}

type mirrorDTO struct {
	ConversationKey string    `json:"conversation_key"`
	OtherID         string    `json:"other_id"`
	OtherName       string    `json:"other_name"`
	OtherAvatarURL  string    `json:"other_avatar_url"`
	LastMessageText string    `json:"last_message_text,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
	TimeAgo         string    `json:"time_ago"`
}

func toParticipantDTO(p domain.Participant) participantDTO {
	return participantDTO{
		ID:        p.ID,
		Name:      p.DisplayName(),
		Email:     p.Email,
		AvatarURL: p.AvatarOrFallback(),
	}
}

func toConversationDTO(c domain.Conversation) conversationDTO {
	return conversationDTO{
		Key:             string(c.Key),
		ParticipantA:    c.ParticipantA,
		ParticipantB:    c.ParticipantB,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		LastMessageText: c.LastMessageText,
	}
}

func toMessageDTO(m domain.Message) messageDTO {
	return messageDTO{
		ConversationKey: string(m.ConversationKey),
		SenderID:        m.SenderID,
		Text:            m.Text,
		ServerTimestamp: m.ServerTimestamp,
		Seq:             m.Seq,
		ClientMessageID: m.ClientMessageID,
		Cursor:          encodeCursor(m.Cursor()),
	}
}

func toMirrorDTO(e domain.MirrorEntry, now time.Time) mirrorDTO {
	return mirrorDTO{
		ConversationKey: string(e.ConversationKey),
		OtherID:         e.OtherID,
		OtherName:       e.OtherName,
		OtherAvatarURL:  e.OtherAvatarURL,
		LastMessageText: e.LastMessageText,
		UpdatedAt:       e.UpdatedAt,
		TimeAgo:         timeAgo(e.UpdatedAt, now),
	}
}

// encodeCursor renders a cursor as "<unix_nanos>:<seq>", the format
// clients echo back on history reads and websocket resumes.
func encodeCursor(c domain.Cursor) string {
	return fmt.Sprintf("%d:%d", c.Timestamp.UnixNano(), c.Seq)
}

// decodeCursor parses the wire form. An empty string is the zero cursor,
// meaning "from the beginning".
func decodeCursor(s string) (domain.Cursor, error) {
	if s == "" {
		return domain.Cursor{}, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return domain.Cursor{}, fmt.Errorf("invalid cursor %q", s)
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return domain.Cursor{}, fmt.Errorf("invalid cursor timestamp: %v", err)
	}
	seq, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return domain.Cursor{}, fmt.Errorf("invalid cursor seq: %v", err)
	}
	return domain.Cursor{Timestamp: time.Unix(0, nanos).UTC(), Seq: seq}, nil
}

// timeAgo renders a coarse relative timestamp for conversation lists.
func timeAgo(t, now time.Time) string {
	if t.IsZero() || !t.Before(now) {
		return "just now"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
