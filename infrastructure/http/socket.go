package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chat-sync/errors"
)

const (
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
	readTimeout = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type snapshotFrame struct {
	Type          string       `json:"type"`
	Messages      []messageDTO `json:"messages,omitempty"`
	Conversations []mirrorDTO  `json:"conversations,omitempty"`
	Cursor        string       `json:"cursor,omitempty"`
}

type messageFrame struct {
	Type    string     `json:"type"`
	Message messageDTO `json:"message"`
}

type mirrorFrame struct {
	Type         string    `json:"type"`
	Conversation mirrorDTO `json:"conversation"`
}

// messageSocket streams one conversation: a snapshot frame built from the
// requested cursor, then one frame per settled message. A slow client
// overflows its subscription and is disconnected; it reconnects with the
// last cursor it processed and receives a fresh snapshot.
func (h *Handler) messageSocket(c *gin.Context) {
	key, ok := h.conversationKey(c)
	if !ok {
		return
	}
	since, err := decodeCursor(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.chat.SubscribeMessages(key, since)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer h.chat.CancelMessages(sub)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	dtos := make([]messageDTO, 0, len(sub.Snapshot))
	cursor := since
	for _, message := range sub.Snapshot {
		dtos = append(dtos, toMessageDTO(message))
		cursor = message.Cursor()
	}
	if err := writeFrame(ws, snapshotFrame{Type: "snapshot", Messages: dtos, Cursor: encodeCursor(cursor)}); err != nil {
		return
	}

	closed := readUntilClosed(ws)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-sub.Done():
			h.closeSubscription(ws, sub.Err())
			return
		case message := <-sub.Updates():
			if err := writeFrame(ws, messageFrame{Type: "message", Message: toMessageDTO(message)}); err != nil {
				return
			}
		case <-ticker.C:
			if err := writePing(ws); err != nil {
				return
			}
		}
	}
}

// mirrorSocket streams the caller's conversation list: current entries as
// a snapshot, then every summary change.
func (h *Handler) mirrorSocket(c *gin.Context) {
	self := currentParticipant(c)

	sub, err := h.chat.SubscribeMirrors(self.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer h.chat.CancelMirrors(sub)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	now := h.now()
	dtos := make([]mirrorDTO, 0, len(sub.Snapshot))
	for _, entry := range sub.Snapshot {
		dtos = append(dtos, toMirrorDTO(entry, now))
	}
	if err := writeFrame(ws, snapshotFrame{Type: "snapshot", Conversations: dtos}); err != nil {
		return
	}

	closed := readUntilClosed(ws)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-sub.Done():
			h.closeSubscription(ws, sub.Err())
			return
		case entry := <-sub.Updates():
			if err := writeFrame(ws, mirrorFrame{Type: "mirror", Conversation: toMirrorDTO(entry, h.now())}); err != nil {
				return
			}
		case <-ticker.C:
			if err := writePing(ws); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains inbound frames so control messages are
// processed, and reports when the peer goes away.
func readUntilClosed(ws *websocket.Conn) <-chan struct{} {
	closed := make(chan struct{})
	ws.SetReadLimit(1 << 16)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return closed
}

func (h *Handler) closeSubscription(ws *websocket.Conn, err error) {
	code := websocket.CloseNormalClosure
	reason := "subscription ended"
	if errors.Is(err, errors.ErrSubscriptionOverflow) {
		code = websocket.CloseTryAgainLater
		reason = "subscriber too slow, resubscribe with your last cursor"
	}
	deadline := time.Now().Add(writeWait)
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

func writeFrame(ws *websocket.Conn, frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, payload)
}

func writePing(ws *websocket.Conn) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.PingMessage, nil)
}
