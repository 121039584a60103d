// Package http is the REST and websocket adapter in front of the sync
// engine. It authenticates callers, translates payloads to domain
// commands and maps domain errors to status codes. No engine semantics
// live here.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chat-sync/auth"
	"chat-sync/directory"
	"chat-sync/domain"
	"chat-sync/errors"
	"chat-sync/services"
)

type Handler struct {
	log       *slog.Logger
	chat      services.IChatService
	identity  auth.IIdentityProvider
	directory directory.IDirectory
	now       func() time.Time
}

func NewHandler(log *slog.Logger, chat services.IChatService,
	identity auth.IIdentityProvider, dir directory.IDirectory) *Handler {
	return &Handler{
		log:       log,
		chat:      chat,
		identity:  identity,
		directory: dir,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes mounts all API routes under /api/v1.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	v1.POST("/auth/register", h.register)
	v1.POST("/auth/login", h.login)

	authed := v1.Group("", authRequired(h.identity))
	authed.GET("/me", h.me)
	authed.PUT("/me", h.updateProfile)
	authed.GET("/people", h.people)
	authed.POST("/conversations", h.openConversation)
	authed.GET("/conversations", h.listMirrors)
	authed.POST("/conversations/:key/messages", h.sendMessage)
	authed.GET("/conversations/:key/messages", h.history)
	authed.GET("/ws/conversations/:key", h.messageSocket)
	authed.GET("/ws/mirrors", h.mirrorSocket)
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	participant, token, err := h.identity.Register(auth.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.directory.IndexParticipant(participant); err != nil {
		h.log.Warn("failed to index new participant", "id", participant.ID, "error", err)
	}
	c.JSON(http.StatusCreated, sessionResponse{
		Token:       token,
		Participant: toParticipantDTO(participant),
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	participant, token, err := h.identity.Login(auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		Token:       token,
		Participant: toParticipantDTO(participant),
	})
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, toParticipantDTO(currentParticipant(c)))
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	self := currentParticipant(c)
	updated, err := h.identity.UpdateProfile(self.ID, req.Name, req.AvatarURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.directory.IndexParticipant(updated); err != nil {
		h.log.Warn("failed to reindex participant", "id", updated.ID, "error", err)
	}
	c.JSON(http.StatusOK, toParticipantDTO(updated))
}

// people serves the contact picker: a free-text search when ?q= is set,
// otherwise every other registered participant.
func (h *Handler) people(c *gin.Context) {
	self := currentParticipant(c)
	term := c.Query("q")

	var (
		results []domain.Participant
		err     error
	)
	if term != "" {
		results, err = h.directory.Search(c.Request.Context(), self.ID, term)
	} else {
		results, err = h.directory.ListOthers(self.ID)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	dtos := make([]participantDTO, 0, len(results))
	for _, p := range results {
		dtos = append(dtos, toParticipantDTO(p))
	}
	c.JSON(http.StatusOK, gin.H{"people": dtos})
}

func (h *Handler) openConversation(c *gin.Context) {
	var req openConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	self := currentParticipant(c)
	conversation, err := h.chat.OpenConversation(c.Request.Context(), domain.OpenCommand{
		SelfID:  self.ID,
		OtherID: req.OtherID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toConversationDTO(conversation))
}

func (h *Handler) listMirrors(c *gin.Context) {
	self := currentParticipant(c)
	entries, err := h.chat.ListMirrors(self.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	now := h.now()
	dtos := make([]mirrorDTO, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, toMirrorDTO(entry, now))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": dtos})
}

// sendMessage appends to the log and waits for the send to settle.
// 201 means fully settled; 202 means appended but with a mirror leg
// still pending, which the reconciler will converge.
func (h *Handler) sendMessage(c *gin.Context) {
	key, ok := h.conversationKey(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	self := currentParticipant(c)
	message, delayed, err := h.chat.Send(c.Request.Context(), domain.SendCommand{
		Key:             key,
		SenderID:        self.ID,
		ClientMessageID: req.ClientMessageID,
		Text:            req.Text,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusCreated
	if delayed {
		status = http.StatusAccepted
	}
	c.JSON(status, toMessageDTO(message))
}

func (h *Handler) history(c *gin.Context) {
	key, ok := h.conversationKey(c)
	if !ok {
		return
	}
	since, err := decodeCursor(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	messages, cursor, err := h.chat.ReadMessages(domain.ReadCommand{Key: key, Since: since})
	if err != nil {
		h.fail(c, err)
		return
	}
	dtos := make([]messageDTO, 0, len(messages))
	for _, message := range messages {
		dtos = append(dtos, toMessageDTO(message))
	}
	c.JSON(http.StatusOK, historyResponse{Messages: dtos, Cursor: encodeCursor(cursor)})
}

// conversationKey validates the :key path segment and checks the caller
// is one of its two participants.
func (h *Handler) conversationKey(c *gin.Context) (domain.ConversationKey, bool) {
	key := domain.ConversationKey(c.Param("key"))
	self := currentParticipant(c)
	if _, err := key.Split(self.ID); err != nil {
		if _, _, keyErr := key.Participants(); keyErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed conversation key"})
		} else {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation"})
		}
		return "", false
	}
	return key, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := errors.MapToStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
