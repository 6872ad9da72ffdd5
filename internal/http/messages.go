package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"direct-chat/internal/domain"
)

type sendMessageRequest struct {
	Message string `json:"message"`
}

type MessageResponse struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
	Message    string `json:"message"`
	CreatedAt  string `json:"createdAt"`
}

func messageToResponse(msg domain.Message) MessageResponse {
	return MessageResponse{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Message:    msg.Body,
		CreatedAt:  msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) sendMessage(c *gin.Context) {
	receiverID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sender := currentUser(c)
	msg, err := h.messages.Send(c.Request.Context(), sender.ID, receiverID, req.Message)
	if err != nil {
		h.fail(c, "send message", err)
		return
	}

	c.JSON(http.StatusCreated, messageToResponse(*msg))
}

func (h *Handler) getMessages(c *gin.Context) {
	otherID, ok := parseUserID(c)
	if !ok {
		return
	}

	user := currentUser(c)
	messages, err := h.messages.Conversation(c.Request.Context(), user.ID, otherID)
	if err != nil {
		h.fail(c, "get messages", err)
		return
	}

	resp := make([]MessageResponse, len(messages))
	for i := range messages {
		resp[i] = messageToResponse(messages[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listUsers(c *gin.Context) {
	user := currentUser(c)
	users, err := h.users.ListOthers(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, "list users", err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) serveSocket(c *gin.Context) {
	if h.socket == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime delivery is disabled"})
		return
	}
	h.socket.Serve(c.Writer, c.Request, currentUser(c).ID)
}
