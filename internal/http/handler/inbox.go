package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"repogent.app/orchestrator/internal/http/dto"
	"repogent.app/orchestrator/internal/queue"
	"repogent.app/orchestrator/internal/sanitize"
	"repogent.app/orchestrator/internal/service"
)

type InboxHandler struct {
	service service.InboxService
}

func NewInboxHandler(service service.InboxService) *InboxHandler {
	return &InboxHandler{service: service}
}

// Send enqueues an agent-to-agent message into the target's partition. The
// target agent comes from the path, everything else from the body.
func (h *InboxHandler) Send(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.service.Send(ctx, service.SendParams{
		FromAgent: req.FromAgent,
		ToAgent:   c.Param("agent"),
		Type:      req.Type,
		EntityRef: req.EntityRef,
		Payload:   req.Payload,
	})
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrPayloadTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrUnknownAgent), errors.Is(err, sanitize.ErrInvalidIdentifier):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to send message", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.SendMessageResponse{MessageID: id})
}

// Fetch is the non-blocking poll of an agent's inbox. An empty inbox is a
// 200 with an empty list, not an error.
func (h *InboxHandler) Fetch(c *gin.Context) {
	ctx := c.Request.Context()

	limit := int64(1)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	deliveries, err := h.service.Fetch(ctx, c.Param("agent"), limit)
	if err != nil {
		if errors.Is(err, service.ErrUnknownAgent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to fetch messages", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, dto.FetchMessagesResponse{Messages: deliveries})
}

func (h *InboxHandler) Acknowledge(c *gin.Context) {
	ctx := c.Request.Context()

	err := h.service.Acknowledge(ctx, c.Param("agent"), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrUnknownAgent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to acknowledge message", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to acknowledge message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
}
