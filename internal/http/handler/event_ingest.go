package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"repogent.app/orchestrator/internal/http/dto"
	"repogent.app/orchestrator/internal/sanitize"
	"repogent.app/orchestrator/internal/service"
)

type EventIngestHandler struct {
	service service.EventIngestService
}

func NewEventIngestHandler(service service.EventIngestService) *EventIngestHandler {
	return &EventIngestHandler{service: service}
}

func (h *EventIngestHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IngestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid ingest request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Ingest(ctx, service.EventIngestParams{
		Kind:       req.Kind,
		Actor:      req.Actor,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Body:       req.Body,
		Timestamp:  req.Timestamp,
		Payload:    req.Payload,
		DeliveryID: req.DeliveryID,
	})
	if err != nil {
		if errors.Is(err, sanitize.ErrInvalidIdentifier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to ingest event", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest event"})
		return
	}

	c.JSON(http.StatusAccepted, dto.IngestEventResponse{
		EventLogID: result.EventLog.ID,
		DedupeKey:  result.DedupeKey,
		Duplicated: result.Duplicated,
		Decision:   result.Decision,
		SequenceNo: result.SequenceNo,
		Enqueued:   result.Enqueued,
	})
}
