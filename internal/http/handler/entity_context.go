package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"repogent.app/orchestrator/internal/http/dto"
	"repogent.app/orchestrator/internal/sanitize"
	"repogent.app/orchestrator/internal/service"
	"repogent.app/orchestrator/internal/store"
)

type EntityContextHandler struct {
	contexts  service.EntityContextService
	decisions service.DecisionQueryService
}

func NewEntityContextHandler(contexts service.EntityContextService, decisions service.DecisionQueryService) *EntityContextHandler {
	return &EntityContextHandler{contexts: contexts, decisions: decisions}
}

func (h *EntityContextHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	entityType, entityID, ok := entityParams(c)
	if !ok {
		return
	}

	entry, err := h.contexts.Get(ctx, entityType, entityID)
	if err != nil {
		if errors.Is(err, sanitize.ErrInvalidIdentifier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to get context", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get context"})
		return
	}

	c.JSON(http.StatusOK, dto.NewContextEntryResponse(entry))
}

func (h *EntityContextHandler) Merge(c *gin.Context) {
	ctx := c.Request.Context()

	entityType, entityID, ok := entityParams(c)
	if !ok {
		return
	}

	var req dto.MergeContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.contexts.Merge(ctx, service.ContextPatchParams{
		EntityType: entityType,
		EntityID:   entityID,
		Patch:      req.Patch,
		UpdatedBy:  req.UpdatedBy,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrContextTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		case errors.Is(err, sanitize.ErrInvalidIdentifier), errors.Is(err, sanitize.ErrInvalidPath):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to merge context", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to merge context"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.NewContextEntryResponse(entry))
}

// Decisions pages the entity's routing history; resume with ?after=<cursor>.
func (h *EntityContextHandler) Decisions(c *gin.Context) {
	ctx := c.Request.Context()

	entityType, entityID, ok := entityParams(c)
	if !ok {
		return
	}

	var (
		after int64
		limit int64 = 100
		err   error
	)
	if raw := c.Query("after"); raw != "" {
		if after, err = strconv.ParseInt(raw, 10, 64); err != nil || after < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after must be a non-negative integer"})
			return
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.ParseInt(raw, 10, 32); err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
	}

	entries, err := h.decisions.Query(ctx, entityType, entityID, after, int32(limit))
	if err != nil {
		if errors.Is(err, sanitize.ErrInvalidIdentifier) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to query decisions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query decisions"})
		return
	}

	resp := dto.DecisionListResponse{Decisions: entries}
	if len(entries) > 0 {
		resp.NextAfter = entries[len(entries)-1].SequenceNo
	}
	c.JSON(http.StatusOK, resp)
}

func entityParams(c *gin.Context) (string, int64, bool) {
	entityID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || entityID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity id must be a positive integer"})
		return "", 0, false
	}
	return c.Param("type"), entityID, true
}
