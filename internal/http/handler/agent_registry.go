package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/http/dto"
)

// AgentRegistryHandler serves the deployed agent registry so collaborators can
// discover which personas exist and what they do.
type AgentRegistryHandler struct {
	agents []domain.AgentInfo
}

func NewAgentRegistryHandler(agents []domain.AgentInfo) *AgentRegistryHandler {
	return &AgentRegistryHandler{agents: agents}
}

func (h *AgentRegistryHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, dto.AgentListResponse{Agents: h.agents})
}
