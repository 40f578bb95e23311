package dto

import "repogent.app/orchestrator/internal/domain"

type AgentListResponse struct {
	Agents []domain.AgentInfo `json:"agents"`
}
