package dto

import "repogent.app/orchestrator/internal/domain"

type AnalyzeLogsRequest struct {
	Logs string `json:"logs" binding:"required"`
}

type AnalyzeLogsResponse struct {
	Report domain.FailureReport `json:"report"`
}

type NormalizePathRequest struct {
	Path string `json:"path" binding:"required"`
}

type NormalizePathResponse struct {
	Path string `json:"path"`
}
