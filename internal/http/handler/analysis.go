package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"repogent.app/orchestrator/internal/analyzer"
	"repogent.app/orchestrator/internal/http/dto"
	"repogent.app/orchestrator/internal/sanitize"
)

// AnalysisHandler serves the two pure collaborator interfaces: build-log
// analysis for the CI/CD persona and path normalization for codebase search.
type AnalysisHandler struct {
	analyzer *analyzer.Analyzer
}

func NewAnalysisHandler(a *analyzer.Analyzer) *AnalysisHandler {
	return &AnalysisHandler{analyzer: a}
}

func (h *AnalysisHandler) AnalyzeLogs(c *gin.Context) {
	var req dto.AnalyzeLogsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := h.analyzer.Analyze(req.Logs)
	c.JSON(http.StatusOK, dto.AnalyzeLogsResponse{Report: report})
}

func (h *AnalysisHandler) NormalizePath(c *gin.Context) {
	var req dto.NormalizePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	normalized, err := sanitize.NormalizePath(req.Path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.NormalizePathResponse{Path: normalized})
}
