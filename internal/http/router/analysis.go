package router

import (
	"github.com/gin-gonic/gin"

	"repogent.app/orchestrator/internal/http/handler"
)

func AnalysisRouter(router *gin.RouterGroup, handler *handler.AnalysisHandler) {
	router.POST("/analysis/logs", handler.AnalyzeLogs)
	router.POST("/paths/normalize", handler.NormalizePath)
}
