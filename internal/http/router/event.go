package router

import (
	"github.com/gin-gonic/gin"

	"repogent.app/orchestrator/internal/http/handler"
)

func EventRouter(router *gin.RouterGroup, handler *handler.EventIngestHandler) {
	router.POST("", handler.Ingest)
}
