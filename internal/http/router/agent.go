package router

import (
	"github.com/gin-gonic/gin"

	"repogent.app/orchestrator/internal/http/handler"
)

func AgentRouter(router *gin.RouterGroup, handler *handler.InboxHandler, registry *handler.AgentRegistryHandler) {
	router.GET("", registry.List)
	router.GET("/:agent/messages", handler.Fetch)
	router.POST("/:agent/messages", handler.Send)
	router.POST("/:agent/messages/:id/ack", handler.Acknowledge)
}
