package router

import (
	"github.com/gin-gonic/gin"

	"repogent.app/orchestrator/internal/http/handler"
)

func ContextRouter(router *gin.RouterGroup, handler *handler.EntityContextHandler) {
	router.GET("/:type/:id", handler.Get)
	router.POST("/:type/:id", handler.Merge)
}

func EntityRouter(router *gin.RouterGroup, handler *handler.EntityContextHandler) {
	router.GET("/:type/:id/decisions", handler.Decisions)
}
