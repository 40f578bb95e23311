package router

import (
	"github.com/gin-gonic/gin"

	"repogent.app/orchestrator/internal/analyzer"
	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/http/handler"
	"repogent.app/orchestrator/internal/service"
)

func SetupRoutes(router *gin.Engine, services *service.Services, logAnalyzer *analyzer.Analyzer, agents []domain.AgentInfo) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		ingestHandler := handler.NewEventIngestHandler(services.EventIngest())
		EventRouter(v1.Group("/events"), ingestHandler)

		inboxHandler := handler.NewInboxHandler(services.Inbox())
		registryHandler := handler.NewAgentRegistryHandler(agents)
		AgentRouter(v1.Group("/agents"), inboxHandler, registryHandler)

		contextHandler := handler.NewEntityContextHandler(services.EntityContexts(), services.DecisionQueries())
		ContextRouter(v1.Group("/context"), contextHandler)
		EntityRouter(v1.Group("/entities"), contextHandler)

		analysisHandler := handler.NewAnalysisHandler(logAnalyzer)
		AnalysisRouter(v1, analysisHandler)
	}
}
