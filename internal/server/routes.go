package server

import (
	"github.com/gin-gonic/gin"
	"github.com/podiumlabs/podium/internal/config"
	"github.com/podiumlabs/podium/internal/handlers/websocket"
	"github.com/podiumlabs/podium/pkg/Logger"
)

type Dependencies struct {
	Logger        *Logger.Logger
	Configs       *config.Settings
	DebateHandler *websocket.DebateHandler
}

func NewServerDependencies(
	logger *Logger.Logger,
	cfg *config.Settings,
	debateHandler *websocket.DebateHandler,
) Dependencies {
	return Dependencies{
		Logger:        logger,
		Configs:       cfg,
		DebateHandler: debateHandler,
	}
}

func InitializeRoutes(r *gin.Engine, dep Dependencies) {
	r.GET("/", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"message": "Server healthy"}) })
	r.GET("/health", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"status": "ok"}) })

	dep.DebateHandler.RegisterRoutes(r)
}
