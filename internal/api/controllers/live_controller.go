package controllers

import (
	"net/http"

	"github.com/farmpulse/backend/internal/live"
	"github.com/farmpulse/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// upgrader configures the websocket handshake for live sessions
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Dashboards are served from arbitrary origins on the local network.
		return true
	},
}

// LiveController upgrades dashboard connections into live event sessions
type LiveController struct {
	manager *live.Manager
	logger  *utils.Logger
}

// NewLiveController creates a new live controller
func NewLiveController(manager *live.Manager, logger *utils.Logger) *LiveController {
	return &LiveController{
		manager: manager,
		logger:  logger.Named("live_controller"),
	}
}

// RegisterRoutes registers the live routes
func (c *LiveController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/live", c.OpenLiveSession)
}

// OpenLiveSession upgrades the connection and attaches it to the live
// channel manager. The session ends on client disconnect or transport error.
func (c *LiveController) OpenLiveSession(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.logger.Warn("Websocket upgrade failed",
			zap.String("ip", ctx.ClientIP()),
			zap.Error(err))
		return
	}

	sub := c.manager.Connect(conn)
	c.logger.Info("Live session opened",
		zap.String("subscriber_id", sub.ID),
		zap.String("ip", ctx.ClientIP()))
}
