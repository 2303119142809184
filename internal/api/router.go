package api

import (
	"net/http"

	"github.com/farmpulse/backend/internal/api/controllers"
	"github.com/farmpulse/backend/internal/api/middleware"
	"github.com/farmpulse/backend/internal/config"
	"github.com/farmpulse/backend/internal/services"
	"github.com/farmpulse/backend/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Router manages the API routes and controllers
type Router struct {
	engine          *gin.Engine
	logger          *utils.Logger
	config          *config.Config
	serviceProvider *services.ServiceProvider

	ingestController  *controllers.IngestController
	historyController *controllers.HistoryController
	ruleController    *controllers.RuleController
	liveController    *controllers.LiveController
}

// NewRouter creates a new Router instance
func NewRouter(
	config *config.Config,
	logger *utils.Logger,
	serviceProvider *services.ServiceProvider,
) *Router {
	if config.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.LoggingMiddleware(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Origin"}
	engine.Use(cors.New(corsConfig))

	return &Router{
		engine:          engine,
		logger:          logger.Named("router"),
		config:          config,
		serviceProvider: serviceProvider,
	}
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.ingestController = controllers.NewIngestController(r.serviceProvider.GetIngestService(), r.logger)
	r.historyController = controllers.NewHistoryController(r.serviceProvider.GetHistoryService(), r.logger)
	r.ruleController = controllers.NewRuleController(r.serviceProvider.GetRuleService(), r.logger)
	r.liveController = controllers.NewLiveController(r.serviceProvider.GetLiveManager(), r.logger)

	apiV1 := r.engine.Group("/api/v1")

	r.ingestController.RegisterRoutes(apiV1)
	r.historyController.RegisterRoutes(apiV1)
	r.ruleController.RegisterRoutes(apiV1)
	r.liveController.RegisterRoutes(apiV1)

	r.logger.Info("API routes setup completed")
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
