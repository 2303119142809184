package controllers

import (
	"io"
	"net/http"

	"github.com/farmpulse/backend/internal/services"
	"github.com/farmpulse/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// maxIngestBody bounds a single inbound sensor message
const maxIngestBody = 16 * 1024

// IngestController accepts inbound sensor messages from field gateways
type IngestController struct {
	ingestService *services.IngestService
	logger        *utils.Logger
}

// NewIngestController creates a new ingest controller
func NewIngestController(ingestService *services.IngestService, logger *utils.Logger) *IngestController {
	return &IngestController{
		ingestService: ingestService,
		logger:        logger.Named("ingest_controller"),
	}
}

// RegisterRoutes registers the ingest routes
func (c *IngestController) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/ingest", c.Ingest)
}

// Ingest accepts one raw sensor reading. The response is sent once the
// reading is durably stored; alert evaluation and live push complete
// independently of it.
func (c *IngestController) Ingest(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxIngestBody))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"accepted": false, "reason": "failed to read request body"})
		return
	}

	reading, err := c.ingestService.Ingest(ctx.Request.Context(), body)
	if err != nil {
		if utils.IsValidationError(err) {
			ctx.JSON(http.StatusBadRequest, gin.H{"accepted": false, "reason": err.Error()})
			return
		}
		utils.HandleError(ctx, err, c.logger)
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{
		"accepted":  true,
		"sensor_id": reading.SensorID,
		"metric":    reading.Metric,
		"time":      reading.Time,
	})
}
