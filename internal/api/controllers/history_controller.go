package controllers

import (
	"net/http"
	"time"

	"github.com/farmpulse/backend/internal/services"
	"github.com/farmpulse/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// ReadingsRequest defines the query parameters for a reading range query
type ReadingsRequest struct {
	Metric string    `form:"metric" binding:"required"`
	Start  time.Time `form:"start" time_format:"2006-01-02T15:04:05Z07:00"`
	End    time.Time `form:"end" time_format:"2006-01-02T15:04:05Z07:00"`
}

// AlertsRequest defines the query parameters for an alert range query
type AlertsRequest struct {
	SensorID string    `form:"sensor_id"`
	Start    time.Time `form:"start" time_format:"2006-01-02T15:04:05Z07:00"`
	End      time.Time `form:"end" time_format:"2006-01-02T15:04:05Z07:00"`
	Severity string    `form:"severity"`
}

// HistoryController serves stored readings, alerts, and rule statuses
type HistoryController struct {
	historyService *services.HistoryService
	logger         *utils.Logger
}

// NewHistoryController creates a new history controller
func NewHistoryController(historyService *services.HistoryService, logger *utils.Logger) *HistoryController {
	return &HistoryController{
		historyService: historyService,
		logger:         logger.Named("history_controller"),
	}
}

// RegisterRoutes registers the history routes
func (c *HistoryController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/sensors/:id/readings", c.GetReadings)
	router.GET("/sensors/:id/readings/latest", c.GetLatestReading)
	router.GET("/sensors/:id/status", c.GetRuleStatuses)
	router.GET("/alerts", c.GetAlerts)
}

// GetReadings returns readings for a sensor and metric in a time range
func (c *HistoryController) GetReadings(ctx *gin.Context) {
	sensorID := ctx.Param("id")

	var req ReadingsRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		utils.HandleValidationErrors(ctx, err)
		return
	}

	if req.Start.IsZero() {
		req.Start = time.Now().Add(-24 * time.Hour)
	}
	if req.End.IsZero() {
		req.End = time.Now()
	}

	readings, err := c.historyService.Readings(sensorID, req.Metric, req.Start, req.End)
	if err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"sensor_id": sensorID,
		"metric":    req.Metric,
		"readings":  readings,
	})
}

// GetLatestReading returns the most recent reading for a sensor and metric
func (c *HistoryController) GetLatestReading(ctx *gin.Context) {
	sensorID := ctx.Param("id")
	metric := ctx.Query("metric")

	reading, err := c.historyService.LatestReading(sensorID, metric)
	if err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	ctx.JSON(http.StatusOK, reading)
}

// GetRuleStatuses returns the current status of every rule matching a sensor
func (c *HistoryController) GetRuleStatuses(ctx *gin.Context) {
	sensorID := ctx.Param("id")

	statuses := c.historyService.RuleStatuses(sensorID)

	ctx.JSON(http.StatusOK, gin.H{
		"sensor_id": sensorID,
		"statuses":  statuses,
	})
}

// GetAlerts returns stored alerts, newest first, paginated
func (c *HistoryController) GetAlerts(ctx *gin.Context) {
	var req AlertsRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		utils.HandleValidationErrors(ctx, err)
		return
	}

	if req.Start.IsZero() {
		req.Start = time.Now().Add(-7 * 24 * time.Hour)
	}
	if req.End.IsZero() {
		req.End = time.Now()
	}

	pagination := utils.GetPaginationFromContext(ctx)

	alerts, total, err := c.historyService.Alerts(req.SensorID, req.Start, req.End, req.Severity, pagination.Offset(), pagination.Limit)
	if err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	ctx.JSON(http.StatusOK, utils.NewPaginatedResponse(alerts, pagination, total))
}
