package controllers

import (
	"net/http"
	"strconv"

	"github.com/farmpulse/backend/internal/db/models"
	"github.com/farmpulse/backend/internal/services"
	"github.com/farmpulse/backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// RuleRequest is the payload for creating or updating a rule
type RuleRequest struct {
	Name            string  `json:"name" binding:"required"`
	Metric          string  `json:"metric" binding:"required"`
	SensorID        string  `json:"sensor_id"`
	Comparator      string  `json:"comparator" binding:"required,oneof=gt gte lt lte rate_gt rate_lt"`
	Threshold       float64 `json:"threshold"`
	WindowSize      int     `json:"window_size"`
	Severity        string  `json:"severity" binding:"omitempty,oneof=info warning critical"`
	DebounceSeconds int     `json:"debounce_seconds" binding:"min=0"`
	ClearAfter      int     `json:"clear_after" binding:"omitempty,min=1"`
	Enabled         *bool   `json:"enabled"`
	Position        int     `json:"position"`
}

// toModel converts the request into a rule model with defaults applied
func (r *RuleRequest) toModel() *models.Rule {
	rule := &models.Rule{
		Name:            r.Name,
		Metric:          r.Metric,
		SensorID:        r.SensorID,
		Comparator:      r.Comparator,
		Threshold:       r.Threshold,
		WindowSize:      r.WindowSize,
		Severity:        r.Severity,
		DebounceSeconds: r.DebounceSeconds,
		ClearAfter:      r.ClearAfter,
		Enabled:         true,
		Position:        r.Position,
	}
	if rule.SensorID == "" {
		rule.SensorID = models.WildcardSensor
	}
	if rule.Severity == "" {
		rule.Severity = models.SeverityWarning
	}
	if rule.ClearAfter == 0 {
		rule.ClearAfter = 1
	}
	if r.Enabled != nil {
		rule.Enabled = *r.Enabled
	}
	return rule
}

// RuleController manages rule configuration over HTTP
type RuleController struct {
	ruleService *services.RuleService
	logger      *utils.Logger
}

// NewRuleController creates a new rule controller
func NewRuleController(ruleService *services.RuleService, logger *utils.Logger) *RuleController {
	return &RuleController{
		ruleService: ruleService,
		logger:      logger.Named("rule_controller"),
	}
}

// RegisterRoutes registers the rule routes
func (c *RuleController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/rules", c.ListRules)
	router.GET("/rules/:id", c.GetRule)
	router.POST("/rules", c.CreateRule)
	router.PUT("/rules/:id", c.UpdateRule)
	router.DELETE("/rules/:id", c.DeleteRule)
}

// ListRules returns all configured rules
func (c *RuleController) ListRules(ctx *gin.Context) {
	rules, err := c.ruleService.List()
	if err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"rules": rules})
}

// GetRule returns one rule by id
func (c *RuleController) GetRule(ctx *gin.Context) {
	id, ok := c.ruleID(ctx)
	if !ok {
		return
	}

	rule, err := c.ruleService.Get(id)
	if err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	ctx.JSON(http.StatusOK, rule)
}

// CreateRule validates and stores a new rule
func (c *RuleController) CreateRule(ctx *gin.Context) {
	var req RuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.HandleValidationErrors(ctx, err)
		return
	}

	rule, err := c.ruleService.Create(req.toModel())
	if err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	ctx.JSON(http.StatusCreated, rule)
}

// UpdateRule validates and stores changes to an existing rule
func (c *RuleController) UpdateRule(ctx *gin.Context) {
	id, ok := c.ruleID(ctx)
	if !ok {
		return
	}

	var req RuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.HandleValidationErrors(ctx, err)
		return
	}

	rule := req.toModel()
	rule.ID = id

	updated, err := c.ruleService.Update(rule)
	if err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// DeleteRule removes a rule
func (c *RuleController) DeleteRule(ctx *gin.Context) {
	id, ok := c.ruleID(ctx)
	if !ok {
		return
	}

	if err := c.ruleService.Delete(id); err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// ruleID parses the :id path parameter
func (c *RuleController) ruleID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule ID"})
		return 0, false
	}
	return uint(id), true
}
