package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wattflow/backend/internal/api/middleware"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/services"
	"github.com/wattflow/backend/internal/utils"
)

// CreateAlertRequest represents the alert rule creation body
type CreateAlertRequest struct {
	DeviceID  uint    `json:"device_id" binding:"required"`
	Accessor  string  `json:"accessor" binding:"required"`
	Condition string  `json:"condition" binding:"required"`
	Threshold float64 `json:"threshold"`
}

// AlertController handles alert rule endpoints
type AlertController struct {
	alertService *services.AlertService
	logger       *utils.Logger
}

// NewAlertController creates a new alert controller
func NewAlertController(alertService *services.AlertService, logger *utils.Logger) *AlertController {
	return &AlertController{
		alertService: alertService,
		logger:       logger.Named("alert_controller"),
	}
}

// RegisterRoutes registers the controller's routes with the router group
func (ac *AlertController) RegisterRoutes(router *gin.RouterGroup) {
	alerts := router.Group("/alerts")
	{
		alerts.POST("", ac.Create)
		alerts.GET("", ac.List)
		alerts.DELETE("/:id", ac.Delete)
		alerts.GET("/:id/triggered", ac.ListTriggered)
	}
}

// Create adds a new alert rule
// @Summary Create alert rule
// @Description Watch one metric of one device with a threshold condition
// @Tags alerts
// @Accept json
// @Produce json
// @Param alert body CreateAlertRequest true "Alert rule"
// @Success 201 {object} models.AlertRule
// @Failure 400 {object} utils.ErrorResponse
// @Router /alerts [post]
func (ac *AlertController) Create(c *gin.Context) {
	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := &models.AlertRule{
		DeviceID:  req.DeviceID,
		Accessor:  req.Accessor,
		Condition: models.AlertCondition(req.Condition),
		Threshold: req.Threshold,
	}

	claims := middleware.GetClaims(c)
	if err := ac.alertService.CreateRule(c.Request.Context(), claims, rule); err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// List returns the caller's alert rules
// @Summary List alert rules
// @Tags alerts
// @Produce json
// @Success 200 {array} models.AlertRule
// @Router /alerts [get]
func (ac *AlertController) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	rules, err := ac.alertService.ListRules(c.Request.Context(), claims)
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// Delete removes one alert rule
// @Summary Delete alert rule
// @Tags alerts
// @Param id path int true "Alert rule ID"
// @Success 204
// @Router /alerts/{id} [delete]
func (ac *AlertController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	if err := ac.alertService.DeleteRule(c.Request.Context(), claims, id); err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTriggered returns the firing history of one rule
// @Summary List triggered alerts
// @Tags alerts
// @Produce json
// @Param id path int true "Alert rule ID"
// @Success 200 {array} models.TriggeredAlert
// @Router /alerts/{id}/triggered [get]
func (ac *AlertController) ListTriggered(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	triggered, err := ac.alertService.ListTriggered(c.Request.Context(), claims, id)
	if err != nil {
		utils.HandleError(c, err, ac.logger)
		return
	}
	c.JSON(http.StatusOK, triggered)
}
