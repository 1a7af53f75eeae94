package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wattflow/backend/internal/api/middleware"
	"github.com/wattflow/backend/internal/services"
	"github.com/wattflow/backend/internal/utils"
)

// ReportController exposes generated consumption reports
type ReportController struct {
	reportService *services.ReportService
	logger        *utils.Logger
}

// NewReportController creates a new report controller
func NewReportController(reportService *services.ReportService, logger *utils.Logger) *ReportController {
	return &ReportController{
		reportService: reportService,
		logger:        logger.Named("report_controller"),
	}
}

// RegisterRoutes registers the controller's routes with the router group
func (rc *ReportController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/subscriptions/:id/reports", rc.List)
}

// List returns a subscription's monthly reports, newest first
// @Summary List consumption reports
// @Tags reports
// @Produce json
// @Param id path int true "Subscription ID"
// @Success 200 {array} models.Report
// @Router /subscriptions/{id}/reports [get]
func (rc *ReportController) List(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	reports, err := rc.reportService.List(c.Request.Context(), claims, id)
	if err != nil {
		utils.HandleError(c, err, rc.logger)
		return
	}
	c.JSON(http.StatusOK, reports)
}
