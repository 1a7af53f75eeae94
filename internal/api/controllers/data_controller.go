package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wattflow/backend/internal/api/middleware"
	"github.com/wattflow/backend/internal/services"
	"github.com/wattflow/backend/internal/utils"
)

// DataController answers telemetry queries
type DataController struct {
	dataService *services.DataService
	logger      *utils.Logger
}

// NewDataController creates a new data controller
func NewDataController(dataService *services.DataService, logger *utils.Logger) *DataController {
	return &DataController{
		dataService: dataService,
		logger:      logger.Named("data_controller"),
	}
}

// RegisterRoutes registers the controller's routes with the router group
func (dc *DataController) RegisterRoutes(router *gin.RouterGroup) {
	data := router.Group("/data")
	{
		data.GET("/devices/:id/energy", dc.Energy)
		data.GET("/devices/:id/energy/overview", dc.EnergyOverview)
		data.GET("/devices/:id/power", dc.Power)
		data.GET("/subscriptions/:id/consumption", dc.SubscriptionConsumption)
	}
}

// Energy returns a device's bucketed consumption
// @Summary Device energy consumption
// @Description Bucketed consumption for the current day, month or year
// @Tags data
// @Produce json
// @Param id path int true "Device ID"
// @Param granularity query string false "Granularity: 1d, 1m or 1y" default(1m)
// @Success 200 {array} aggregation.Bucket
// @Failure 404 {object} utils.ErrorResponse
// @Router /data/devices/{id}/energy [get]
func (dc *DataController) Energy(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	buckets, err := dc.dataService.EnergyConsumption(c.Request.Context(), claims, id, c.Query("granularity"))
	if err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

// EnergyOverview returns a device's consumption under coarse bucket keys
// @Summary Device energy overview
// @Description Consumption for the current day, month or year labelled by the whole period
// @Tags data
// @Produce json
// @Param id path int true "Device ID"
// @Param granularity query string false "Granularity: 1d, 1m or 1y" default(1m)
// @Success 200 {array} aggregation.Bucket
// @Failure 404 {object} utils.ErrorResponse
// @Router /data/devices/{id}/energy/overview [get]
func (dc *DataController) EnergyOverview(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	buckets, err := dc.dataService.EnergyOverview(c.Request.Context(), claims, id, c.Query("granularity"))
	if err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

// Power returns a device's raw power series
// @Summary Device power series
// @Description Raw power readings over the configured lookback window, oldest first
// @Tags data
// @Produce json
// @Param id path int true "Device ID"
// @Success 200 {array} models.TelemetryPoint
// @Router /data/devices/{id}/power [get]
func (dc *DataController) Power(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	points, err := dc.dataService.PowerSeries(c.Request.Context(), claims, id)
	if err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.JSON(http.StatusOK, points)
}

// SubscriptionConsumption returns the subscription-wide consumption sum
// @Summary Subscription consumption
// @Description Bucketed consumption summed across every device of the subscription
// @Tags data
// @Produce json
// @Param id path int true "Subscription ID"
// @Param granularity query string false "Granularity: 1d, 1m or 1y" default(1m)
// @Success 200 {array} services.SubscriptionBucket
// @Router /data/subscriptions/{id}/consumption [get]
func (dc *DataController) SubscriptionConsumption(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	buckets, err := dc.dataService.SubscriptionConsumption(c.Request.Context(), claims, id, c.Query("granularity"))
	if err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.JSON(http.StatusOK, buckets)
}
