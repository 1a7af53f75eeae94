package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wattflow/backend/internal/api/middleware"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/services"
	"github.com/wattflow/backend/internal/utils"
)

// CreateDeviceRequest represents the device creation request body
type CreateDeviceRequest struct {
	ExternalID     string              `json:"external_id" binding:"required"`
	Name           string              `json:"name" binding:"required"`
	Description    string              `json:"description"`
	Type           string              `json:"type" binding:"required"`
	SubscriptionID uint                `json:"subscription_id" binding:"required"`
	Metrics        []CreateMetricEntry `json:"metrics"`
}

// CreateMetricEntry declares one metric of a new device
type CreateMetricEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Accessor    string `json:"accessor" binding:"required"`
	Unit        string `json:"unit"`
}

// BlockDeviceRequest toggles the blocked flag
type BlockDeviceRequest struct {
	Blocked *bool `json:"blocked" binding:"required"`
}

// DeviceController handles device registry endpoints
type DeviceController struct {
	deviceService *services.DeviceService
	logger        *utils.Logger
}

// NewDeviceController creates a new device controller
func NewDeviceController(deviceService *services.DeviceService, logger *utils.Logger) *DeviceController {
	return &DeviceController{
		deviceService: deviceService,
		logger:        logger.Named("device_controller"),
	}
}

// RegisterRoutes registers the controller's routes with the router group
func (dc *DeviceController) RegisterRoutes(router *gin.RouterGroup) {
	devices := router.Group("/devices")
	{
		devices.POST("", dc.Create)
		devices.GET("", dc.List)
		devices.GET("/:id", dc.Get)
		devices.PATCH("/:id/block", dc.SetBlocked)
		devices.DELETE("/:id", dc.Delete)
	}
}

// Create registers a new device
// @Summary Register device
// @Description Register a new device with its declared metrics
// @Tags devices
// @Accept json
// @Produce json
// @Param device body CreateDeviceRequest true "Device definition"
// @Success 201 {object} models.Device
// @Failure 400 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Router /devices [post]
func (dc *DeviceController) Create(c *gin.Context) {
	var req CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device := &models.Device{
		ExternalID:     req.ExternalID,
		Name:           req.Name,
		Description:    req.Description,
		Type:           models.DeviceType(req.Type),
		SubscriptionID: req.SubscriptionID,
	}
	for _, m := range req.Metrics {
		device.Metrics = append(device.Metrics, models.Metric{
			Name:        m.Name,
			Description: m.Description,
			Accessor:    m.Accessor,
			Unit:        m.Unit,
		})
	}

	claims := middleware.GetClaims(c)
	if err := dc.deviceService.Create(c.Request.Context(), claims, device); err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.JSON(http.StatusCreated, device)
}

// List returns the devices visible to the caller
// @Summary List devices
// @Tags devices
// @Produce json
// @Success 200 {array} models.Device
// @Router /devices [get]
func (dc *DeviceController) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	devices, err := dc.deviceService.List(c.Request.Context(), claims)
	if err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.JSON(http.StatusOK, devices)
}

// Get returns one device
// @Summary Get device
// @Tags devices
// @Produce json
// @Param id path int true "Device ID"
// @Success 200 {object} models.Device
// @Failure 404 {object} utils.ErrorResponse
// @Router /devices/{id} [get]
func (dc *DeviceController) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	device, err := dc.deviceService.Get(c.Request.Context(), claims, id)
	if err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.JSON(http.StatusOK, device)
}

// SetBlocked blocks or unblocks a device
// @Summary Block or unblock device
// @Tags devices
// @Accept json
// @Param id path int true "Device ID"
// @Param body body BlockDeviceRequest true "Blocked flag"
// @Success 204
// @Router /devices/{id}/block [patch]
func (dc *DeviceController) SetBlocked(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req BlockDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims := middleware.GetClaims(c)
	if err := dc.deviceService.SetBlocked(c.Request.Context(), claims, id, *req.Blocked); err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes a device
// @Summary Delete device
// @Tags devices
// @Param id path int true "Device ID"
// @Success 204
// @Router /devices/{id} [delete]
func (dc *DeviceController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	if err := dc.deviceService.Delete(c.Request.Context(), claims, id); err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseIDParam parses the :id path parameter, responding 400 on failure.
func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id parameter"})
		return 0, false
	}
	return uint(id), true
}
