package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/wattflow/backend/internal/api/controllers"
	"github.com/wattflow/backend/internal/api/middleware"
	"github.com/wattflow/backend/internal/config"
	"github.com/wattflow/backend/internal/services"
	"github.com/wattflow/backend/internal/utils"
)

// Router manages the API routes and controllers
type Router struct {
	engine          *gin.Engine
	logger          *utils.Logger
	config          *config.Config
	authMiddleware  *middleware.AuthMiddleware
	serviceProvider *services.ServiceProvider
}

// NewRouter creates a new Router instance
func NewRouter(
	cfg *config.Config,
	logger *utils.Logger,
	serviceProvider *services.ServiceProvider,
) *Router {
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.LoggingMiddleware(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Authorization", "Content-Type", "Origin"}
	engine.Use(cors.New(corsConfig))

	return &Router{
		engine:          engine,
		logger:          logger.Named("router"),
		config:          cfg,
		authMiddleware:  middleware.NewAuthMiddleware(serviceProvider.GetUserService()),
		serviceProvider: serviceProvider,
	}
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes() {
	// Health check endpoint (no auth required)
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	authController := controllers.NewAuthController(
		r.serviceProvider.GetUserService(), &r.config.JWT, r.logger)
	deviceController := controllers.NewDeviceController(
		r.serviceProvider.GetDeviceService(), r.logger)
	dataController := controllers.NewDataController(
		r.serviceProvider.GetDataService(), r.logger)
	alertController := controllers.NewAlertController(
		r.serviceProvider.GetAlertService(), r.logger)
	reportController := controllers.NewReportController(
		r.serviceProvider.GetReportService(), r.logger)
	liveController := controllers.NewLiveController(
		r.serviceProvider.GetLiveService(), r.serviceProvider.GetUserService(), r.logger)

	// Auth routes (no auth required)
	authController.RegisterRoutes(r.engine.Group("/api"))

	// All main API routes are under /api/v1 and require authentication
	apiV1 := r.engine.Group("/api/v1")
	apiV1.Use(r.authMiddleware.RequireAuth())

	deviceController.RegisterRoutes(apiV1)
	dataController.RegisterRoutes(apiV1)
	alertController.RegisterRoutes(apiV1)
	reportController.RegisterRoutes(apiV1)
	liveController.RegisterRoutes(apiV1)

	if !r.config.Server.IsProduction() {
		r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.logger.Info("API routes setup completed")
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
