package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wattflow/backend/internal/api/middleware"
	"github.com/wattflow/backend/internal/services"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

// LiveController upgrades authenticated clients to websocket
// connections on the live push service.
type LiveController struct {
	liveService *services.LiveService
	userService *services.UserService
	upgrader    websocket.Upgrader
	logger      *utils.Logger
}

// NewLiveController creates a new live controller
func NewLiveController(liveService *services.LiveService, userService *services.UserService, logger *utils.Logger) *LiveController {
	return &LiveController{
		liveService: liveService,
		userService: userService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers cannot set the Authorization header on websocket
			// upgrades from arbitrary origins; CORS policy is applied at
			// the router level instead.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.Named("live_controller"),
	}
}

// RegisterRoutes registers the controller's routes with the router group
func (lc *LiveController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/live", lc.Connect)
}

// Connect upgrades the request to a websocket connection and joins the
// caller to its rooms.
func (lc *LiveController) Connect(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User is not authenticated"})
		return
	}

	user, err := lc.userService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		utils.HandleError(c, err, lc.logger)
		return
	}

	conn, err := lc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		lc.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	lc.liveService.RegisterClient(conn, user)
}
