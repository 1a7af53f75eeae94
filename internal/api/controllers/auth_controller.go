package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wattflow/backend/internal/config"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/services"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	SubscriptionID *uint  `json:"subscription_id"`
}

// TokenResponse represents the login/register response body
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uint      `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
}

// AuthController handles authentication-related endpoints
type AuthController struct {
	userService *services.UserService
	jwtConfig   *config.JWTConfig
	logger      *utils.Logger
}

// NewAuthController creates a new authentication controller
func NewAuthController(userService *services.UserService, jwtConfig *config.JWTConfig, logger *utils.Logger) *AuthController {
	return &AuthController{
		userService: userService,
		jwtConfig:   jwtConfig,
		logger:      logger.Named("auth_controller"),
	}
}

// RegisterRoutes registers the controller's routes with the router group
func (ac *AuthController) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/login", ac.Login)
		auth.POST("/register", ac.Register)
	}
}

// Login handles user authentication and returns a JWT token
// @Summary Login user
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param login_request body LoginRequest true "Login credentials"
// @Success 200 {object} TokenResponse "Login successful"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := ac.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		ac.logger.Warn("Login failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	ac.respondWithToken(c, http.StatusOK, user)
}

// Register handles user registration
// @Summary Register new user
// @Description Register a new user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param register_request body RegisterRequest true "Registration information"
// @Success 201 {object} TokenResponse "Registration successful"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 409 {object} map[string]string "Email already exists"
// @Router /auth/register [post]
func (ac *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := &models.User{
		Email:          req.Email,
		Password:       req.Password,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Role:           models.RoleViewer,
		SubscriptionID: req.SubscriptionID,
	}

	if err := ac.userService.Create(c.Request.Context(), user); err != nil {
		ac.logger.Warn("Registration failed", zap.String("email", req.Email), zap.Error(err))
		utils.HandleError(c, err, ac.logger)
		return
	}

	ac.respondWithToken(c, http.StatusCreated, user)
}

func (ac *AuthController) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := ac.userService.GenerateToken(user)
	if err != nil {
		ac.logger.Error("Failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authentication token"})
		return
	}

	c.JSON(status, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(time.Duration(ac.jwtConfig.ExpirationHours) * time.Hour),
		UserID:    user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
	})
}
