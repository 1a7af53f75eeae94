package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wattflow/backend/internal/config"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/utils"
)

// UserService handles authentication and user management
type UserService struct {
	repos  *repository.Factory
	jwtCfg *config.JWTConfig
	logger *utils.Logger
}

// NewUserService creates a new user service
func NewUserService(repos *repository.Factory, jwtCfg *config.JWTConfig, logger *utils.Logger) *UserService {
	return &UserService{
		repos:  repos,
		jwtCfg: jwtCfg,
		logger: logger.Named("user_service"),
	}
}

// Authenticate verifies credentials and returns the user
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repos.User().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", utils.ErrUnauthorized)
		}
		return nil, utils.ErrInternalServer
	}
	if !user.CheckPassword(password) {
		return nil, fmt.Errorf("%w: invalid credentials", utils.ErrUnauthorized)
	}
	return user, nil
}

// GenerateToken issues a signed JWT for the user
func (s *UserService) GenerateToken(user *models.User) (string, error) {
	expiration := time.Duration(s.jwtCfg.ExpirationHours) * time.Hour
	claims := models.UserClaims{
		UserID:         user.ID,
		Role:           user.Role,
		SubscriptionID: user.SubscriptionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtCfg.Secret))
}

// ValidateToken parses and verifies a JWT, returning its claims
func (s *UserService) ValidateToken(tokenString string) (*models.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.UserClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtCfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, utils.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.UserClaims)
	if !ok {
		return nil, utils.ErrUnauthorized
	}
	return claims, nil
}

// Create adds a new user
func (s *UserService) Create(ctx context.Context, user *models.User) error {
	if _, err := s.repos.User().GetByEmail(ctx, user.Email); err == nil {
		return fmt.Errorf("%w: email already registered", utils.ErrAlreadyExists)
	}
	if err := s.repos.User().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return fmt.Errorf("%w: email already registered", utils.ErrAlreadyExists)
		}
		return utils.ErrInternalServer
	}
	return nil
}

// GetByID retrieves a user by ID
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repos.User().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, utils.ErrInternalServer
	}
	return user, nil
}
