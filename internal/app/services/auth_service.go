package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
	"github.com/yigit/campuspass/internal/pkg/auth"
)

// AuthService handles operator authentication
type AuthService struct {
	operators  OperatorStore
	jwtService *auth.JWTService
	now        func() time.Time
	logger     zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(operators OperatorStore, jwtService *auth.JWTService, logger zerolog.Logger) *AuthService {
	return &AuthService{
		operators:  operators,
		jwtService: jwtService,
		now:        time.Now,
		logger:     logger,
	}
}

// Login checks operator credentials and issues an access token
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	op, err := s.operators.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrResourceNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(op.Password, req.Password) {
		s.logger.Warn().Str("email", email).Msg("Failed login attempt")
		return nil, apperrors.ErrInvalidCredentials
	}
	if !op.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	accessToken, expiresIn, err := s.jwtService.GenerateAccessToken(op)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.operators.UpdateLastLogin(ctx, op.ID, now); err != nil {
		// A stale last login time does not block the session
		s.logger.Warn().Err(err).Int64("operatorID", op.ID).Msg("Failed to update last login time")
	} else {
		op.LastLoginAt = &now
	}

	return &dto.LoginResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		Operator:    dto.NewOperatorResponse(op),
	}, nil
}

// GetProfile returns the public view of an operator
func (s *AuthService) GetProfile(ctx context.Context, operatorID int64) (*dto.OperatorResponse, error) {
	op, err := s.operators.GetByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	resp := dto.NewOperatorResponse(op)
	return &resp, nil
}
