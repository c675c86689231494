package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
	"github.com/yigit/campuspass/internal/pkg/auth"
	"github.com/yigit/campuspass/internal/pkg/helpers"
	"github.com/yigit/campuspass/internal/seed"
)

// OperatorService manages back-office accounts. Accounts are never removed,
// only deactivated, so gate validations keep pointing at a known operator.
type OperatorService struct {
	operators OperatorStore
	logger    zerolog.Logger
}

// NewOperatorService creates a new OperatorService
func NewOperatorService(operators OperatorStore, logger zerolog.Logger) *OperatorService {
	return &OperatorService{operators: operators, logger: logger}
}

// List returns one page of operators
func (s *OperatorService) List(ctx context.Context, filter dto.OperatorFilter) (*dto.OperatorListResponse, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, apperrors.ErrInvalidRole
	}
	filter.Page, filter.Size = normalizePage(filter.Page, filter.Size)

	ops, total, err := s.operators.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	resp := &dto.OperatorListResponse{
		Operators:  make([]dto.OperatorResponse, 0, len(ops)),
		Pagination: helpers.NewPaginationInfo(total, filter.Page, filter.Size),
	}
	for i := range ops {
		resp.Operators = append(resp.Operators, dto.NewOperatorResponse(&ops[i]))
	}
	return resp, nil
}

// GetByID returns one operator
func (s *OperatorService) GetByID(ctx context.Context, id int64) (*dto.OperatorResponse, error) {
	op, err := s.operators.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewOperatorResponse(op)
	return &resp, nil
}

// Create adds an active operator
func (s *OperatorService) Create(ctx context.Context, req *dto.CreateOperatorRequest) (*dto.OperatorResponse, error) {
	if !req.RoleType.Valid() {
		return nil, apperrors.ErrInvalidRole
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, apperrors.NewValidationError("email and password are required")
	}

	op, err := seed.CreateOperator(ctx, s.operators, seed.NewOperator{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      req.RoleType,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("operatorID", op.ID).Str("role", string(op.RoleType)).Msg("Operator created")
	resp := dto.NewOperatorResponse(op)
	return &resp, nil
}

// Update applies the provided fields. actorID is the operator making the
// change; it may not deactivate or demote itself.
func (s *OperatorService) Update(ctx context.Context, actorID, id int64, req *dto.UpdateOperatorRequest) (*dto.OperatorResponse, error) {
	op, err := s.operators.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		op.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		op.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.RoleType != nil {
		if !req.RoleType.Valid() {
			return nil, apperrors.ErrInvalidRole
		}
		if id == actorID && *req.RoleType != op.RoleType {
			return nil, apperrors.ErrSelfLockout
		}
		op.RoleType = *req.RoleType
	}
	if req.IsActive != nil {
		if id == actorID && !*req.IsActive {
			return nil, apperrors.ErrSelfLockout
		}
		op.IsActive = *req.IsActive
	}
	if req.Password != nil {
		hashed, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		op.Password = hashed
	}

	if err := s.operators.Update(ctx, op); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("operatorID", id).Int64("actorID", actorID).Msg("Operator updated")
	resp := dto.NewOperatorResponse(op)
	return &resp, nil
}

// Deactivate disables an operator. Tokens already issued stay valid until
// they expire; new logins are refused.
func (s *OperatorService) Deactivate(ctx context.Context, actorID, id int64) error {
	if id == actorID {
		return apperrors.ErrSelfLockout
	}
	op, err := s.operators.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !op.IsActive {
		return nil
	}
	op.IsActive = false
	if err := s.operators.Update(ctx, op); err != nil {
		return err
	}

	s.logger.Info().Int64("operatorID", id).Int64("actorID", actorID).Msg("Operator deactivated")
	return nil
}
