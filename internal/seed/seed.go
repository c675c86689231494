// Package seed creates the accounts a fresh installation needs.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	appModels "github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/pkg/auth"
)

// OperatorStore is the slice of operator storage used for seeding
type OperatorStore interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, op *appModels.Operator) error
}

// NewOperator describes an account created from the command line or at startup
type NewOperator struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      appModels.RoleType
}

// CreateOperator hashes the password and stores an active operator.
func CreateOperator(ctx context.Context, store OperatorStore, in NewOperator) (*appModels.Operator, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, errors.New("operator email and password are required")
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("unknown operator role %q", in.Role)
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash operator password: %w", err)
	}

	op := &appModels.Operator{
		Email:     email,
		Password:  hashed,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		RoleType:  in.Role,
		IsActive:  true,
	}
	if err := store.Create(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// EnsureAdmin creates the default administrator when no operator exists yet.
func EnsureAdmin(ctx context.Context, store OperatorStore, email, password string, lgr zerolog.Logger) error {
	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count operators: %w", err)
	}
	if count > 0 {
		lgr.Debug().Int64("operators", count).Msg("Operators already exist, skipping admin seed")
		return nil
	}
	if email == "" || password == "" {
		lgr.Warn().Msg("No operator exists and no seed admin is configured; nobody can log in")
		return nil
	}

	op, err := CreateOperator(ctx, store, NewOperator{
		Email:     email,
		Password:  password,
		FirstName: "System",
		LastName:  "Administrator",
		Role:      appModels.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to create default admin: %w", err)
	}

	lgr.Info().Int64("operatorID", op.ID).Str("email", op.Email).Msg("Default admin created")
	return nil
}
