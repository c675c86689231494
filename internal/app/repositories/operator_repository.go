package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
	"github.com/yigit/campuspass/internal/pkg/dberrors"
	"github.com/yigit/campuspass/internal/pkg/helpers"
)

// OperatorRepository handles back-office account storage
type OperatorRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewOperatorRepository creates a new OperatorRepository
func NewOperatorRepository(db *pgxpool.Pool) *OperatorRepository {
	return &OperatorRepository{db: db, sb: newBuilder()}
}

var operatorColumns = []string{
	"id", "email", "password", "first_name", "last_name", "role_type",
	"is_active", "last_login_at", "created_at", "updated_at",
}

const operatorSelect = `
	SELECT id, email, password, first_name, last_name, role_type, is_active, last_login_at, created_at, updated_at
	FROM operators`

func scanOperator(row pgx.Row) (*models.Operator, error) {
	op := &models.Operator{}
	err := row.Scan(&op.ID, &op.Email, &op.Password, &op.FirstName, &op.LastName,
		&op.RoleType, &op.IsActive, &op.LastLoginAt, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return op, nil
}

// Create inserts an operator account
func (r *OperatorRepository) Create(ctx context.Context, op *models.Operator) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO operators (email, password, first_name, last_name, role_type, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		op.Email, op.Password, op.FirstName, op.LastName, op.RoleType, op.IsActive,
	).Scan(&op.ID, &op.CreatedAt, &op.UpdatedAt)
	if err != nil {
		if dberrors.IsUniqueViolation(err) {
			return apperrors.NewConflictError("email already in use")
		}
		return queryError("error creating operator", err)
	}
	return nil
}

// GetByEmail retrieves an operator by email
func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (*models.Operator, error) {
	op, err := scanOperator(r.db.QueryRow(ctx, operatorSelect+` WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrOperatorNotFound
		}
		return nil, queryError("error getting operator by email", err)
	}
	return op, nil
}

// GetByID retrieves an operator by ID
func (r *OperatorRepository) GetByID(ctx context.Context, id int64) (*models.Operator, error) {
	op, err := scanOperator(r.db.QueryRow(ctx, operatorSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrOperatorNotFound
		}
		return nil, queryError("error getting operator by ID", err)
	}
	return op, nil
}

// Count returns the number of operator accounts
func (r *OperatorRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM operators`).Scan(&n); err != nil {
		return 0, queryError("error counting operators", err)
	}
	return n, nil
}

// UpdateLastLogin updates the last login time
func (r *OperatorRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE operators
		SET last_login_at = $1
		WHERE id = $2`,
		at, id)
	if err != nil {
		return fmt.Errorf("failed to update last login time: %w", err)
	}
	return nil
}

func (r *OperatorRepository) listFilter(filter dto.OperatorFilter) squirrel.And {
	where := squirrel.And{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"email": pattern},
			squirrel.ILike{"first_name": pattern},
			squirrel.ILike{"last_name": pattern},
		})
	}
	if filter.Role != "" {
		where = append(where, squirrel.Eq{"role_type": filter.Role})
	}
	if filter.IsActive != nil {
		where = append(where, squirrel.Eq{"is_active": *filter.IsActive})
	}
	return where
}

func (r *OperatorRepository) listQuery(filter dto.OperatorFilter) squirrel.SelectBuilder {
	offset, limit := helpers.CalculateOffsetLimit(filter.Page, filter.Size)
	return r.sb.Select(operatorColumns...).
		From("operators").
		Where(r.listFilter(filter)).
		OrderBy("last_name ASC", "first_name ASC", "id ASC").
		Limit(limit).
		Offset(offset)
}

// List returns one page of operators matching filter and the total match count
func (r *OperatorRepository) List(ctx context.Context, filter dto.OperatorFilter) ([]models.Operator, int64, error) {
	countSQL, countArgs, err := r.sb.Select("COUNT(*)").
		From("operators").
		Where(r.listFilter(filter)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count operators query: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, queryError("error counting operators", err)
	}

	sql, args, err := r.listQuery(filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list operators query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, queryError("error listing operators", err)
	}
	defer rows.Close()

	ops := []models.Operator{}
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning operator row: %w", err)
		}
		ops = append(ops, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, queryError("error iterating operator rows", err)
	}
	return ops, total, nil
}

// Update saves the profile, role, activity flag and password hash of an operator
func (r *OperatorRepository) Update(ctx context.Context, op *models.Operator) error {
	sql, args, err := r.sb.Update("operators").
		SetMap(map[string]interface{}{
			"first_name": op.FirstName,
			"last_name":  op.LastName,
			"role_type":  op.RoleType,
			"is_active":  op.IsActive,
			"password":   op.Password,
			"updated_at": squirrel.Expr("NOW()"),
		}).
		Where(squirrel.Eq{"id": op.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update operator query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&op.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrOperatorNotFound
		}
		return queryError("error updating operator", err)
	}
	return nil
}
