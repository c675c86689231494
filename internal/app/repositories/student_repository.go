package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/db"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
	"github.com/yigit/campuspass/internal/pkg/dberrors"
	"github.com/yigit/campuspass/internal/pkg/helpers"
	"github.com/yigit/campuspass/internal/pkg/logger"
)

var studentColumns = []string{
	"s.id", "s.matricule", "s.last_name", "s.first_name", "s.level",
	"s.email", "s.has_paid", "s.created_at", "s.updated_at",
}

// StudentRepository handles student database operations
type StudentRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{
		db: db,
		sb: newBuilder(),
	}
}

func (r *StudentRepository) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

func scanStudent(row pgx.Row, s *models.Student) error {
	return row.Scan(&s.ID, &s.Matricule, &s.LastName, &s.FirstName, &s.Level,
		&s.Email, &s.HasPaid, &s.CreatedAt, &s.UpdatedAt)
}

// Create inserts a student and fills its id and timestamps
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	sql, args, err := r.sb.Insert("students").
		Columns("matricule", "last_name", "first_name", "level", "email", "has_paid").
		Values(student.Matricule, student.LastName, student.FirstName, student.Level, student.Email, student.HasPaid).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create student SQL")
		return fmt.Errorf("failed to build create student query: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&student.ID, &student.CreatedAt, &student.UpdatedAt)
	if err != nil {
		if dberrors.IsUniqueViolation(err) {
			return apperrors.ErrMatriculeExists
		}
		logger.Error().Err(err).Str("matricule", student.Matricule).Msg("Error executing create student query")
		return queryError("error creating student", err)
	}
	return nil
}

// GetByID retrieves a student without its tickets
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	sql, args, err := r.sb.Select(studentColumns...).
		From("students s").
		Where(squirrel.Eq{"s.id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get student by ID SQL")
		return nil, fmt.Errorf("failed to build get student query: %w", err)
	}

	student := &models.Student{}
	if err := scanStudent(r.conn(ctx).QueryRow(ctx, sql, args...), student); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		logger.Error().Err(err).Int64("studentID", id).Msg("Error scanning student row")
		return nil, queryError("error getting student by ID", err)
	}
	return student, nil
}

// ExistsByMatricule reports whether a student already uses the matricule
func (r *StudentRepository) ExistsByMatricule(ctx context.Context, matricule string) (bool, error) {
	sql, args, err := r.sb.Select("1").
		From("students").
		Where(squirrel.Eq{"matricule": matricule}).
		Prefix("SELECT EXISTS (").Suffix(")").
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building matricule exists SQL")
		return false, fmt.Errorf("failed to build matricule exists query: %w", err)
	}

	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, queryError("error checking matricule", err)
	}
	return exists, nil
}

func (r *StudentRepository) listFilter(filter dto.StudentFilter) squirrel.And {
	where := squirrel.And{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"s.last_name": pattern},
			squirrel.ILike{"s.first_name": pattern},
			squirrel.ILike{"s.matricule": pattern},
			squirrel.ILike{"s.email": pattern},
		})
	}
	if filter.Level != "" {
		where = append(where, squirrel.Eq{"s.level": filter.Level})
	}
	if filter.HasPaid != nil {
		where = append(where, squirrel.Eq{"s.has_paid": *filter.HasPaid})
	}
	return where
}

func (r *StudentRepository) listQuery(filter dto.StudentFilter) squirrel.SelectBuilder {
	offset, limit := helpers.CalculateOffsetLimit(filter.Page, filter.Size)
	return r.sb.Select(studentColumns...).
		From("students s").
		Where(r.listFilter(filter)).
		OrderBy("s.last_name ASC", "s.first_name ASC", "s.id ASC").
		Limit(limit).
		Offset(offset)
}

// List returns one page of students matching filter and the total match count
func (r *StudentRepository) List(ctx context.Context, filter dto.StudentFilter) ([]models.Student, int64, error) {
	countSQL, countArgs, err := r.sb.Select("COUNT(*)").
		From("students s").
		Where(r.listFilter(filter)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building count students SQL")
		return nil, 0, fmt.Errorf("failed to build count students query: %w", err)
	}

	var total int64
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		logger.Error().Err(err).Msg("Error executing count students query")
		return nil, 0, queryError("error counting students", err)
	}

	sql, args, err := r.listQuery(filter).ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list students SQL")
		return nil, 0, fmt.Errorf("failed to build list students query: %w", err)
	}

	students, err := r.queryStudents(ctx, sql, args)
	if err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

func (r *StudentRepository) queryStudents(ctx context.Context, sql string, args []interface{}) ([]models.Student, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing student query")
		return nil, queryError("error querying students", err)
	}
	defer rows.Close()

	students := []models.Student{}
	for rows.Next() {
		var s models.Student
		if err := scanStudent(rows, &s); err != nil {
			logger.Error().Err(err).Msg("Error scanning student row")
			return nil, fmt.Errorf("error scanning student row: %w", err)
		}
		students = append(students, s)
	}

	if err := rows.Err(); err != nil {
		logger.Error().Err(err).Msg("Error iterating student rows")
		return nil, queryError("error iterating student rows", err)
	}
	return students, nil
}

// Update saves every mutable column of the student
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	sql, args, err := r.sb.Update("students").
		SetMap(map[string]interface{}{
			"matricule":  student.Matricule,
			"last_name":  student.LastName,
			"first_name": student.FirstName,
			"level":      student.Level,
			"email":      student.Email,
			"has_paid":   student.HasPaid,
			"updated_at": squirrel.Expr("NOW()"),
		}).
		Where(squirrel.Eq{"id": student.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building update student SQL")
		return fmt.Errorf("failed to build update student query: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&student.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrStudentNotFound
		}
		if dberrors.IsUniqueViolation(err) {
			return apperrors.ErrMatriculeExists
		}
		logger.Error().Err(err).Int64("studentID", student.ID).Msg("Error executing update student query")
		return queryError("error updating student", err)
	}
	return nil
}

// SetPaid changes only the payment flag
func (r *StudentRepository) SetPaid(ctx context.Context, id int64, paid bool) error {
	sql, args, err := r.sb.Update("students").
		Set("has_paid", paid).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building set paid SQL")
		return fmt.Errorf("failed to build set paid query: %w", err)
	}

	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", id).Msg("Error executing set paid query")
		return queryError("error setting payment status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStudentNotFound
	}
	return nil
}

// Delete removes the student. Tickets go with it through the foreign key.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := r.sb.Delete("students").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building delete student SQL")
		return fmt.Errorf("failed to build delete student query: %w", err)
	}

	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", id).Msg("Error executing delete student query")
		return queryError("error deleting student", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStudentNotFound
	}
	return nil
}

func (r *StudentRepository) paidWithoutTicketsQuery() squirrel.SelectBuilder {
	return r.sb.Select(studentColumns...).
		From("students s").
		Where(squirrel.Eq{"s.has_paid": true}).
		Where("NOT EXISTS (SELECT 1 FROM tickets t WHERE t.student_id = s.id)").
		OrderBy("s.id ASC")
}

// FindPaidWithoutTickets lists paid students owning no ticket at all
func (r *StudentRepository) FindPaidWithoutTickets(ctx context.Context) ([]models.Student, error) {
	sql, args, err := r.paidWithoutTicketsQuery().ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building paid without tickets SQL")
		return nil, fmt.Errorf("failed to build paid without tickets query: %w", err)
	}
	return r.queryStudents(ctx, sql, args)
}
