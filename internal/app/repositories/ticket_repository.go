package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

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

var ticketColumns = []string{
	"t.id", "t.student_id", "t.ticket_code", "t.purchased_at", "t.is_valid", "t.event_name",
	"t.ticket_type", "t.token", "t.is_sent", "t.sent_at", "t.created_at", "t.updated_at",
}

// consumeSQL invalidates a ticket only while it is still valid, so two gates
// scanning the same code concurrently see exactly one success.
const consumeSQL = `WITH consumed AS (
	UPDATE tickets SET is_valid = false, updated_at = NOW()
	WHERE id = $1 AND ticket_code = $2 AND is_valid = true
	RETURNING id, student_id, ticket_code, purchased_at, is_valid, event_name, ticket_type
)
SELECT c.id, c.student_id, c.ticket_code, c.purchased_at, c.is_valid, c.event_name, c.ticket_type,
	s.matricule, s.last_name, s.first_name, s.level
FROM consumed c
JOIN students s ON s.id = c.student_id`

// TicketRepository handles ticket database operations
type TicketRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewTicketRepository creates a new TicketRepository
func NewTicketRepository(db *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{
		db: db,
		sb: newBuilder(),
	}
}

func (r *TicketRepository) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

func ticketDest(t *models.Ticket) []interface{} {
	return []interface{}{&t.ID, &t.StudentID, &t.TicketCode, &t.PurchasedAt, &t.IsValid, &t.EventName,
		&t.TicketType, &t.Token, &t.IsSent, &t.SentAt, &t.CreatedAt, &t.UpdatedAt}
}

// Create inserts a ticket without token. The token is stored with SetToken
// once the id is known.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	sql, args, err := r.sb.Insert("tickets").
		Columns("student_id", "ticket_code", "purchased_at", "is_valid", "event_name", "ticket_type", "token", "is_sent").
		Values(ticket.StudentID, ticket.TicketCode, ticket.PurchasedAt, ticket.IsValid, ticket.EventName, ticket.TicketType, ticket.Token, false).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create ticket SQL")
		return fmt.Errorf("failed to build create ticket query: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		if dberrors.IsUniqueViolation(err) {
			return apperrors.ErrTicketCodeExists
		}
		if dberrors.IsForeignKeyViolation(err) {
			return apperrors.ErrStudentNotFound
		}
		logger.Error().Err(err).Str("ticketCode", ticket.TicketCode).Msg("Error executing create ticket query")
		return queryError("error creating ticket", err)
	}
	ticket.IsSent = false
	return nil
}

// SetToken stores the signed token of a freshly created ticket
func (r *TicketRepository) SetToken(ctx context.Context, id int64, token string) error {
	sql, args, err := r.sb.Update("tickets").
		Set("token", token).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building set token SQL")
		return fmt.Errorf("failed to build set token query: %w", err)
	}

	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("ticketID", id).Msg("Error executing set token query")
		return queryError("error storing ticket token", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTicketNotFound
	}
	return nil
}

func (r *TicketRepository) withStudent() squirrel.SelectBuilder {
	cols := append(append([]string{}, ticketColumns...), "s.matricule", "s.last_name", "s.first_name", "s.level", "s.email")
	return r.sb.Select(cols...).
		From("tickets t").
		Join("students s ON s.id = t.student_id")
}

func scanTicketWithStudent(row pgx.Row) (*models.Ticket, error) {
	t := &models.Ticket{}
	s := &models.Student{}
	dest := append(ticketDest(t), &s.Matricule, &s.LastName, &s.FirstName, &s.Level, &s.Email)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	s.ID = t.StudentID
	t.Student = s
	return t, nil
}

// GetByID retrieves a ticket with a summary of its student
func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	sql, args, err := r.withStudent().
		Where(squirrel.Eq{"t.id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get ticket by ID SQL")
		return nil, fmt.Errorf("failed to build get ticket query: %w", err)
	}

	ticket, err := scanTicketWithStudent(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		logger.Error().Err(err).Int64("ticketID", id).Msg("Error scanning ticket row")
		return nil, queryError("error getting ticket by ID", err)
	}
	return ticket, nil
}

// ListByStudent returns every ticket of a student, newest first
func (r *TicketRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.Ticket, error) {
	sql, args, err := r.sb.Select(ticketColumns...).
		From("tickets t").
		Where(squirrel.Eq{"t.student_id": studentID}).
		OrderBy("t.purchased_at DESC", "t.id DESC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list student tickets SQL")
		return nil, fmt.Errorf("failed to build list student tickets query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error executing list student tickets query")
		return nil, queryError("error querying student tickets", err)
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(ticketDest(&t)...); err != nil {
			logger.Error().Err(err).Msg("Error scanning ticket row")
			return nil, fmt.Errorf("error scanning ticket row: %w", err)
		}
		tickets = append(tickets, t)
	}

	if err := rows.Err(); err != nil {
		logger.Error().Err(err).Msg("Error iterating ticket rows")
		return nil, queryError("error iterating ticket rows", err)
	}
	return tickets, nil
}

func (r *TicketRepository) listFilter(filter dto.TicketFilter) squirrel.And {
	where := squirrel.And{}
	if filter.StudentID > 0 {
		where = append(where, squirrel.Eq{"t.student_id": filter.StudentID})
	}
	if filter.IsValid != nil {
		where = append(where, squirrel.Eq{"t.is_valid": *filter.IsValid})
	}
	return where
}

// List returns one page of tickets matching filter and the total match count
func (r *TicketRepository) List(ctx context.Context, filter dto.TicketFilter) ([]models.Ticket, int64, error) {
	countSQL, countArgs, err := r.sb.Select("COUNT(*)").
		From("tickets t").
		Where(r.listFilter(filter)).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building count tickets SQL")
		return nil, 0, fmt.Errorf("failed to build count tickets query: %w", err)
	}

	var total int64
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		logger.Error().Err(err).Msg("Error executing count tickets query")
		return nil, 0, queryError("error counting tickets", err)
	}

	offset, limit := helpers.CalculateOffsetLimit(filter.Page, filter.Size)
	sql, args, err := r.withStudent().
		Where(r.listFilter(filter)).
		OrderBy("t.purchased_at DESC", "t.id DESC").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list tickets SQL")
		return nil, 0, fmt.Errorf("failed to build list tickets query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list tickets query")
		return nil, 0, queryError("error querying tickets", err)
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		t, err := scanTicketWithStudent(rows)
		if err != nil {
			logger.Error().Err(err).Msg("Error scanning ticket row")
			return nil, 0, fmt.Errorf("error scanning ticket row: %w", err)
		}
		tickets = append(tickets, *t)
	}

	if err := rows.Err(); err != nil {
		logger.Error().Err(err).Msg("Error iterating ticket rows")
		return nil, 0, queryError("error iterating ticket rows", err)
	}
	return tickets, total, nil
}

// Update saves the editable columns. token, is_sent and sent_at are never written here.
func (r *TicketRepository) Update(ctx context.Context, ticket *models.Ticket) error {
	sql, args, err := r.sb.Update("tickets").
		SetMap(map[string]interface{}{
			"student_id":   ticket.StudentID,
			"ticket_code":  ticket.TicketCode,
			"purchased_at": ticket.PurchasedAt,
			"is_valid":     ticket.IsValid,
			"event_name":   ticket.EventName,
			"ticket_type":  ticket.TicketType,
			"updated_at":   squirrel.Expr("NOW()"),
		}).
		Where(squirrel.Eq{"id": ticket.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building update ticket SQL")
		return fmt.Errorf("failed to build update ticket query: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&ticket.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return apperrors.ErrTicketNotFound
		case dberrors.IsUniqueViolation(err):
			return apperrors.ErrTicketCodeExists
		case dberrors.IsForeignKeyViolation(err):
			return apperrors.ErrStudentNotFound
		}
		logger.Error().Err(err).Int64("ticketID", ticket.ID).Msg("Error executing update ticket query")
		return queryError("error updating ticket", err)
	}
	return nil
}

// Delete removes a ticket
func (r *TicketRepository) Delete(ctx context.Context, id int64) error {
	sql, args, err := r.sb.Delete("tickets").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building delete ticket SQL")
		return fmt.Errorf("failed to build delete ticket query: %w", err)
	}

	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("ticketID", id).Msg("Error executing delete ticket query")
		return queryError("error deleting ticket", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTicketNotFound
	}
	return nil
}

// DeleteByStudent removes every ticket of a student and returns how many went
func (r *TicketRepository) DeleteByStudent(ctx context.Context, studentID int64) (int64, error) {
	sql, args, err := r.sb.Delete("tickets").
		Where(squirrel.Eq{"student_id": studentID}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building delete student tickets SQL")
		return 0, fmt.Errorf("failed to build delete student tickets query: %w", err)
	}

	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error executing delete student tickets query")
		return 0, queryError("error deleting student tickets", err)
	}
	return tag.RowsAffected(), nil
}

// SetValidityForStudent sets is_valid on every ticket of the student in one statement
func (r *TicketRepository) SetValidityForStudent(ctx context.Context, studentID int64, valid bool) (int64, error) {
	sql, args, err := r.sb.Update("tickets").
		Set("is_valid", valid).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"student_id": studentID}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building set validity SQL")
		return 0, fmt.Errorf("failed to build set validity query: %w", err)
	}

	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error executing set validity query")
		return 0, queryError("error setting ticket validity", err)
	}
	return tag.RowsAffected(), nil
}

// MarkSent flips is_sent once. It reports false when the ticket was already
// sent or no longer exists.
func (r *TicketRepository) MarkSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	sql, args, err := r.sb.Update("tickets").
		Set("is_sent", true).
		Set("sent_at", at).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id, "is_sent": false}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building mark sent SQL")
		return false, fmt.Errorf("failed to build mark sent query: %w", err)
	}

	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("ticketID", id).Msg("Error executing mark sent query")
		return false, queryError("error marking ticket sent", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TicketRepository) pendingDeliveriesQuery() squirrel.SelectBuilder {
	return r.sb.Select(append(append([]string{}, studentColumns...), ticketColumns...)...).
		From("students s").
		Join("tickets t ON t.student_id = s.id").
		Where(squirrel.Eq{"s.has_paid": true, "t.is_valid": true, "t.is_sent": false}).
		OrderBy("s.id ASC", "t.id ASC")
}

// FindPendingDeliveries returns paid students with their valid, unsent
// tickets, grouped by student in id order.
func (r *TicketRepository) FindPendingDeliveries(ctx context.Context) ([]models.PendingDelivery, error) {
	sql, args, err := r.pendingDeliveriesQuery().ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building pending deliveries SQL")
		return nil, fmt.Errorf("failed to build pending deliveries query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing pending deliveries query")
		return nil, queryError("error querying pending deliveries", err)
	}
	defer rows.Close()

	pending := []models.PendingDelivery{}
	for rows.Next() {
		var s models.Student
		var t models.Ticket
		dest := append([]interface{}{&s.ID, &s.Matricule, &s.LastName, &s.FirstName, &s.Level,
			&s.Email, &s.HasPaid, &s.CreatedAt, &s.UpdatedAt}, ticketDest(&t)...)
		if err := rows.Scan(dest...); err != nil {
			logger.Error().Err(err).Msg("Error scanning pending delivery row")
			return nil, fmt.Errorf("error scanning pending delivery row: %w", err)
		}
		if n := len(pending); n > 0 && pending[n-1].Student.ID == s.ID {
			pending[n-1].Tickets = append(pending[n-1].Tickets, t)
			continue
		}
		pending = append(pending, models.PendingDelivery{Student: s, Tickets: []models.Ticket{t}})
	}

	if err := rows.Err(); err != nil {
		logger.Error().Err(err).Msg("Error iterating pending delivery rows")
		return nil, queryError("error iterating pending delivery rows", err)
	}
	return pending, nil
}

// Consume atomically invalidates a still valid ticket and returns it with its
// student. ErrTicketNotFound means the ticket is unknown or already used.
func (r *TicketRepository) Consume(ctx context.Context, ticketID int64, ticketCode string) (*models.Ticket, error) {
	t := &models.Ticket{}
	s := &models.Student{}
	err := r.conn(ctx).QueryRow(ctx, consumeSQL, ticketID, ticketCode).Scan(
		&t.ID, &t.StudentID, &t.TicketCode, &t.PurchasedAt, &t.IsValid, &t.EventName, &t.TicketType,
		&s.Matricule, &s.LastName, &s.FirstName, &s.Level,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		logger.Error().Err(err).Int64("ticketID", ticketID).Msg("Error executing consume ticket query")
		return nil, queryError("error consuming ticket", err)
	}
	s.ID = t.StudentID
	t.Student = s
	return t, nil
}

// Counts returns the total number of tickets and how many are no longer valid
func (r *TicketRepository) Counts(ctx context.Context) (dto.TicketCounts, error) {
	var counts dto.TicketCounts
	sql, args, err := r.sb.Select("COUNT(*)", "COUNT(*) FILTER (WHERE NOT is_valid)").
		From("tickets").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building ticket counts SQL")
		return counts, fmt.Errorf("failed to build ticket counts query: %w", err)
	}

	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&counts.Total, &counts.NotValid); err != nil {
		logger.Error().Err(err).Msg("Error executing ticket counts query")
		return counts, queryError("error counting tickets", err)
	}
	return counts, nil
}
