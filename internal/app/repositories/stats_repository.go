package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/db"
	"github.com/yigit/campuspass/internal/pkg/logger"
)

// StatsRepository runs the aggregate queries behind the dashboards
type StatsRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewStatsRepository creates a new StatsRepository
func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{
		db: db,
		sb: newBuilder(),
	}
}

func (r *StatsRepository) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

// StudentsByLevel counts paid and unpaid students for every level, including
// levels without students.
func (r *StatsRepository) StudentsByLevel(ctx context.Context) ([]dto.LevelPaymentStats, error) {
	sql, args, err := r.sb.Select("level", "COUNT(*)", "COUNT(*) FILTER (WHERE has_paid)").
		From("students").
		GroupBy("level").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building students by level SQL")
		return nil, fmt.Errorf("failed to build students by level query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing students by level query")
		return nil, queryError("error querying students by level", err)
	}
	defer rows.Close()

	byLevel := map[models.StudyLevel]dto.LevelPaymentStats{}
	for rows.Next() {
		var s dto.LevelPaymentStats
		if err := rows.Scan(&s.Level, &s.Total, &s.Paid); err != nil {
			return nil, fmt.Errorf("error scanning students by level row: %w", err)
		}
		s.Unpaid = s.Total - s.Paid
		byLevel[s.Level] = s
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("error iterating students by level rows", err)
	}

	stats := make([]dto.LevelPaymentStats, 0, len(models.StudyLevels))
	for _, level := range models.StudyLevels {
		s, ok := byLevel[level]
		if !ok {
			s = dto.LevelPaymentStats{Level: level}
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// TicketStats counts tickets by validity, delivery state and type
func (r *StatsRepository) TicketStats(ctx context.Context) (dto.TicketStats, error) {
	stats := dto.TicketStats{ByType: map[string]int64{}}
	for _, t := range models.TicketTypes {
		stats.ByType[string(t)] = 0
	}

	sql, args, err := r.sb.Select("ticket_type", "COUNT(*)",
		"COUNT(*) FILTER (WHERE is_valid)", "COUNT(*) FILTER (WHERE is_sent)").
		From("tickets").
		GroupBy("ticket_type").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building ticket stats SQL")
		return stats, fmt.Errorf("failed to build ticket stats query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing ticket stats query")
		return stats, queryError("error querying ticket stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ticketType         string
			total, valid, sent int64
		)
		if err := rows.Scan(&ticketType, &total, &valid, &sent); err != nil {
			return stats, fmt.Errorf("error scanning ticket stats row: %w", err)
		}
		stats.ByType[ticketType] = total
		stats.Total += total
		stats.Valid += valid
		stats.Sent += sent
	}
	if err := rows.Err(); err != nil {
		return stats, queryError("error iterating ticket stats rows", err)
	}

	stats.Invalid = stats.Total - stats.Valid
	stats.Unsent = stats.Total - stats.Sent
	return stats, nil
}

// StudentTicketStats counts students holding at least one ticket, overall and per level
func (r *StatsRepository) StudentTicketStats(ctx context.Context) (dto.StudentTicketStats, error) {
	stats := dto.StudentTicketStats{}

	sql, args, err := r.sb.Select("s.level", "COUNT(*)",
		"COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM tickets t WHERE t.student_id = s.id))").
		From("students s").
		GroupBy("s.level").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building student ticket stats SQL")
		return stats, fmt.Errorf("failed to build student ticket stats query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing student ticket stats query")
		return stats, queryError("error querying student ticket stats", err)
	}
	defer rows.Close()

	holders := map[models.StudyLevel]int64{}
	for rows.Next() {
		var (
			level              models.StudyLevel
			total, withTickets int64
		)
		if err := rows.Scan(&level, &total, &withTickets); err != nil {
			return stats, fmt.Errorf("error scanning student ticket stats row: %w", err)
		}
		holders[level] = withTickets
		stats.TotalStudents += total
		stats.WithTickets += withTickets
	}
	if err := rows.Err(); err != nil {
		return stats, queryError("error iterating student ticket stats rows", err)
	}

	stats.WithoutTickets = stats.TotalStudents - stats.WithTickets
	stats.ByLevel = make([]dto.LevelTicketHolders, 0, len(models.StudyLevels))
	for _, level := range models.StudyLevels {
		stats.ByLevel = append(stats.ByLevel, dto.LevelTicketHolders{Level: level, WithTickets: holders[level]})
	}
	return stats, nil
}
