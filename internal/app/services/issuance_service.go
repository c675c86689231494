package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/db"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
	"github.com/yigit/campuspass/internal/pkg/metrics"
	"github.com/yigit/campuspass/internal/pkg/runlock"
)

const (
	issuanceLock = "issuance"
	// maxCodeAttempts bounds regeneration after a ticket code collision
	maxCodeAttempts = 3
)

// IssuanceDefaults are applied when a request leaves event or type empty
type IssuanceDefaults struct {
	EventName  string
	TicketType models.TicketType
}

// IssuanceService creates signed tickets
type IssuanceService struct {
	tx       db.Transactor
	students StudentStore
	tickets  TicketStore
	tokens   TokenIssuer
	codes    CodeGenerator
	locker   runlock.Locker
	metrics  *metrics.Metrics
	defaults IssuanceDefaults
	now      func() time.Time
	logger   zerolog.Logger
}

// NewIssuanceService creates a new IssuanceService
func NewIssuanceService(
	tx db.Transactor,
	students StudentStore,
	tickets TicketStore,
	tokens TokenIssuer,
	codes CodeGenerator,
	locker runlock.Locker,
	m *metrics.Metrics,
	defaults IssuanceDefaults,
	logger zerolog.Logger,
) *IssuanceService {
	return &IssuanceService{
		tx:       tx,
		students: students,
		tickets:  tickets,
		tokens:   tokens,
		codes:    codes,
		locker:   locker,
		metrics:  m,
		defaults: defaults,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *IssuanceService) resolve(eventName string, ticketType models.TicketType) (string, models.TicketType, error) {
	eventName = strings.TrimSpace(eventName)
	if eventName == "" {
		eventName = s.defaults.EventName
	}
	if ticketType == "" {
		ticketType = s.defaults.TicketType
	}
	if !ticketType.Valid() {
		return "", "", apperrors.ErrInvalidTicketType
	}
	return eventName, ticketType, nil
}

// IssueSingle issues one ticket for an existing student
func (s *IssuanceService) IssueSingle(ctx context.Context, studentID int64, eventName string, ticketType models.TicketType) (*models.Ticket, error) {
	eventName, ticketType, err := s.resolve(eventName, ticketType)
	if err != nil {
		return nil, err
	}

	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	ticket, err := s.issueFor(ctx, models.Ticket{StudentID: student.ID, EventName: eventName, TicketType: ticketType})
	if err != nil {
		s.metrics.TicketIssued(dto.IssuanceFailed)
		return nil, err
	}
	s.metrics.TicketIssued(dto.IssuanceSuccess)

	ticket.Student = student
	s.logger.Info().
		Int64("studentID", student.ID).
		Str("ticketCode", ticket.TicketCode).
		Str("event", eventName).
		Msg("Ticket issued")
	return ticket, nil
}

// IssueForAllPaidWithoutTicket issues one ticket to every paid student that
// owns none. Per-student failures are reported, never returned.
func (s *IssuanceService) IssueForAllPaidWithoutTicket(ctx context.Context, eventName string, ticketType models.TicketType) (*dto.IssuanceReport, error) {
	eventName, ticketType, err := s.resolve(eventName, ticketType)
	if err != nil {
		return nil, err
	}

	lease, err := s.locker.TryAcquire(ctx, issuanceLock)
	if err != nil {
		if errors.Is(err, runlock.ErrLocked) {
			return nil, apperrors.ErrIssuanceInProgress
		}
		return nil, fmt.Errorf("failed to acquire issuance lock: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to release issuance lock")
		}
	}()

	students, err := s.students.FindPaidWithoutTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to select paid students without tickets: %w", err)
	}

	report := &dto.IssuanceReport{
		Total:      len(students),
		EventName:  eventName,
		TicketType: string(ticketType),
		Details:    make([]dto.IssuanceDetail, 0, len(students)),
	}

	for i := range students {
		student := &students[i]
		detail := dto.IssuanceDetail{
			StudentID:   student.ID,
			Matricule:   student.Matricule,
			StudentName: student.DisplayName(),
			Email:       student.Email,
		}

		ticket, err := s.issueFor(ctx, models.Ticket{StudentID: student.ID, EventName: eventName, TicketType: ticketType})
		if err != nil {
			detail.Status = dto.IssuanceFailed
			detail.Error = err.Error()
			report.FailedCount++
			s.logger.Warn().Err(err).Int64("studentID", student.ID).Msg("Ticket issuance failed")
		} else {
			detail.Status = dto.IssuanceSuccess
			detail.TicketID = ticket.ID
			detail.TicketCode = ticket.TicketCode
			report.SuccessCount++
		}
		s.metrics.TicketIssued(detail.Status)
		report.Details = append(report.Details, detail)
	}

	s.logger.Info().
		Int("total", report.Total).
		Int("success", report.SuccessCount).
		Int("failed", report.FailedCount).
		Str("event", eventName).
		Msg("Bulk ticket issuance finished")
	return report, nil
}

// issueFor creates a ticket from draft with a generated code, regenerating
// the code when it collides with an existing one.
func (s *IssuanceService) issueFor(ctx context.Context, draft models.Ticket) (*models.Ticket, error) {
	if draft.PurchasedAt.IsZero() {
		draft.PurchasedAt = s.now()
	}
	draft.IsValid = true

	for attempt := 1; ; attempt++ {
		code, err := s.codes.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to generate ticket code: %w", err)
		}

		ticket := draft
		ticket.TicketCode = code
		err = s.createSigned(ctx, &ticket)
		if err == nil {
			return &ticket, nil
		}
		if !errors.Is(err, apperrors.ErrTicketCodeExists) || attempt >= maxCodeAttempts {
			return nil, err
		}
		s.logger.Warn().Str("ticketCode", code).Int("attempt", attempt).Msg("Ticket code collision, regenerating")
	}
}

// createSigned inserts the ticket and stores its token in one transaction,
// so a signing or storage failure leaves no ticket without token.
func (s *IssuanceService) createSigned(ctx context.Context, ticket *models.Ticket) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return err
		}
		token, err := s.tokens.Issue(ticket.ID, ticket.StudentID, ticket.TicketCode, ticket.EventName)
		if err != nil {
			return fmt.Errorf("failed to sign ticket token: %w", err)
		}
		if err := s.tickets.SetToken(ctx, ticket.ID, token); err != nil {
			return err
		}
		ticket.Token = token
		return nil
	})
}
