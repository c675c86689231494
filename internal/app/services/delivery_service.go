package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
	"github.com/yigit/campuspass/internal/pkg/mailer"
	"github.com/yigit/campuspass/internal/pkg/metrics"
	"github.com/yigit/campuspass/internal/pkg/runlock"
)

const deliveryLock = "delivery"

// Delivery outcome categories, also used as metric labels
const (
	outcomeSent    = "sent"
	outcomeMissing = "missing_email"
	outcomeInvalid = "invalid_email"
	outcomeFailed  = "failed"
)

// DeliveryService emails ticket QR codes to paid students
type DeliveryService struct {
	store    DeliveryStore
	renderer QRRenderer
	mailer   mailer.Mailer
	locker   runlock.Locker
	metrics  *metrics.Metrics
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewDeliveryService creates a new DeliveryService. interval is the pause
// after one send completes before the next one starts.
func NewDeliveryService(
	store DeliveryStore,
	renderer QRRenderer,
	m mailer.Mailer,
	locker runlock.Locker,
	metrics *metrics.Metrics,
	interval time.Duration,
	logger zerolog.Logger,
) *DeliveryService {
	return &DeliveryService{
		store:    store,
		renderer: renderer,
		mailer:   m,
		locker:   locker,
		metrics:  metrics,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// SendAll delivers every valid, unsent ticket of every paid student. Only a
// failure to select the pending tickets is returned; per-ticket failures are
// folded into the report.
func (s *DeliveryService) SendAll(ctx context.Context) (*dto.DeliveryReport, error) {
	lease, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, lease)

	return s.run(ctx, lease)
}

func (s *DeliveryService) acquire(ctx context.Context) (*runlock.Lease, error) {
	lease, err := s.locker.TryAcquire(ctx, deliveryLock)
	if err != nil {
		if errors.Is(err, runlock.ErrLocked) {
			return nil, apperrors.ErrDeliveryInProgress
		}
		return nil, fmt.Errorf("failed to acquire delivery lock: %w", err)
	}
	return lease, nil
}

func (s *DeliveryService) release(ctx context.Context, lease *runlock.Lease) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to release delivery lock")
	}
}

// run processes the pending tickets while lease is held. When the lease is
// lost or ctx ends, the remaining tickets are left for a later run and the
// partial report is returned with the cause.
func (s *DeliveryService) run(ctx context.Context, lease *runlock.Lease) (*dto.DeliveryReport, error) {
	finish := s.metrics.DeliveryRunStarted()

	runCtx, stop := lease.Bind(ctx)
	defer stop()

	pending, err := s.store.FindPendingDeliveries(runCtx)
	if err != nil {
		finish(dto.RunFailed)
		return nil, fmt.Errorf("failed to select pending deliveries: %w", err)
	}

	report := &dto.DeliveryReport{
		Successful:    []dto.DeliveryItem{},
		Failed:        []dto.DeliveryItem{},
		MissingEmails: []dto.DeliveryItem{},
		InvalidEmails: []dto.DeliveryItem{},
	}

	p := &pacer{interval: s.interval}
	var stopped error
tickets:
	for i := range pending {
		student := &pending[i].Student
		for _, ticket := range pending[i].Tickets {
			if runCtx.Err() != nil {
				stopped = context.Cause(runCtx)
				break tickets
			}

			item, outcome := s.deliver(runCtx, p, student, ticket)
			s.metrics.DeliveryOutcome(outcome, string(item.ErrorType))

			switch outcome {
			case outcomeSent:
				report.Successful = append(report.Successful, item)
			case outcomeMissing:
				report.MissingEmails = append(report.MissingEmails, item)
			case outcomeInvalid:
				report.InvalidEmails = append(report.InvalidEmails, item)
			default:
				report.Failed = append(report.Failed, item)
			}
		}
	}

	report.Summary = summarize(report)
	report.ProcessedAt = s.now()

	if stopped != nil {
		finish(dto.RunFailed)
		s.logger.Warn().Err(stopped).
			Int("processed", report.Summary.TotalProcessed).
			Int("sent", report.Summary.SuccessfulSends).
			Msg("Ticket delivery run stopped before the end")
		return report, fmt.Errorf("delivery run stopped: %w", stopped)
	}
	finish(dto.RunCompleted)

	s.logger.Info().
		Int("total", report.Summary.TotalProcessed).
		Int("sent", report.Summary.SuccessfulSends).
		Int("failed", report.Summary.FailedSends).
		Int("missingEmail", report.Summary.MissingEmails).
		Int("invalidEmail", report.Summary.InvalidEmails).
		Int("successRate", report.Summary.SuccessRate).
		Msg("Ticket delivery run finished")
	return report, nil
}

// deliver processes one ticket. It never panics and never returns an error:
// every problem ends up in the returned item.
func (s *DeliveryService) deliver(ctx context.Context, p *pacer, student *models.Student, ticket models.Ticket) (item dto.DeliveryItem, outcome string) {
	item = dto.DeliveryItem{
		TicketID:    ticket.ID,
		TicketCode:  ticket.TicketCode,
		StudentID:   student.ID,
		Matricule:   student.Matricule,
		StudentName: student.DisplayName(),
		Email:       strings.TrimSpace(student.Email),
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("ticketCode", ticket.TicketCode).Msg("Panic while delivering ticket")
			item, outcome = processingFailure(item, fmt.Sprintf("unexpected failure: %v", r))
		}
	}()

	if item.Email == "" {
		item.ErrorMessage = "student has no email address"
		return item, outcomeMissing
	}
	if ticket.Token == "" {
		return processingFailure(item, "ticket has no token")
	}

	png, err := s.renderer.Render(ticket.Token)
	if err != nil {
		return processingFailure(item, err.Error())
	}

	if err := p.wait(ctx); err != nil {
		return processingFailure(item, fmt.Sprintf("delivery interrupted: %v", err))
	}

	start := s.now()
	res := s.mailer.Send(ctx, mailer.Message{
		To:          item.Email,
		DisplayName: item.StudentName,
		EventName:   ticket.EventName,
		TicketCode:  ticket.TicketCode,
		QRCode:      png,
	})
	p.sent()
	s.metrics.MailSent(s.now().Sub(start), res.Success)

	if !res.Success {
		item.ErrorType = res.ErrorType
		item.ErrorMessage = res.ErrorMessage
		item.ErrorCode = res.ErrorCode
		item.ServerResponse = res.ServerResponse
		s.logger.Warn().
			Str("ticketCode", ticket.TicketCode).
			Str("errorType", string(res.ErrorType)).
			Str("errorCode", res.ErrorCode).
			Msg("Ticket email not delivered")
		if res.ErrorType.IsInvalidAddress() {
			return item, outcomeInvalid
		}
		return item, outcomeFailed
	}

	sentAt := res.SentAt
	if sentAt.IsZero() {
		sentAt = s.now()
	}
	// The email is out; record it even when the run is being stopped.
	marked, err := s.store.MarkSent(context.WithoutCancel(ctx), ticket.ID, sentAt)
	if err != nil {
		s.logger.Error().Err(err).Str("ticketCode", ticket.TicketCode).Msg("Ticket emailed but not marked as sent")
		return processingFailure(item, fmt.Sprintf("email sent but ticket state not saved: %v", err))
	}
	if !marked {
		s.logger.Warn().Str("ticketCode", ticket.TicketCode).Msg("Ticket was already delivered or removed")
		item, outcome = processingFailure(item, "ticket already delivered by another run or removed")
		item.MessageID = res.MessageID
		return item, outcome
	}

	item.MessageID = res.MessageID
	item.SentAt = &sentAt
	return item, outcomeSent
}

// pacer keeps a fixed pause between the end of one send and the start of
// the next.
type pacer struct {
	interval time.Duration
	last     time.Time
}

func (p *pacer) wait(ctx context.Context) error {
	if p.interval <= 0 || p.last.IsZero() {
		return ctx.Err()
	}
	remaining := time.Until(p.last.Add(p.interval))
	if remaining <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *pacer) sent() {
	p.last = time.Now()
}

func processingFailure(item dto.DeliveryItem, message string) (dto.DeliveryItem, string) {
	item.ErrorType = mailer.ErrProcessing
	item.ErrorMessage = message
	item.ErrorCode = ""
	item.ServerResponse = ""
	item.MessageID = ""
	item.SentAt = nil
	return item, outcomeFailed
}

func summarize(report *dto.DeliveryReport) dto.DeliverySummary {
	summary := dto.DeliverySummary{
		SuccessfulSends: len(report.Successful),
		FailedSends:     len(report.Failed),
		MissingEmails:   len(report.MissingEmails),
		InvalidEmails:   len(report.InvalidEmails),
	}
	summary.TotalProcessed = summary.SuccessfulSends + summary.FailedSends + summary.MissingEmails + summary.InvalidEmails
	summary.SuccessRate = successRate(summary.SuccessfulSends, summary.TotalProcessed)
	return summary
}

// successRate returns round(successful/total*100), 0 when nothing was processed
func successRate(successful, total int) int {
	if total == 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(successful)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(0).
		IntPart())
}
