package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
	"github.com/yigit/campuspass/internal/pkg/metrics"
	"github.com/yigit/campuspass/internal/pkg/tickettoken"
	"github.com/yigit/campuspass/internal/pkg/websocket"
)

// Gate messages
const (
	msgTicketValid    = "ticket valid, entry granted"
	msgTokenExpired   = "ticket QR code has expired"
	msgTokenMalformed = "invalid ticket QR code format"
	msgTicketUsed     = "ticket already used or nonexistent"
	msgWrongEvent     = "ticket was issued for another event"
)

// TokenVerifier checks ticket tokens
type TokenVerifier interface {
	Verify(token string) (*tickettoken.Claims, error)
}

// ValidationService admits ticket holders at the gate
type ValidationService struct {
	store     ValidationStore
	verifier  TokenVerifier
	publisher ScanPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

// NewValidationService creates a new ValidationService. publisher may be nil.
func NewValidationService(
	store ValidationStore,
	verifier TokenVerifier,
	publisher ScanPublisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ValidationService {
	return &ValidationService{
		store:     store,
		verifier:  verifier,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
		logger:    logger,
	}
}

// Validate consumes the ticket carried by token. Every ticket problem is an
// INVALID result; only datastore failures are returned as errors.
// operatorID identifies the scanning operator in the gate feed.
func (s *ValidationService) Validate(ctx context.Context, token, expectedEvent string, operatorID int64) (*dto.ValidationResult, error) {
	claims, err := s.verifier.Verify(strings.TrimSpace(token))
	if err != nil {
		msg := msgTokenMalformed
		if errors.Is(err, tickettoken.ErrExpiredToken) {
			msg = msgTokenExpired
		}
		result := &dto.ValidationResult{Result: dto.ValidationInvalid, Message: msg}
		s.record(result, websocket.ScanEvent{EventName: expectedEvent, OperatorID: operatorID})
		return result, nil
	}

	event := websocket.ScanEvent{
		EventName:  claims.EventName,
		TicketCode: claims.TicketCode,
		OperatorID: operatorID,
	}

	expectedEvent = strings.TrimSpace(expectedEvent)
	if expectedEvent != "" && expectedEvent != claims.EventName {
		result := &dto.ValidationResult{Result: dto.ValidationInvalid, Message: msgWrongEvent}
		s.record(result, event)
		return result, nil
	}

	ticket, err := s.store.Consume(ctx, claims.TicketID, claims.TicketCode)
	if err != nil {
		if errors.Is(err, apperrors.ErrTicketNotFound) {
			result := &dto.ValidationResult{Result: dto.ValidationInvalid, Message: msgTicketUsed}
			s.record(result, event)
			return result, nil
		}
		s.logger.Error().Err(err).Int64("ticketID", claims.TicketID).Msg("Ticket validation failed")
		return nil, fmt.Errorf("failed to consume ticket: %w", err)
	}

	result := &dto.ValidationResult{
		Result:  dto.ValidationValid,
		Message: msgTicketValid,
		Ticket: &dto.ValidatedTicket{
			ID:          ticket.ID,
			StudentID:   ticket.StudentID,
			TicketCode:  ticket.TicketCode,
			PurchasedAt: ticket.PurchasedAt,
			IsValid:     ticket.IsValid,
			EventName:   ticket.EventName,
			TicketType:  ticket.TicketType,
		},
	}
	if st := ticket.Student; st != nil {
		result.Student = &dto.ValidatedStudent{
			Matricule: st.Matricule,
			LastName:  st.LastName,
			FirstName: st.FirstName,
			Level:     st.Level,
		}
		event.Matricule = st.Matricule
		event.StudentName = st.DisplayName()
	}

	s.logger.Info().Str("ticketCode", ticket.TicketCode).Int64("operatorID", operatorID).Msg("Ticket admitted")
	s.record(result, event)
	return result, nil
}

func (s *ValidationService) record(result *dto.ValidationResult, event websocket.ScanEvent) {
	s.metrics.TicketValidated(result.Result)
	if s.publisher == nil {
		return
	}
	event.Result = result.Result
	event.Message = result.Message
	event.ScannedAt = s.now()
	s.publisher.Publish(event)
}
