package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/pkg/tickettoken"
)

type stubVerifier struct {
	claims *tickettoken.Claims
	err    error
}

func (v stubVerifier) Verify(token string) (*tickettoken.Claims, error) {
	return v.claims, v.err
}

func newTestCodec(t *testing.T) *tickettoken.Codec {
	t.Helper()
	codec, err := tickettoken.NewCodec(tickettoken.Config{Secret: "gate-secret", TTL: time.Hour, Issuer: "campuspass"})
	require.NoError(t, err)
	return codec
}

func seedTicket(store *memStore) (models.Student, models.Ticket) {
	student := store.addStudent(models.Student{Matricule: "2301-045", LastName: "RAKOTO", FirstName: "Jean", Level: models.LevelL2, HasPaid: true})
	ticket := store.addTicket(models.Ticket{
		StudentID:   student.ID,
		TicketCode:  "TICK-K3J9X2AB-1",
		PurchasedAt: time.Now(),
		IsValid:     true,
		EventName:   "RECPTNOV2025",
		TicketType:  models.TicketPaid,
	})
	return student, ticket
}

func TestValidate_AdmitsOnceThenRefuses(t *testing.T) {
	store := newMemStore()
	student, ticket := seedTicket(store)
	codec := newTestCodec(t)
	token, err := codec.Issue(ticket.ID, student.ID, ticket.TicketCode, ticket.EventName)
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	svc := NewValidationService(memTickets{memStore: store}, codec, publisher, nil, testLogger())

	first, err := svc.Validate(context.Background(), token, "RECPTNOV2025", 7)
	require.NoError(t, err)
	assert.Equal(t, dto.ValidationValid, first.Result)
	assert.Equal(t, msgTicketValid, first.Message)
	require.NotNil(t, first.Ticket)
	assert.Equal(t, ticket.ID, first.Ticket.ID)
	assert.False(t, first.Ticket.IsValid)
	require.NotNil(t, first.Student)
	assert.Equal(t, "2301-045", first.Student.Matricule)
	assert.Equal(t, models.LevelL2, first.Student.Level)
	assert.False(t, store.ticket(ticket.ID).IsValid)

	scan := publisher.last()
	assert.Equal(t, dto.ValidationValid, scan.Result)
	assert.Equal(t, "Jean RAKOTO", scan.StudentName)
	assert.Equal(t, int64(7), scan.OperatorID)
	assert.False(t, scan.ScannedAt.IsZero())

	second, err := svc.Validate(context.Background(), token, "", 7)
	require.NoError(t, err)
	assert.Equal(t, dto.ValidationInvalid, second.Result)
	assert.Equal(t, msgTicketUsed, second.Message)
	assert.Nil(t, second.Ticket)
	assert.Equal(t, dto.ValidationInvalid, publisher.last().Result)
}

func TestValidate_RevokedTicket(t *testing.T) {
	store := newMemStore()
	student, ticket := seedTicket(store)
	codec := newTestCodec(t)
	token, err := codec.Issue(ticket.ID, student.ID, ticket.TicketCode, ticket.EventName)
	require.NoError(t, err)
	_, err = memTickets{memStore: store}.SetValidityForStudent(context.Background(), student.ID, false)
	require.NoError(t, err)

	svc := NewValidationService(memTickets{memStore: store}, codec, nil, nil, testLogger())
	result, err := svc.Validate(context.Background(), token, "", 1)
	require.NoError(t, err)
	assert.Equal(t, dto.ValidationInvalid, result.Result)
	assert.Equal(t, msgTicketUsed, result.Message)
}

func TestValidate_CodeMismatchDoesNotConsume(t *testing.T) {
	store := newMemStore()
	student, ticket := seedTicket(store)
	codec := newTestCodec(t)
	token, err := codec.Issue(ticket.ID, student.ID, "TICK-FORGED00-1", ticket.EventName)
	require.NoError(t, err)

	svc := NewValidationService(memTickets{memStore: store}, codec, nil, nil, testLogger())
	result, err := svc.Validate(context.Background(), token, "", 1)
	require.NoError(t, err)
	assert.Equal(t, dto.ValidationInvalid, result.Result)
	assert.True(t, store.ticket(ticket.ID).IsValid)
}

func TestValidate_WrongEventDoesNotConsume(t *testing.T) {
	store := newMemStore()
	student, ticket := seedTicket(store)
	codec := newTestCodec(t)
	token, err := codec.Issue(ticket.ID, student.ID, ticket.TicketCode, ticket.EventName)
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	svc := NewValidationService(memTickets{memStore: store}, codec, publisher, nil, testLogger())
	result, err := svc.Validate(context.Background(), token, "GALA2026", 1)
	require.NoError(t, err)
	assert.Equal(t, dto.ValidationInvalid, result.Result)
	assert.Equal(t, msgWrongEvent, result.Message)
	assert.True(t, store.ticket(ticket.ID).IsValid)
	assert.Equal(t, ticket.TicketCode, publisher.last().TicketCode)
}

func TestValidate_TokenProblems(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"expired", fmt.Errorf("verify: %w", tickettoken.ErrExpiredToken), msgTokenExpired},
		{"malformed", tickettoken.ErrMalformedToken, msgTokenMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			_, ticket := seedTicket(store)
			publisher := &recordingPublisher{}
			svc := NewValidationService(memTickets{memStore: store}, stubVerifier{err: tt.err}, publisher, nil, testLogger())

			result, err := svc.Validate(context.Background(), "whatever", "RECPTNOV2025", 3)
			require.NoError(t, err)
			assert.Equal(t, dto.ValidationInvalid, result.Result)
			assert.Equal(t, tt.message, result.Message)
			assert.True(t, store.ticket(ticket.ID).IsValid)
			assert.Equal(t, tt.message, publisher.last().Message)
		})
	}
}

func TestValidate_GarbageWithRealCodec(t *testing.T) {
	store := newMemStore()
	svc := NewValidationService(memTickets{memStore: store}, newTestCodec(t), nil, nil, testLogger())

	result, err := svc.Validate(context.Background(), "not-a-token", "", 1)
	require.NoError(t, err)
	assert.Equal(t, dto.ValidationInvalid, result.Result)
	assert.Equal(t, msgTokenMalformed, result.Message)
}

func TestValidate_StoreFailureIsReturned(t *testing.T) {
	store := newMemStore()
	_, ticket := seedTicket(store)
	store.selectErr = errStoreDown
	verifier := stubVerifier{claims: &tickettoken.Claims{TicketID: ticket.ID, TicketCode: ticket.TicketCode, EventName: ticket.EventName}}

	publisher := &recordingPublisher{}
	svc := NewValidationService(memTickets{memStore: store}, verifier, publisher, nil, testLogger())
	_, err := svc.Validate(context.Background(), "token", "", 1)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, publisher.events)
}
