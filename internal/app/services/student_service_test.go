package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
)

func newStudentService(store *memStore) *StudentService {
	return NewStudentService(store, store, memTickets{memStore: store}, testLogger())
}

func TestStudentService_Create(t *testing.T) {
	store := newMemStore()
	svc := newStudentService(store)

	student, err := svc.Create(context.Background(), &dto.CreateStudentRequest{
		Matricule: " 2301-045 ",
		LastName:  "RAKOTO",
		FirstName: "Jean",
		Level:     models.LevelL3,
		Email:     "rakoto.jean@univ-tol.mg",
	})
	require.NoError(t, err)
	assert.Equal(t, "2301-045", student.Matricule)
	assert.False(t, student.HasPaid)

	_, err = svc.Create(context.Background(), &dto.CreateStudentRequest{Matricule: "2301-045", Level: models.LevelL1})
	assert.ErrorIs(t, err, apperrors.ErrMatriculeExists)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = svc.Create(context.Background(), &dto.CreateStudentRequest{Matricule: "X", Level: "L9"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidLevel)
}

func TestStudentService_PaymentCascadesToTickets(t *testing.T) {
	store := newMemStore()
	student := store.addStudent(models.Student{Matricule: "A1", HasPaid: true})
	other := store.addStudent(models.Student{Matricule: "A2", HasPaid: true})
	t1 := store.addTicket(models.Ticket{StudentID: student.ID, TicketCode: "TICK-1", IsValid: true})
	t2 := store.addTicket(models.Ticket{StudentID: student.ID, TicketCode: "TICK-2", IsValid: true})
	t3 := store.addTicket(models.Ticket{StudentID: other.ID, TicketCode: "TICK-3", IsValid: true})
	svc := newStudentService(store)

	updated, err := svc.SetPaymentStatus(context.Background(), student.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.HasPaid)
	require.Len(t, updated.Tickets, 2)
	assert.False(t, store.ticket(t1.ID).IsValid)
	assert.False(t, store.ticket(t2.ID).IsValid)
	assert.True(t, store.ticket(t3.ID).IsValid)

	paid := true
	_, err = svc.Update(context.Background(), student.ID, &dto.UpdateStudentRequest{HasPaid: &paid})
	require.NoError(t, err)
	assert.True(t, store.ticket(t1.ID).IsValid)
	assert.True(t, store.ticket(t2.ID).IsValid)

	_, err = svc.SetPaymentStatus(context.Background(), 404, true)
	assert.ErrorIs(t, err, apperrors.ErrStudentNotFound)
}

func TestStudentService_UpdateKeepsUnsetFields(t *testing.T) {
	store := newMemStore()
	student := store.addStudent(models.Student{Matricule: "A1", LastName: "RABE", FirstName: "Aina", Level: models.LevelL1, Email: "rabe@univ-tol.mg", HasPaid: true})
	ticket := store.addTicket(models.Ticket{StudentID: student.ID, TicketCode: "TICK-1", IsValid: false})
	svc := newStudentService(store)

	email := "aina.rabe@univ-tol.mg"
	updated, err := svc.Update(context.Background(), student.ID, &dto.UpdateStudentRequest{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)
	assert.Equal(t, "RABE", updated.LastName)
	assert.Equal(t, models.LevelL1, updated.Level)
	assert.True(t, updated.HasPaid)
	// no payment field, no cascade
	assert.False(t, store.ticket(ticket.ID).IsValid)

	bad := models.StudyLevel("D1")
	_, err = svc.Update(context.Background(), student.ID, &dto.UpdateStudentRequest{Level: &bad, Email: &email})
	assert.ErrorIs(t, err, apperrors.ErrInvalidLevel)
}

func TestStudentService_DeleteRemovesTickets(t *testing.T) {
	store := newMemStore()
	student := store.addStudent(models.Student{Matricule: "A1"})
	store.addTicket(models.Ticket{StudentID: student.ID, TicketCode: "TICK-1"})
	store.addTicket(models.Ticket{StudentID: student.ID, TicketCode: "TICK-2"})
	svc := newStudentService(store)

	require.NoError(t, svc.Delete(context.Background(), student.ID))
	assert.Empty(t, store.ticketsOf(student.ID))

	_, err := svc.GetByID(context.Background(), student.ID)
	assert.ErrorIs(t, err, apperrors.ErrStudentNotFound)
}

func TestStudentService_DeleteMissingRollsBack(t *testing.T) {
	store := newMemStore()
	store.addStudent(models.Student{Matricule: "A1"})
	ticket := store.addTicket(models.Ticket{StudentID: 42, TicketCode: "TICK-ORPHAN"})
	svc := newStudentService(store)

	err := svc.Delete(context.Background(), 42)
	assert.ErrorIs(t, err, apperrors.ErrStudentNotFound)
	// the ticket deletion was rolled back with the failed transaction
	assert.Equal(t, ticket.TicketCode, store.ticket(ticket.ID).TicketCode)
}

func TestStudentService_List(t *testing.T) {
	store := newMemStore()
	store.addStudent(models.Student{Matricule: "A1", LastName: "RAKOTO", Level: models.LevelL1, HasPaid: true})
	store.addStudent(models.Student{Matricule: "A2", LastName: "RABE", Level: models.LevelL1})
	store.addStudent(models.Student{Matricule: "A3", LastName: "SOA", Level: models.LevelM2, HasPaid: true})
	svc := newStudentService(store)

	paid := true
	page, err := svc.List(context.Background(), dto.StudentFilter{HasPaid: &paid, Size: 1000})
	require.NoError(t, err)
	assert.Len(t, page.Students, 2)
	assert.Equal(t, int64(2), page.Pagination.TotalItems)
	assert.Equal(t, 1, page.Pagination.CurrentPage)

	_, err = svc.List(context.Background(), dto.StudentFilter{Level: "X1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidLevel)
}

func TestNormalizePage(t *testing.T) {
	page, size := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, size)

	page, size = normalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, 10, size)

	page, size = normalizePage(2, 50)
	assert.Equal(t, 2, page)
	assert.Equal(t, 50, size)
}
