package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
)

type stubStats struct {
	byLevel []dto.LevelPaymentStats
	tickets dto.TicketStats
	holders dto.StudentTicketStats
	err     error
}

func (s stubStats) StudentsByLevel(ctx context.Context) ([]dto.LevelPaymentStats, error) {
	return s.byLevel, s.err
}

func (s stubStats) TicketStats(ctx context.Context) (dto.TicketStats, error) {
	return s.tickets, nil
}

func (s stubStats) StudentTicketStats(ctx context.Context) (dto.StudentTicketStats, error) {
	return s.holders, nil
}

func TestStatsService_Report(t *testing.T) {
	store := stubStats{
		byLevel: []dto.LevelPaymentStats{{Level: models.LevelL1, Total: 3, Paid: 2, Unpaid: 1}},
		tickets: dto.TicketStats{Total: 4, Valid: 3, Invalid: 1, ByType: map[string]int64{"payant": 4}},
		holders: dto.StudentTicketStats{TotalStudents: 3, WithTickets: 2, WithoutTickets: 1},
	}
	svc := NewStatsService(store, memTickets{memStore: newMemStore()})

	report, err := svc.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.byLevel, report.Students.ByLevel)
	assert.Equal(t, int64(4), report.Tickets.Total)
	assert.Equal(t, int64(1), report.StudentTickets.WithoutTickets)

	students, err := svc.Students(context.Background())
	require.NoError(t, err)
	assert.Len(t, students.ByLevel, 1)
}

func TestStatsService_ReportFailsOnAnyQuery(t *testing.T) {
	svc := NewStatsService(stubStats{err: errStoreDown}, memTickets{memStore: newMemStore()})

	_, err := svc.Report(context.Background())
	assert.ErrorIs(t, err, errStoreDown)

	_, err = svc.Students(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
}
