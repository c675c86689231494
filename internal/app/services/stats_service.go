package services

import (
	"context"

	"github.com/yigit/campuspass/internal/app/models/dto"
	"golang.org/x/sync/errgroup"
)

// StatsService serves the dashboard statistics
type StatsService struct {
	store   StatsStore
	tickets TicketStore
}

// NewStatsService creates a new StatsService
func NewStatsService(store StatsStore, tickets TicketStore) *StatsService {
	return &StatsService{store: store, tickets: tickets}
}

// Students counts paid and unpaid students by level
func (s *StatsService) Students(ctx context.Context) (*dto.StudentStats, error) {
	byLevel, err := s.store.StudentsByLevel(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.StudentStats{ByLevel: byLevel}, nil
}

// Tickets summarizes tickets
func (s *StatsService) Tickets(ctx context.Context) (*dto.TicketStats, error) {
	stats, err := s.store.TicketStats(ctx)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// StudentTickets relates students to the tickets they hold
func (s *StatsService) StudentTickets(ctx context.Context) (*dto.StudentTicketStats, error) {
	stats, err := s.store.StudentTicketStats(ctx)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Report runs the three statistics concurrently
func (s *StatsService) Report(ctx context.Context) (*dto.StatsReport, error) {
	report := &dto.StatsReport{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		byLevel, err := s.store.StudentsByLevel(ctx)
		report.Students = dto.StudentStats{ByLevel: byLevel}
		return err
	})
	g.Go(func() error {
		stats, err := s.store.TicketStats(ctx)
		report.Tickets = stats
		return err
	})
	g.Go(func() error {
		stats, err := s.store.StudentTicketStats(ctx)
		report.StudentTickets = stats
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// Counts returns the total number of tickets and how many were used
func (s *StatsService) Counts(ctx context.Context) (dto.TicketCounts, error) {
	return s.tickets.Counts(ctx)
}
