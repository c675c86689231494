package repositories

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all the repository instances
type Repositories struct {
	StudentRepository  *StudentRepository
	TicketRepository   *TicketRepository
	StatsRepository    *StatsRepository
	OperatorRepository *OperatorRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		StudentRepository:  NewStudentRepository(db),
		TicketRepository:   NewTicketRepository(db),
		StatsRepository:    NewStatsRepository(db),
		OperatorRepository: NewOperatorRepository(db),
	}
}
