package dto

import "github.com/yigit/campuspass/internal/app/models"

// LevelPaymentStats counts students of one level by payment status
type LevelPaymentStats struct {
	Level  models.StudyLevel `json:"level"`
	Total  int64             `json:"total"`
	Paid   int64             `json:"paid"`
	Unpaid int64             `json:"unpaid"`
}

// StudentStats groups payment counts by level
type StudentStats struct {
	ByLevel []LevelPaymentStats `json:"byLevel"`
}

// TicketStats summarizes tickets
type TicketStats struct {
	Total   int64            `json:"total"`
	Valid   int64            `json:"valid"`
	Invalid int64            `json:"invalid"`
	Sent    int64            `json:"sent"`
	Unsent  int64            `json:"unsent"`
	ByType  map[string]int64 `json:"byType"`
}

// LevelTicketHolders counts students of one level holding at least one ticket
type LevelTicketHolders struct {
	Level       models.StudyLevel `json:"level"`
	WithTickets int64             `json:"withTickets"`
}

// StudentTicketStats relates students to tickets
type StudentTicketStats struct {
	TotalStudents  int64                `json:"totalStudents"`
	WithTickets    int64                `json:"withTickets"`
	WithoutTickets int64                `json:"withoutTickets"`
	ByLevel        []LevelTicketHolders `json:"byLevel"`
}

// StatsReport combines every statistic
type StatsReport struct {
	Students       StudentStats       `json:"students"`
	Tickets        TicketStats        `json:"tickets"`
	StudentTickets StudentTicketStats `json:"studentTickets"`
}
