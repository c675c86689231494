package models

import "strings"

// RoleType defines the operator role type
type RoleType string

const (
	RoleAdmin RoleType = "ADMIN"
	// RoleStaff may validate tickets at the gate and nothing else
	RoleStaff RoleType = "STAFF"
)

// Valid reports whether r is a known role.
func (r RoleType) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// StudyLevel is the academic year a student is enrolled in.
type StudyLevel string

const (
	LevelL1 StudyLevel = "L1"
	LevelL2 StudyLevel = "L2"
	LevelL3 StudyLevel = "L3"
	LevelM1 StudyLevel = "M1"
	LevelM2 StudyLevel = "M2"
)

// StudyLevels lists levels in reporting order.
var StudyLevels = []StudyLevel{LevelL1, LevelL2, LevelL3, LevelM1, LevelM2}

// Valid reports whether l is a known level.
func (l StudyLevel) Valid() bool {
	for _, known := range StudyLevels {
		if l == known {
			return true
		}
	}
	return false
}

// ParseStudyLevel finds the first known level mentioned in s, e.g. a sheet
// named "Liste L3 2025".
func ParseStudyLevel(s string) (StudyLevel, bool) {
	upper := strings.ToUpper(s)
	for _, l := range StudyLevels {
		if strings.Contains(upper, string(l)) {
			return l, true
		}
	}
	return "", false
}

// TicketType is the pricing category of a ticket.
type TicketType string

const (
	TicketFree TicketType = "gratuit"
	TicketPaid TicketType = "payant"
	TicketVIP  TicketType = "VIP"
)

// TicketTypes lists types in reporting order.
var TicketTypes = []TicketType{TicketFree, TicketPaid, TicketVIP}

// Valid reports whether t is a known ticket type.
func (t TicketType) Valid() bool {
	return t == TicketFree || t == TicketPaid || t == TicketVIP
}
