package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/db"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
	"github.com/yigit/campuspass/internal/pkg/helpers"
)

// StudentService manages the student registry
type StudentService struct {
	tx       db.Transactor
	students StudentStore
	tickets  TicketStore
	logger   zerolog.Logger
}

// NewStudentService creates a new StudentService
func NewStudentService(tx db.Transactor, students StudentStore, tickets TicketStore, logger zerolog.Logger) *StudentService {
	return &StudentService{
		tx:       tx,
		students: students,
		tickets:  tickets,
		logger:   logger,
	}
}

// Create registers a student. Payment starts as unpaid.
func (s *StudentService) Create(ctx context.Context, req *dto.CreateStudentRequest) (*models.Student, error) {
	if !req.Level.Valid() {
		return nil, apperrors.ErrInvalidLevel
	}

	student := &models.Student{
		Matricule: strings.TrimSpace(req.Matricule),
		LastName:  strings.TrimSpace(req.LastName),
		FirstName: strings.TrimSpace(req.FirstName),
		Level:     req.Level,
		Email:     strings.TrimSpace(req.Email),
		HasPaid:   false,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("studentID", student.ID).Str("matricule", student.Matricule).Msg("Student created")
	return student, nil
}

// GetByID returns a student with its tickets
func (s *StudentService) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListByStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	student.Tickets = tickets
	return student, nil
}

// List returns one page of students
func (s *StudentService) List(ctx context.Context, filter dto.StudentFilter) (*dto.StudentListResponse, error) {
	if filter.Level != "" && !filter.Level.Valid() {
		return nil, apperrors.ErrInvalidLevel
	}
	filter.Page, filter.Size = normalizePage(filter.Page, filter.Size)

	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.StudentListResponse{
		Students:   students,
		Pagination: helpers.NewPaginationInfo(total, filter.Page, filter.Size),
	}, nil
}

// Update applies the provided fields. A payment change sets the validity of
// every ticket of the student in the same transaction.
func (s *StudentService) Update(ctx context.Context, id int64, req *dto.UpdateStudentRequest) (*models.Student, error) {
	var updated *models.Student
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		student, err := s.students.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if req.Matricule != nil {
			student.Matricule = strings.TrimSpace(*req.Matricule)
		}
		if req.LastName != nil {
			student.LastName = strings.TrimSpace(*req.LastName)
		}
		if req.FirstName != nil {
			student.FirstName = strings.TrimSpace(*req.FirstName)
		}
		if req.Level != nil {
			if !req.Level.Valid() {
				return apperrors.ErrInvalidLevel
			}
			student.Level = *req.Level
		}
		if req.Email != nil {
			student.Email = strings.TrimSpace(*req.Email)
		}
		if req.HasPaid != nil {
			student.HasPaid = *req.HasPaid
		}

		if err := s.students.Update(ctx, student); err != nil {
			return err
		}
		if req.HasPaid != nil {
			if _, err := s.tickets.SetValidityForStudent(ctx, id, *req.HasPaid); err != nil {
				return err
			}
		}
		updated = student
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("studentID", id).Msg("Student updated")
	return updated, nil
}

// SetPaymentStatus sets the payment flag and the validity of every ticket of the student
func (s *StudentService) SetPaymentStatus(ctx context.Context, id int64, paid bool) (*models.Student, error) {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.students.SetPaid(ctx, id, paid); err != nil {
			return err
		}
		_, err := s.tickets.SetValidityForStudent(ctx, id, paid)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("studentID", id).Bool("hasPaid", paid).Msg("Payment status changed")
	return s.GetByID(ctx, id)
}

// Delete removes a student and all its tickets
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	var removed int64
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		n, err := s.tickets.DeleteByStudent(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return s.students.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Int64("studentID", id).Int64("tickets", removed).Msg("Student deleted")
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > helpers.MaxPageSize {
		size = helpers.DefaultPageSize
	}
	return page, size
}
