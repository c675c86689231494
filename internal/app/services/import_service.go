package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Spreadsheet headers as printed on the registrar's lists
const (
	headerMatricule = "N ° MATICULE"
	headerFullName  = "Nom et prenom"
	unknownName     = "Non spécifié"
)

var emailHeaders = []string{"email", "e-mail", "mail"}

// ImportService loads students from registrar spreadsheets
type ImportService struct {
	students StudentStore
	domain   string
	logger   zerolog.Logger
}

// NewImportService creates a new ImportService. domain is used for generated
// addresses when a row carries no email.
func NewImportService(students StudentStore, domain string, logger zerolog.Logger) *ImportService {
	return &ImportService{
		students: students,
		domain:   domain,
		logger:   logger,
	}
}

// Import reads every sheet of an xlsx workbook. The level comes from the
// sheet name; sheets without one are skipped. Each row is inserted on its
// own, failures are collected in the result.
func (s *ImportService) Import(ctx context.Context, r io.Reader) (*dto.ImportResult, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unreadable workbook: %v", err))
	}
	defer func() {
		if err := book.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close workbook")
		}
	}()

	result := &dto.ImportResult{
		Students: []models.Student{},
		Errors:   []dto.ImportRowError{},
	}

	for _, sheet := range book.GetSheetList() {
		level, ok := models.ParseStudyLevel(sheet)
		if !ok {
			result.Skipped = append(result.Skipped, sheet)
			continue
		}

		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		cols := headerIndex(rows[0])
		for i, row := range rows[1:] {
			if blankRow(row) {
				continue
			}
			result.TotalRows++
			rowNumber := i + 2

			student, err := s.importRow(ctx, cols, row, level)
			if err != nil {
				result.Failed++
				rowErr := dto.ImportRowError{Sheet: sheet, Row: rowNumber, Error: err.Error()}
				if student != nil {
					rowErr.Matricule = student.Matricule
				}
				result.Errors = append(result.Errors, rowErr)
				continue
			}
			result.Inserted++
			result.Students = append(result.Students, *student)
		}
	}

	s.logger.Info().
		Int("rows", result.TotalRows).
		Int("inserted", result.Inserted).
		Int("failed", result.Failed).
		Msg("Student import finished")
	return result, nil
}

type importColumns struct {
	matricule, fullName, email int
}

func headerIndex(header []string) importColumns {
	cols := importColumns{matricule: -1, fullName: -1, email: -1}
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch {
		case strings.EqualFold(h, headerMatricule):
			cols.matricule = i
		case strings.EqualFold(h, headerFullName):
			cols.fullName = i
		default:
			for _, e := range emailHeaders {
				if strings.EqualFold(h, e) {
					cols.email = i
				}
			}
		}
	}
	return cols
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// importRow returns the parsed student even on failure so the caller can
// report its matricule.
func (s *ImportService) importRow(ctx context.Context, cols importColumns, row []string, level models.StudyLevel) (*models.Student, error) {
	matricule := cell(row, cols.matricule)
	fullName := cell(row, cols.fullName)
	if matricule == "" || fullName == "" {
		return nil, errors.New("missing matricule or full name")
	}

	lastName, firstName := SplitFullName(fullName)
	student := &models.Student{
		Matricule: matricule,
		LastName:  lastName,
		FirstName: firstName,
		Level:     level,
		Email:     cell(row, cols.email),
	}
	if student.Email == "" {
		student.Email = GenerateStudentEmail(lastName, firstName, s.domain)
	}

	exists, err := s.students.ExistsByMatricule(ctx, matricule)
	if err != nil {
		return student, err
	}
	if exists {
		return student, apperrors.ErrMatriculeExists
	}
	if err := s.students.Create(ctx, student); err != nil {
		return student, err
	}
	return student, nil
}

// SplitFullName takes the first word as last name and the rest as first name
func SplitFullName(fullName string) (lastName, firstName string) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "", unknownName
	}
	if len(parts) == 1 {
		return parts[0], unknownName
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// GenerateStudentEmail builds last.first.names@domain, lower case, without accents
func GenerateStudentEmail(lastName, firstName, domain string) string {
	local := stripAccents(strings.ToLower(lastName)) + "." +
		strings.Join(strings.Fields(stripAccents(strings.ToLower(firstName))), ".")
	return local + "@" + domain
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
