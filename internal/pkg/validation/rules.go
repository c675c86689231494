package validation

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/yigit/campuspass/internal/app/models"
)

// Validation rule patterns
var (
	// Matricule as printed on student cards, e.g. "2301-045" or "L3/2025/118"
	MatriculePattern = `^[A-Za-z0-9][A-Za-z0-9/\-]*$`

	// Password min length for operator accounts
	PasswordMinLength = 8
)

// CompiledPatterns caches compiled regex patterns for better performance
var CompiledPatterns = struct {
	Matricule *regexp.Regexp
}{
	Matricule: regexp.MustCompile(MatriculePattern),
}

var registerOnce sync.Once

// RegisterRules adds the domain tags (matricule, studylevel, tickettype) to
// gin's binding validator. Safe to call more than once.
func RegisterRules() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
			return
		}
		err = Register(v)
	})
	return err
}

// Register adds the domain tags to v
func Register(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"matricule":  validateMatricule,
		"studylevel": validateStudyLevel,
		"tickettype": validateTicketType,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s rule: %w", tag, err)
		}
	}
	return nil
}

func validateMatricule(fl validator.FieldLevel) bool {
	return CompiledPatterns.Matricule.MatchString(fl.Field().String())
}

func validateStudyLevel(fl validator.FieldLevel) bool {
	return models.StudyLevel(fl.Field().String()).Valid()
}

func validateTicketType(fl validator.FieldLevel) bool {
	return models.TicketType(fl.Field().String()).Valid()
}
