package repositories

import (
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
	"github.com/yigit/campuspass/internal/pkg/dberrors"
)

// ErrNotFound is the shared not-found error of the repositories
var ErrNotFound = apperrors.ErrResourceNotFound

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// queryError wraps a failed statement. Connection level failures also match
// apperrors.ErrTransientStore so callers can answer 503 instead of 500.
func queryError(action string, err error) error {
	if dberrors.IsConnectionError(err) {
		return fmt.Errorf("%s: %w: %w", action, apperrors.ErrTransientStore, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}
