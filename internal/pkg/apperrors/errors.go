package apperrors

import "errors"

// Common errors
var (
	// Resource errors
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrConflict              = errors.New("conflict")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrAccountDisabled    = errors.New("account is disabled")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// ErrTransientStore marks datastore failures worth retrying (lost connection, pool exhausted).
	ErrTransientStore = errors.New("datastore temporarily unavailable")
)

// Student errors
var (
	ErrStudentNotFound = NewCustomError(ErrResourceNotFound, "student not found").WithCode("STUDENT_NOT_FOUND")
	ErrMatriculeExists = NewCustomError(ErrConflict, "matricule already exists").WithCode("MATRICULE_EXISTS")
	ErrInvalidLevel    = NewCustomError(ErrValidationFailed, "unknown study level").WithCode("INVALID_LEVEL")
)

// Operator errors
var (
	ErrOperatorNotFound = NewCustomError(ErrResourceNotFound, "operator not found").WithCode("OPERATOR_NOT_FOUND")
	ErrInvalidRole      = NewCustomError(ErrValidationFailed, "unknown operator role").WithCode("INVALID_ROLE")
	// ErrSelfLockout stops an administrator from disabling or demoting their own account
	ErrSelfLockout = NewCustomError(ErrPermissionDenied, "operators cannot disable or demote their own account").WithCode("SELF_LOCKOUT")
)

// Ticket errors
var (
	ErrTicketNotFound     = NewCustomError(ErrResourceNotFound, "ticket not found").WithCode("TICKET_NOT_FOUND")
	ErrTicketCodeExists   = NewCustomError(ErrConflict, "ticket code already exists").WithCode("TICKET_CODE_EXISTS")
	ErrInvalidTicketType  = NewCustomError(ErrValidationFailed, "unknown ticket type").WithCode("INVALID_TICKET_TYPE")
	ErrDeliveryInProgress = NewCustomError(ErrConflict, "a ticket delivery run is already in progress").WithCode("DELIVERY_IN_PROGRESS")
	ErrIssuanceInProgress = NewCustomError(ErrConflict, "a ticket issuance batch is already in progress").WithCode("ISSUANCE_IN_PROGRESS")
	ErrDeliveryRunUnknown = NewCustomError(ErrResourceNotFound, "delivery run not found").WithCode("RUN_NOT_FOUND")
)

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// NewValidationError creates a validation error carrying a user-facing message
func NewValidationError(message string) error {
	return &CustomError{
		Err:     ErrValidationFailed,
		Message: message,
	}
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Code    string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithDetails returns a copy of the error carrying context details
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithCode adds an error code
func (e *CustomError) WithCode(code string) *CustomError {
	e.Code = code
	return e
}

// AsCustom extracts the outermost CustomError in the chain, if any.
func AsCustom(err error) (*CustomError, bool) {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
