// Package mailer delivers ticket emails and classifies delivery failures.
package mailer

import (
	"context"
	"time"
)

// ErrorType classifies a failed send.
type ErrorType string

const (
	ErrInvalidEmailFormat  ErrorType = "INVALID_EMAIL_FORMAT"
	ErrDomainNotExist      ErrorType = "DOMAIN_NOT_EXIST"
	ErrSMTPConnection      ErrorType = "SMTP_CONNECTION_ERROR"
	ErrAuthentication      ErrorType = "AUTHENTICATION_ERROR"
	ErrEmailNotExist       ErrorType = "EMAIL_NOT_EXIST"
	ErrEmailRejected       ErrorType = "EMAIL_REJECTED"
	ErrMailboxFull         ErrorType = "MAILBOX_FULL"
	ErrTemporary           ErrorType = "TEMPORARY_ERROR"
	ErrRateLimit           ErrorType = "RATE_LIMIT_ERROR"
	ErrTimeout             ErrorType = "TIMEOUT_ERROR"
	ErrUnknown             ErrorType = "UNKNOWN_ERROR"
	ErrProcessing          ErrorType = "PROCESSING_ERROR" // set by callers, never by a Mailer
)

// IsInvalidAddress reports failures caused by the recipient address itself.
func (t ErrorType) IsInvalidAddress() bool {
	return t == ErrInvalidEmailFormat || t == ErrDomainNotExist
}

// IsTransport reports failures of the mail transport rather than of one recipient.
func (t ErrorType) IsTransport() bool {
	return t == ErrSMTPConnection || t == ErrAuthentication || t == ErrTimeout
}

// Message is one ticket email.
type Message struct {
	To          string
	DisplayName string
	EventName   string
	TicketCode  string
	// QRCode holds the PNG embedded inline in the email body
	QRCode []byte
}

// Result is the structured outcome of a send. A Mailer reports failures
// through Result rather than through a Go error.
type Result struct {
	Success        bool      `json:"success"`
	MessageID      string    `json:"messageId,omitempty"`
	SentAt         time.Time `json:"sentAt,omitempty"`
	ErrorType      ErrorType `json:"errorType,omitempty"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	ErrorCode      string    `json:"errorCode,omitempty"`
	ServerResponse string    `json:"serverResponse,omitempty"`
	FailedAt       time.Time `json:"failedAt,omitempty"`
}

// Mailer sends ticket emails. Implementations are constructed once, shared
// by callers and released with Close.
type Mailer interface {
	Send(ctx context.Context, msg Message) Result
	Close() error
}

func failure(errType ErrorType, message, code, response string, at time.Time) Result {
	return Result{
		Success:        false,
		ErrorType:      errType,
		ErrorMessage:   message,
		ErrorCode:      code,
		ServerResponse: response,
		FailedAt:       at,
	}
}
