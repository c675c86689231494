package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
		wantCode string
	}{
		{"auth rejected", &textproto.Error{Code: 535, Msg: "5.7.8 authentication failed"}, ErrAuthentication, "535"},
		{"auth required", &textproto.Error{Code: 530, Msg: "5.7.0 must issue STARTTLS"}, ErrAuthentication, "530"},
		{"unknown mailbox", &textproto.Error{Code: 550, Msg: "5.1.1 user unknown"}, ErrEmailNotExist, "550"},
		{"mailbox full", &textproto.Error{Code: 552, Msg: "5.2.2 mailbox full"}, ErrMailboxFull, "552"},
		{"bad address", &textproto.Error{Code: 553, Msg: "5.1.3 bad recipient address syntax"}, ErrEmailRejected, "553"},
		{"rejected text", &textproto.Error{Code: 554, Msg: "message rejected for policy reasons"}, ErrEmailRejected, "554"},
		{"rate limit text wins over 550", &textproto.Error{Code: 550, Msg: "rate limit exceeded"}, ErrRateLimit, "550"},
		{"554 transaction failed", &textproto.Error{Code: 554, Msg: "transaction failed"}, ErrRateLimit, "554"},
		{"greylisted", &textproto.Error{Code: 451, Msg: "4.7.1 try again later"}, ErrTemporary, "451"},
		{"service unavailable", &textproto.Error{Code: 421, Msg: "4.3.2 shutting down"}, ErrTemporary, "421"},
		{"unmapped reply", &textproto.Error{Code: 500, Msg: "syntax error"}, ErrUnknown, "500"},
		{"connection", fmt.Errorf("%w: %w", errConnection, io.EOF), ErrSMTPConnection, "ECONNECTION"},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), ErrTimeout, "ETIMEDOUT"},
		{"canceled", context.Canceled, ErrUnknown, "ECANCELED"},
		{"dial refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ErrSMTPConnection, "ECONNECTION"},
		{"other", errors.New("something odd"), ErrUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			assert.Equal(t, tt.wantType, c.Type)
			assert.Equal(t, tt.wantCode, c.Code)
		})
	}
}

func TestClassify_ReplyKeepsServerResponse(t *testing.T) {
	c := Classify(&textproto.Error{Code: 550, Msg: "5.1.1 user unknown"})
	assert.Equal(t, "550 5.1.1 user unknown", c.ServerResponse)
	assert.Equal(t, "5.1.1 user unknown", c.Message)
}

func TestErrorType_Groups(t *testing.T) {
	assert.True(t, ErrInvalidEmailFormat.IsInvalidAddress())
	assert.True(t, ErrDomainNotExist.IsInvalidAddress())
	assert.False(t, ErrEmailNotExist.IsInvalidAddress())

	assert.True(t, ErrSMTPConnection.IsTransport())
	assert.True(t, ErrTimeout.IsTransport())
	assert.False(t, ErrMailboxFull.IsTransport())
}
