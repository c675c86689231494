package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
)

// Classification is the mailer view of a transport error.
type Classification struct {
	Type           ErrorType
	Code           string
	Message        string
	ServerResponse string
}

// Classify maps an SMTP session error to an ErrorType. SMTP replies are
// classified by status code; network failures by their nature.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		c := Classification{
			Code:           strconv.Itoa(protoErr.Code),
			Message:        protoErr.Msg,
			ServerResponse: fmt.Sprintf("%d %s", protoErr.Code, protoErr.Msg),
		}
		c.Type = classifyReply(protoErr.Code, protoErr.Msg)
		return c
	}

	if errors.Is(err, errConnection) {
		return Classification{Type: ErrSMTPConnection, Code: "ECONNECTION", Message: err.Error()}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Classification{Type: ErrTimeout, Code: "ETIMEDOUT", Message: "mail send timed out"}
	case errors.Is(err, context.Canceled):
		return Classification{Type: ErrUnknown, Code: "ECANCELED", Message: "mail send cancelled"}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Classification{Type: ErrTimeout, Code: "ETIMEDOUT", Message: err.Error()}
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return Classification{Type: ErrSMTPConnection, Code: "ECONNECTION", Message: err.Error()}
	}

	return Classification{Type: ErrUnknown, Message: err.Error()}
}

func classifyReply(code int, msg string) ErrorType {
	lower := strings.ToLower(msg)
	switch {
	case code == 530 || code == 534 || code == 535:
		return ErrAuthentication
	case strings.Contains(lower, "rate limit"):
		return ErrRateLimit
	case code == 550:
		return ErrEmailNotExist
	case code == 553 || strings.Contains(lower, "rejected"):
		return ErrEmailRejected
	case code == 552:
		return ErrMailboxFull
	case code == 421 || code == 450 || code == 451:
		return ErrTemporary
	case code == 554:
		return ErrRateLimit
	default:
		return ErrUnknown
	}
}

func asReply(err error) (*textproto.Error, bool) {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr, true
	}
	return nil, false
}
