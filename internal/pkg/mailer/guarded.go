package mailer

import (
	"context"
	"errors"
	"time"

	"github.com/yigit/campuspass/internal/pkg/breaker"
)

var errTransportFailure = errors.New("mail transport failure")

// GuardedMailer wraps a Mailer with a circuit breaker. Only transport
// failures count against the breaker; a rejected recipient does not.
type GuardedMailer struct {
	next    Mailer
	breaker *breaker.CircuitBreaker
	now     func() time.Time
}

// NewGuardedMailer wraps next.
func NewGuardedMailer(next Mailer, cb *breaker.CircuitBreaker) *GuardedMailer {
	return &GuardedMailer{next: next, breaker: cb, now: time.Now}
}

// Send forwards to the wrapped mailer unless the breaker is open.
func (g *GuardedMailer) Send(ctx context.Context, msg Message) Result {
	var res Result
	err := g.breaker.Execute(func() error {
		res = g.next.Send(ctx, msg)
		if !res.Success && res.ErrorType.IsTransport() {
			return errTransportFailure
		}
		return nil
	})
	if errors.Is(err, breaker.ErrOpen) || errors.Is(err, breaker.ErrTooManyRequests) {
		return failure(ErrSMTPConnection, "mail transport unavailable: "+err.Error(), "ECIRCUITOPEN", "", g.now())
	}
	return res
}

// Close closes the wrapped mailer.
func (g *GuardedMailer) Close() error {
	return g.next.Close()
}
