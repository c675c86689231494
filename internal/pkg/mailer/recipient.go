package mailer

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// MXResolver looks up mail exchangers. *net.Resolver satisfies it.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

const mxCacheTTL = 10 * time.Minute

type mxEntry struct {
	exists  bool
	expires time.Time
}

// RecipientChecker rejects addresses that cannot receive mail before any
// SMTP session is opened.
type RecipientChecker struct {
	validate *validator.Validate
	resolver MXResolver
	checkMX  bool

	mu    sync.Mutex
	cache map[string]mxEntry
	now   func() time.Time
}

// NewRecipientChecker creates a checker. MX lookups are skipped when checkMX is false.
func NewRecipientChecker(resolver MXResolver, checkMX bool) *RecipientChecker {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &RecipientChecker{
		validate: validator.New(),
		resolver: resolver,
		checkMX:  checkMX,
		cache:    make(map[string]mxEntry),
		now:      time.Now,
	}
}

// Check returns a failed Result when the address is unusable, nil otherwise.
func (c *RecipientChecker) Check(ctx context.Context, address string) *Result {
	address = strings.TrimSpace(address)
	if err := c.validate.Var(address, "required,email"); err != nil {
		r := failure(ErrInvalidEmailFormat, "invalid email address format: "+address, "EINVALID", "", c.now())
		return &r
	}
	if !c.checkMX {
		return nil
	}

	domain := strings.ToLower(address[strings.LastIndex(address, "@")+1:])
	exists, err := c.domainAcceptsMail(ctx, domain)
	if err != nil {
		r := failure(ErrTemporary, "mx lookup failed for "+domain+": "+err.Error(), "EDNS", "", c.now())
		return &r
	}
	if !exists {
		r := failure(ErrDomainNotExist, "email domain does not exist: "+domain, "ENOTFOUND", "", c.now())
		return &r
	}
	return nil
}

func (c *RecipientChecker) domainAcceptsMail(ctx context.Context, domain string) (bool, error) {
	now := c.now()
	c.mu.Lock()
	if e, ok := c.cache[domain]; ok && now.Before(e.expires) {
		c.mu.Unlock()
		return e.exists, nil
	}
	c.mu.Unlock()

	records, err := c.resolver.LookupMX(ctx, domain)
	exists := err == nil && len(records) > 0
	if err != nil {
		var dnsErr *net.DNSError
		if !errors.As(err, &dnsErr) || !dnsErr.IsNotFound {
			return false, err
		}
	}

	c.mu.Lock()
	c.cache[domain] = mxEntry{exists: exists, expires: now.Add(mxCacheTTL)}
	c.mu.Unlock()
	return exists, nil
}
