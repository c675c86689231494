// Package ticketcode produces human-readable ticket identifiers of the form
// TICK-XXXXXXXX-<unix millis in base 36>.
package ticketcode

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	alphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	randomLength = 8
	// DefaultPrefix starts every generated code.
	DefaultPrefix = "TICK"
)

// Pattern matches codes produced with the default prefix.
var Pattern = regexp.MustCompile(`^TICK-[A-Z0-9]{8}-[A-Z0-9]+$`)

// Generator creates ticket codes. The zero value is not usable; call New.
type Generator struct {
	prefix string
	now    func() time.Time
	random io.Reader
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRandom overrides the randomness source.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.random = r }
}

// New returns a generator using crypto/rand and the wall clock.
func New(opts ...Option) *Generator {
	g := &Generator{
		prefix: DefaultPrefix,
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next returns a fresh ticket code.
func (g *Generator) Next() (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	var sb strings.Builder
	sb.Grow(len(g.prefix) + randomLength + 12)
	sb.WriteString(g.prefix)
	sb.WriteByte('-')
	for i := 0; i < randomLength; i++ {
		n, err := rand.Int(g.random, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate ticket code: %w", err)
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	sb.WriteByte('-')
	sb.WriteString(strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36)))
	return sb.String(), nil
}

// Valid reports whether code has the default generated shape.
func Valid(code string) bool {
	return Pattern.MatchString(code)
}
