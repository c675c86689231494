// Package tickettoken signs and verifies the payload embedded in ticket QR codes.
package tickettoken

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification errors
var (
	ErrExpiredToken   = errors.New("ticket token expired")
	ErrMalformedToken = errors.New("malformed ticket token")
)

// Claims binds a token to one ticket of one student for one event.
type Claims struct {
	TicketID   int64  `json:"ticketId"`
	StudentID  int64  `json:"studentId"`
	TicketCode string `json:"ticketCode"`
	EventName  string `json:"eventName"`
	jwt.RegisteredClaims
}

// Config defines codec settings
type Config struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// Codec issues and verifies HS256 ticket tokens.
type Codec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewCodec creates a ticket token codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("ticket token secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("ticket token ttl must be positive")
	}
	return &Codec{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the given ticket.
func (c *Codec) Issue(ticketID, studentID int64, ticketCode, eventName string) (string, error) {
	now := c.now()
	claims := &Claims{
		TicketID:   ticketID,
		StudentID:  studentID,
		TicketCode: ticketCode,
		EventName:  eventName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.issuer,
			Subject:   strconv.FormatInt(ticketID, 10),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the ticket claims.
// It returns ErrExpiredToken or ErrMalformedToken on failure.
func (c *Codec) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMalformedToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if claims.TicketID <= 0 || claims.TicketCode == "" {
		return nil, fmt.Errorf("%w: missing ticket fields", ErrMalformedToken)
	}
	return claims, nil
}
