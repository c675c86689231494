package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"sync"
	"time"

	"github.com/domodwyer/mailyak/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var errConnection = errors.New("smtp connection failed")

// SMTPConfig holds configuration for the SMTP server
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
	ReplyTo   string
	// UseTLS dials with implicit TLS (port 465). Otherwise STARTTLS is used when offered.
	UseTLS bool
	// Timeout bounds one complete send, including connection setup
	Timeout time.Duration
	// MaxMessagesPerConn recycles the session after this many messages
	MaxMessagesPerConn int
}

// SMTPMailer keeps a single authenticated SMTP session and reuses it across sends.
// Sends are serialized.
type SMTPMailer struct {
	cfg     SMTPConfig
	checker *RecipientChecker
	logger  zerolog.Logger

	mu         sync.Mutex
	conn       net.Conn
	client     *smtp.Client
	sentOnConn int
	closed     bool

	dial func(ctx context.Context, network, addr string) (net.Conn, error)
	now  func() time.Time
}

// NewSMTPMailer creates the mailer. The session is opened lazily on first send.
func NewSMTPMailer(cfg SMTPConfig, checker *RecipientChecker, logger zerolog.Logger) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxMessagesPerConn <= 0 {
		cfg.MaxMessagesPerConn = 100
	}
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	return &SMTPMailer{
		cfg:     cfg,
		checker: checker,
		logger:  logger,
		dial:    dialer.DialContext,
		now:     time.Now,
	}
}

// Verify opens (or reuses) the SMTP session, the equivalent of a transport check.
func (m *SMTPMailer) Verify(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	return m.ensureSession(ctx)
}

// Send delivers one ticket email.
// Timeout bounds the whole call, recipient MX lookup included.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) Result {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	if m.checker != nil {
		if rejected := m.checker.Check(ctx, msg.To); rejected != nil {
			return *rejected
		}
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), m.cfg.Host)
	body, err := m.compose(msg, messageID)
	if err != nil {
		return failure(ErrUnknown, "failed to compose email: "+err.Error(), "", "", m.now())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return failure(ErrSMTPConnection, "mailer is closed", "ECONNECTION", "", m.now())
	}

	if err := m.ensureSession(ctx); err != nil {
		m.resetSession()
		return m.failureFrom(ctx, err)
	}

	// Deadline on the socket bounds every blocking read and write below;
	// cancellation forces it into the past.
	deadline, _ := ctx.Deadline()
	_ = m.conn.SetDeadline(deadline)
	conn := m.conn
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := m.transmit(msg.To, body); err != nil {
		c := Classify(err)
		if _, isReply := asReply(err); isReply && !c.Type.IsTransport() {
			// recipient-level refusal: the session is still usable
			if rerr := m.client.Reset(); rerr != nil {
				m.resetSession()
			}
		} else {
			m.resetSession()
		}
		return m.failureFrom(ctx, err)
	}

	m.sentOnConn++
	if m.sentOnConn >= m.cfg.MaxMessagesPerConn {
		m.quitSession()
	} else {
		_ = m.conn.SetDeadline(time.Time{})
	}

	return Result{
		Success:   true,
		MessageID: messageID,
		SentAt:    m.now(),
	}
}

// Close ends the SMTP session. Further sends fail.
func (m *SMTPMailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.quitSession()
}

func (m *SMTPMailer) compose(msg Message, messageID string) (*bytes.Buffer, error) {
	mail := mailyak.New(m.address(), nil)
	mail.To(msg.To)
	mail.From(m.cfg.FromEmail)
	mail.FromName(m.cfg.FromName)
	if m.cfg.ReplyTo != "" {
		mail.ReplyTo(m.cfg.ReplyTo)
	}
	mail.Subject(subjectFor(msg))
	mail.AddHeader("Message-ID", messageID)
	mail.AddHeader("X-Ticket-Code", msg.TicketCode)

	html, err := renderHTML(msg)
	if err != nil {
		return nil, err
	}
	mail.HTML().Set(html)
	mail.Plain().Set(renderPlain(msg))
	mail.AttachInlineWithMimeType(qrContentID, bytes.NewReader(msg.QRCode), "image/png")

	return mail.MimeBuf()
}

func (m *SMTPMailer) transmit(to string, body *bytes.Buffer) error {
	if err := m.client.Mail(m.cfg.FromEmail); err != nil {
		return err
	}
	if err := m.client.Rcpt(to); err != nil {
		return err
	}
	w, err := m.client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (m *SMTPMailer) ensureSession(ctx context.Context) error {
	if m.client != nil {
		if deadline, ok := ctx.Deadline(); ok {
			_ = m.conn.SetDeadline(deadline)
		}
		if err := m.client.Noop(); err == nil {
			return nil
		}
		m.resetSession()
	}

	conn, err := m.dial(ctx, "tcp", m.address())
	if err != nil {
		return fmt.Errorf("%w: %w", errConnection, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}
	if m.cfg.UseTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %w", errConnection, err)
	}

	if !m.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return fmt.Errorf("%w: starttls: %w", errConnection, err)
			}
		}
	}

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			if _, isReply := asReply(err); isReply {
				return err
			}
			return fmt.Errorf("%w: auth: %w", errConnection, err)
		}
	}

	m.conn = conn
	m.client = client
	m.sentOnConn = 0
	m.logger.Debug().Str("server", m.address()).Msg("SMTP session established")
	return nil
}

func (m *SMTPMailer) quitSession() error {
	if m.client == nil {
		return nil
	}
	err := m.client.Quit()
	if err != nil {
		_ = m.client.Close()
	}
	m.client = nil
	m.conn = nil
	return err
}

func (m *SMTPMailer) resetSession() {
	if m.client != nil {
		_ = m.client.Close()
	}
	m.client = nil
	m.conn = nil
}

func (m *SMTPMailer) failureFrom(ctx context.Context, err error) Result {
	c := Classify(err)
	if ctx.Err() != nil && c.Type != ErrTimeout {
		c = Classify(ctx.Err())
	}
	m.logger.Warn().Err(err).Str("errorType", string(c.Type)).Str("code", c.Code).Msg("SMTP send failed")
	return failure(c.Type, c.Message, c.Code, c.ServerResponse, m.now())
}

func (m *SMTPMailer) address() string {
	return net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
}
