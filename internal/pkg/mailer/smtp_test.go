package mailer

import (
	"context"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTP is a scripted SMTP server reached through net.Pipe.
type fakeSMTP struct {
	rcptReply string
	stallData atomic.Bool

	mu       sync.Mutex
	dials    int
	commands []string
	messages []string
}

func (f *fakeSMTP) dial(_ context.Context, _, _ string) (net.Conn, error) {
	client, server := net.Pipe()
	f.mu.Lock()
	f.dials++
	f.mu.Unlock()
	go f.serve(server)
	return client, nil
}

func (f *fakeSMTP) record(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
}

func (f *fakeSMTP) serve(conn net.Conn) {
	defer conn.Close()
	tp := textproto.NewConn(conn)
	if err := tp.PrintfLine("220 fake.local ESMTP ready"); err != nil {
		return
	}
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		verb = strings.SplitN(verb, ":", 2)[0]
		f.record(verb)

		switch verb {
		case "EHLO":
			_ = tp.PrintfLine("250-fake.local")
			_ = tp.PrintfLine("250 HELP")
		case "HELO", "NOOP", "MAIL", "RSET":
			_ = tp.PrintfLine("250 OK")
		case "RCPT":
			if f.rcptReply != "" {
				_ = tp.PrintfLine("%s", f.rcptReply)
			} else {
				_ = tp.PrintfLine("250 OK")
			}
		case "DATA":
			_ = tp.PrintfLine("354 end data with <CR><LF>.<CR><LF>")
			lines, err := tp.ReadDotLines()
			if err != nil {
				return
			}
			f.mu.Lock()
			f.messages = append(f.messages, strings.Join(lines, "\n"))
			f.mu.Unlock()
			if f.stallData.Load() {
				// never acknowledge; wait for the client to give up
				_, _ = tp.ReadLine()
				return
			}
			_ = tp.PrintfLine("250 2.0.0 queued")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 command not implemented")
		}
	}
}

func (f *fakeSMTP) count(verb string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.commands {
		if c == verb {
			n++
		}
	}
	return n
}

func (f *fakeSMTP) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func (f *fakeSMTP) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func newTestSMTPMailer(server *fakeSMTP, cfg SMTPConfig) *SMTPMailer {
	if cfg.Host == "" {
		cfg.Host = "fake.local"
	}
	cfg.Port = 25
	cfg.FromEmail = "billetterie@univ-tol.mg"
	cfg.FromName = "Billetterie"
	m := NewSMTPMailer(cfg, nil, zerolog.Nop())
	m.dial = server.dial
	return m
}

func testMessage() Message {
	return Message{
		To:          "rakoto.jean@univ-tol.mg",
		DisplayName: "Jean Rakoto",
		EventName:   "RECPTNOV2025",
		TicketCode:  "TICK-AB12CD34-M1X2Y3",
		QRCode:      []byte{0x89, 'P', 'N', 'G'},
	}
}

func TestSMTPMailer_SendSuccessReusesSession(t *testing.T) {
	server := &fakeSMTP{}
	m := newTestSMTPMailer(server, SMTPConfig{Timeout: 2 * time.Second})
	defer m.Close()

	first := m.Send(context.Background(), testMessage())
	require.True(t, first.Success, first.ErrorMessage)
	assert.NotEmpty(t, first.MessageID)
	assert.False(t, first.SentAt.IsZero())

	second := m.Send(context.Background(), testMessage())
	require.True(t, second.Success, second.ErrorMessage)
	assert.NotEqual(t, first.MessageID, second.MessageID)

	assert.Equal(t, 1, server.dialCount())
	assert.Equal(t, 1, server.count("NOOP"))
	msgs := server.received()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "X-Ticket-Code: TICK-AB12CD34-M1X2Y3")
	assert.Contains(t, msgs[0], "Content-ID: <"+qrContentID+">")
}

func TestSMTPMailer_RecipientRefusalKeepsSession(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		wantType ErrorType
		wantCode string
	}{
		{"unknown mailbox", "550 5.1.1 user unknown", ErrEmailNotExist, "550"},
		{"mailbox full", "552 5.2.2 mailbox full", ErrMailboxFull, "552"},
		{"greylisted", "451 4.7.1 try again later", ErrTemporary, "451"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &fakeSMTP{rcptReply: tt.reply}
			m := newTestSMTPMailer(server, SMTPConfig{Timeout: 2 * time.Second})
			defer m.Close()

			res := m.Send(context.Background(), testMessage())
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantType, res.ErrorType)
			assert.Equal(t, tt.wantCode, res.ErrorCode)
			assert.Equal(t, tt.reply, res.ServerResponse)
			assert.False(t, res.FailedAt.IsZero())

			_ = m.Send(context.Background(), testMessage())
			assert.Equal(t, 1, server.dialCount())
			assert.Equal(t, 2, server.count("RSET"))
		})
	}
}

func TestSMTPMailer_Timeout(t *testing.T) {
	server := &fakeSMTP{}
	server.stallData.Store(true)
	m := newTestSMTPMailer(server, SMTPConfig{Timeout: 150 * time.Millisecond})
	defer m.Close()

	start := time.Now()
	res := m.Send(context.Background(), testMessage())

	assert.False(t, res.Success)
	assert.Equal(t, ErrTimeout, res.ErrorType)
	assert.Less(t, time.Since(start), 2*time.Second)

	// broken session is discarded
	server.stallData.Store(false)
	res = m.Send(context.Background(), testMessage())
	assert.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, 2, server.dialCount())
}

func TestSMTPMailer_RecyclesAfterMaxMessages(t *testing.T) {
	server := &fakeSMTP{}
	m := newTestSMTPMailer(server, SMTPConfig{Timeout: 2 * time.Second, MaxMessagesPerConn: 1})
	defer m.Close()

	for i := 0; i < 3; i++ {
		require.True(t, m.Send(context.Background(), testMessage()).Success)
	}
	assert.Equal(t, 3, server.dialCount())
	assert.Equal(t, 3, server.count("QUIT"))
}

func TestSMTPMailer_DialFailure(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "fake.local", Port: 25, FromEmail: "a@b.mg", Timeout: time.Second}, nil, zerolog.Nop())
	m.dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "connection refused", Name: "fake.local"}}
	}

	res := m.Send(context.Background(), testMessage())
	assert.False(t, res.Success)
	assert.Equal(t, ErrSMTPConnection, res.ErrorType)
	assert.Equal(t, "ECONNECTION", res.ErrorCode)
}

func TestSMTPMailer_RecipientCheckedBeforeDial(t *testing.T) {
	server := &fakeSMTP{}
	m := newTestSMTPMailer(server, SMTPConfig{Timeout: time.Second})
	m.checker = NewRecipientChecker(newFakeResolver(), true)

	msg := testMessage()
	msg.To = "someone@nowhere.invalid"
	res := m.Send(context.Background(), msg)

	assert.Equal(t, ErrDomainNotExist, res.ErrorType)
	assert.Zero(t, server.dialCount())
}

// stallingResolver never answers before the context ends
type stallingResolver struct{}

func (stallingResolver) LookupMX(ctx context.Context, _ string) ([]*net.MX, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSMTPMailer_TimeoutCoversRecipientCheck(t *testing.T) {
	server := &fakeSMTP{}
	m := newTestSMTPMailer(server, SMTPConfig{Timeout: 100 * time.Millisecond})
	m.checker = NewRecipientChecker(stallingResolver{}, true)
	defer m.Close()

	start := time.Now()
	res := m.Send(context.Background(), testMessage())

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, ErrTemporary, res.ErrorType)
	assert.Equal(t, "EDNS", res.ErrorCode)
	assert.Zero(t, server.dialCount())
}

func TestSMTPMailer_SendAfterClose(t *testing.T) {
	server := &fakeSMTP{}
	m := newTestSMTPMailer(server, SMTPConfig{Timeout: time.Second})
	require.NoError(t, m.Close())

	res := m.Send(context.Background(), testMessage())
	assert.Equal(t, ErrSMTPConnection, res.ErrorType)
}
