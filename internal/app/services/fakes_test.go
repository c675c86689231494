package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
	"github.com/yigit/campuspass/internal/pkg/mailer"
	"github.com/yigit/campuspass/internal/pkg/websocket"
)

var errStoreDown = errors.New("connection refused")

// memStore keeps students and tickets in memory. WithinTransaction restores
// a snapshot when fn fails, like a rollback.
type memStore struct {
	mu          sync.Mutex
	students    map[int64]models.Student
	tickets     map[int64]models.Ticket
	nextStudent int64
	nextTicket  int64

	selectErr   error
	markSentErr map[int64]error
}

func newMemStore() *memStore {
	return &memStore{
		students:    map[int64]models.Student{},
		tickets:     map[int64]models.Ticket{},
		markSentErr: map[int64]error{},
	}
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	students := make(map[int64]models.Student, len(m.students))
	for k, v := range m.students {
		students[k] = v
	}
	tickets := make(map[int64]models.Ticket, len(m.tickets))
	for k, v := range m.tickets {
		tickets[k] = v
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.students, m.tickets = students, tickets
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) addStudent(s models.Student) models.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextStudent++
	s.ID = m.nextStudent
	m.students[s.ID] = s
	return s
}

func (m *memStore) addTicket(t models.Ticket) models.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTicket++
	t.ID = m.nextTicket
	m.tickets[t.ID] = t
	return t
}

func (m *memStore) ticket(id int64) models.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[id]
}

func (m *memStore) ticketsOf(studentID int64) []models.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ticket
	for _, t := range m.tickets {
		if t.StudentID == studentID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StudentStore

func (m *memStore) Create(ctx context.Context, s *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.students {
		if existing.Matricule == s.Matricule {
			return apperrors.ErrMatriculeExists
		}
	}
	m.nextStudent++
	s.ID = m.nextStudent
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.students[s.ID] = *s
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return nil, apperrors.ErrStudentNotFound
	}
	return &s, nil
}

func (m *memStore) ExistsByMatricule(ctx context.Context, matricule string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if s.Matricule == matricule {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) List(ctx context.Context, filter dto.StudentFilter) ([]models.Student, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Student
	for _, s := range m.students {
		if filter.Level != "" && s.Level != filter.Level {
			continue
		}
		if filter.HasPaid != nil && s.HasPaid != *filter.HasPaid {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(s.LastName), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, int64(len(out)), nil
}

func (m *memStore) Update(ctx context.Context, s *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[s.ID]; !ok {
		return apperrors.ErrStudentNotFound
	}
	m.students[s.ID] = *s
	return nil
}

func (m *memStore) SetPaid(ctx context.Context, id int64, paid bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return apperrors.ErrStudentNotFound
	}
	s.HasPaid = paid
	m.students[id] = s
	return nil
}

func (m *memStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return apperrors.ErrStudentNotFound
	}
	delete(m.students, id)
	return nil
}

func (m *memStore) FindPaidWithoutTickets(ctx context.Context) ([]models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	owners := map[int64]bool{}
	for _, t := range m.tickets {
		owners[t.StudentID] = true
	}
	var out []models.Student
	for _, s := range m.students {
		if s.HasPaid && !owners[s.ID] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memTickets exposes the ticket side of memStore; the method sets of the
// two stores overlap by name.
type memTickets struct {
	*memStore
	createErr func(t *models.Ticket) error
}

func (m memTickets) Create(ctx context.Context, t *models.Ticket) error {
	if m.createErr != nil {
		if err := m.createErr(t); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tickets {
		if existing.TicketCode == t.TicketCode {
			return apperrors.ErrTicketCodeExists
		}
	}
	if _, ok := m.students[t.StudentID]; !ok {
		return apperrors.ErrStudentNotFound
	}
	m.nextTicket++
	t.ID = m.nextTicket
	m.tickets[t.ID] = *t
	return nil
}

func (m memTickets) SetToken(ctx context.Context, id int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return apperrors.ErrTicketNotFound
	}
	t.Token = token
	m.tickets[id] = t
	return nil
}

func (m memTickets) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, apperrors.ErrTicketNotFound
	}
	if s, ok := m.students[t.StudentID]; ok {
		t.Student = &s
	}
	return &t, nil
}

func (m memTickets) ListByStudent(ctx context.Context, studentID int64) ([]models.Ticket, error) {
	return m.ticketsOf(studentID), nil
}

func (m memTickets) List(ctx context.Context, filter dto.TicketFilter) ([]models.Ticket, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ticket
	for _, t := range m.tickets {
		if filter.StudentID > 0 && t.StudentID != filter.StudentID {
			continue
		}
		if filter.IsValid != nil && t.IsValid != *filter.IsValid {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m memTickets) Update(ctx context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tickets[t.ID]
	if !ok {
		return apperrors.ErrTicketNotFound
	}
	updated := *t
	updated.Token, updated.IsSent, updated.SentAt = old.Token, old.IsSent, old.SentAt
	updated.Student = nil
	m.tickets[t.ID] = updated
	return nil
}

func (m memTickets) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[id]; !ok {
		return apperrors.ErrTicketNotFound
	}
	delete(m.tickets, id)
	return nil
}

func (m memTickets) DeleteByStudent(ctx context.Context, studentID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tickets {
		if t.StudentID == studentID {
			delete(m.tickets, id)
			n++
		}
	}
	return n, nil
}

func (m memTickets) SetValidityForStudent(ctx context.Context, studentID int64, valid bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tickets {
		if t.StudentID == studentID {
			t.IsValid = valid
			m.tickets[id] = t
			n++
		}
	}
	return n, nil
}

func (m memTickets) Counts(ctx context.Context) (dto.TicketCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c dto.TicketCounts
	for _, t := range m.tickets {
		c.Total++
		if !t.IsValid {
			c.NotValid++
		}
	}
	return c, nil
}

// DeliveryStore

func (m memTickets) FindPendingDeliveries(ctx context.Context) ([]models.PendingDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	var ids []int64
	for id := range m.tickets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := m.tickets[ids[i]], m.tickets[ids[j]]
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		return a.ID < b.ID
	})

	var out []models.PendingDelivery
	for _, id := range ids {
		t := m.tickets[id]
		s, ok := m.students[t.StudentID]
		if !ok || !s.HasPaid || !t.IsValid || t.IsSent {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Student.ID == s.ID {
			out[n-1].Tickets = append(out[n-1].Tickets, t)
			continue
		}
		out = append(out, models.PendingDelivery{Student: s, Tickets: []models.Ticket{t}})
	}
	return out, nil
}

func (m memTickets) MarkSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.markSentErr[id]; err != nil {
		return false, err
	}
	t, ok := m.tickets[id]
	if !ok || t.IsSent {
		return false, nil
	}
	t.IsSent = true
	t.SentAt = &at
	m.tickets[id] = t
	return true, nil
}

// ValidationStore

func (m memTickets) Consume(ctx context.Context, ticketID int64, code string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	t, ok := m.tickets[ticketID]
	if !ok || t.TicketCode != code || !t.IsValid {
		return nil, apperrors.ErrTicketNotFound
	}
	t.IsValid = false
	m.tickets[ticketID] = t
	s := m.students[t.StudentID]
	t.Student = &s
	return &t, nil
}

// seqCodes hands out codes in order, then TICK-<n> style fallbacks
type seqCodes struct {
	mu    sync.Mutex
	codes []string
	n     int
}

func (c *seqCodes) Next() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	if len(c.codes) > 0 {
		code := c.codes[0]
		c.codes = c.codes[1:]
		return code, nil
	}
	return "TICK-ABCDEFGH-" + strings.Repeat("Z", c.n), nil
}

type stubTokens struct {
	err error
}

func (s stubTokens) Issue(ticketID, studentID int64, code, event string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "token-" + code, nil
}

// countingRenderer fails for tokens listed in failFor
type countingRenderer struct {
	mu      sync.Mutex
	calls   int
	failFor map[string]bool
}

func (r *countingRenderer) Render(token string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failFor[token] {
		return nil, errors.New("qr encode failed")
	}
	return []byte("png:" + token), nil
}

func (r *countingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// scriptedMailer answers by recipient; unknown recipients succeed
type scriptedMailer struct {
	mu      sync.Mutex
	results map[string]mailer.Result
	panics  map[string]bool
	sent    []mailer.Message
	block   chan struct{}
	// onSend runs before the answer is chosen, outside the lock
	onSend  func(msg mailer.Message)
	waiting atomic.Int32
}

func newScriptedMailer() *scriptedMailer {
	return &scriptedMailer{results: map[string]mailer.Result{}, panics: map[string]bool{}}
}

func (m *scriptedMailer) Send(ctx context.Context, msg mailer.Message) mailer.Result {
	if m.block != nil {
		m.waiting.Add(1)
		<-m.block
		m.waiting.Add(-1)
	}
	if m.onSend != nil {
		m.onSend(msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	if m.panics[msg.To] {
		panic("smtp client exploded")
	}
	if res, ok := m.results[msg.To]; ok {
		return res
	}
	return mailer.Result{Success: true, MessageID: "<" + msg.TicketCode + "@test>", SentAt: time.Now()}
}

func (m *scriptedMailer) Close() error { return nil }

// blocked reports whether a send is parked on block
func (m *scriptedMailer) blocked() bool {
	return m.waiting.Load() > 0
}

func (m *scriptedMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []websocket.ScanEvent
}

func (p *recordingPublisher) Publish(e websocket.ScanEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) last() websocket.ScanEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
