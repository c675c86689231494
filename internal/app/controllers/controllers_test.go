package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/middleware"
	"github.com/yigit/campuspass/internal/pkg/apperrors"
	"github.com/yigit/campuspass/internal/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validation.RegisterRules(); err != nil {
		panic(err)
	}
}

type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *dto.ErrorDetail `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func withOperator(id int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, id)
		c.Next()
	}
}

func perform(r http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// --- stubs ---

type stubStudents struct {
	created    *dto.CreateStudentRequest
	filter     dto.StudentFilter
	paid       *bool
	getErr     error
	createErr  error
	deletedIDs []int64
}

func (s *stubStudents) Create(_ context.Context, req *dto.CreateStudentRequest) (*models.Student, error) {
	s.created = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.Student{ID: 7, Matricule: req.Matricule, LastName: req.LastName, FirstName: req.FirstName, Level: req.Level, Email: req.Email}, nil
}

func (s *stubStudents) GetByID(_ context.Context, id int64) (*models.Student, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &models.Student{ID: id, Matricule: "2301-045"}, nil
}

func (s *stubStudents) List(_ context.Context, filter dto.StudentFilter) (*dto.StudentListResponse, error) {
	s.filter = filter
	return &dto.StudentListResponse{Students: []models.Student{}}, nil
}

func (s *stubStudents) Update(_ context.Context, id int64, _ *dto.UpdateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: id}, nil
}

func (s *stubStudents) SetPaymentStatus(_ context.Context, id int64, paid bool) (*models.Student, error) {
	s.paid = &paid
	return &models.Student{ID: id, HasPaid: paid}, nil
}

func (s *stubStudents) Delete(_ context.Context, id int64) error {
	s.deletedIDs = append(s.deletedIDs, id)
	return nil
}

type stubImporter struct {
	received []byte
}

func (s *stubImporter) Import(_ context.Context, r io.Reader) (*dto.ImportResult, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.received = b
	return &dto.ImportResult{}, nil
}

type stubTickets struct {
	filter dto.TicketFilter
	png    []byte
}

func (s *stubTickets) List(_ context.Context, filter dto.TicketFilter) (*dto.TicketListResponse, error) {
	s.filter = filter
	return &dto.TicketListResponse{}, nil
}

func (s *stubTickets) GetByID(_ context.Context, id int64) (*models.Ticket, error) {
	return nil, apperrors.ErrTicketNotFound
}

func (s *stubTickets) Create(_ context.Context, req *dto.CreateTicketRequest) (*models.Ticket, error) {
	return &models.Ticket{ID: 1}, nil
}

func (s *stubTickets) Update(_ context.Context, id int64, _ *dto.UpdateTicketRequest) (*models.Ticket, error) {
	return &models.Ticket{ID: id}, nil
}

func (s *stubTickets) Delete(_ context.Context, _ int64) error { return nil }

func (s *stubTickets) QRCode(_ context.Context, id int64) ([]byte, *models.Ticket, error) {
	return s.png, &models.Ticket{ID: id, TicketCode: "TICK-A1B2C3D4-MHZ3K9QX"}, nil
}

func (s *stubTickets) Counts(_ context.Context) (dto.TicketCounts, error) {
	return dto.TicketCounts{}, nil
}

type stubRunner struct {
	startErr error
	runs     map[string]*dto.DeliveryRun
}

func (s *stubRunner) Start(_ context.Context) (*dto.DeliveryRun, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	return &dto.DeliveryRun{RunID: "run-1", Status: dto.RunRunning, StartedAt: time.Now()}, nil
}

func (s *stubRunner) Get(runID string) (*dto.DeliveryRun, error) {
	run, ok := s.runs[runID]
	if !ok {
		return nil, apperrors.ErrDeliveryRunUnknown
	}
	return run, nil
}

type stubIssuance struct {
	eventName string
}

func (s *stubIssuance) IssueSingle(_ context.Context, studentID int64, eventName string, _ models.TicketType) (*models.Ticket, error) {
	s.eventName = eventName
	return &models.Ticket{ID: 3, StudentID: studentID, EventName: eventName}, nil
}

func (s *stubIssuance) IssueForAllPaidWithoutTicket(_ context.Context, eventName string, _ models.TicketType) (*dto.IssuanceReport, error) {
	s.eventName = eventName
	return &dto.IssuanceReport{}, nil
}

type stubValidation struct {
	operatorID int64
	token      string
	err        error
}

func (s *stubValidation) Validate(_ context.Context, token, _ string, operatorID int64) (*dto.ValidationResult, error) {
	s.token = token
	s.operatorID = operatorID
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ValidationResult{Result: dto.ValidationInvalid, Message: "Ticket already used"}, nil
}

// --- tests ---

func TestStudentController(t *testing.T) {
	students := &stubStudents{}
	importer := &stubImporter{}
	ctrl := NewStudentController(students, importer, zerolog.Nop())

	r := gin.New()
	r.GET("/students", ctrl.List)
	r.POST("/students", ctrl.Create)
	r.GET("/students/:id", ctrl.Get)
	r.PATCH("/students/:id/payment", ctrl.SetPayment)
	r.DELETE("/students/:id", ctrl.Delete)
	r.POST("/students/import", ctrl.Import)

	t.Run("list parses filters", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/students?search=%20rakoto%20&level=l3&hasPaid=true&page=2&size=5", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "rakoto", students.filter.Search)
		assert.Equal(t, models.LevelL3, students.filter.Level)
		require.NotNil(t, students.filter.HasPaid)
		assert.True(t, *students.filter.HasPaid)
		assert.Equal(t, 2, students.filter.Page)
		assert.Equal(t, 5, students.filter.Size)
	})

	t.Run("create", func(t *testing.T) {
		body := jsonBody(t, map[string]string{
			"matricule": "2301-045",
			"lastName":  "RAKOTO",
			"firstName": "Jean",
			"level":     "L3",
			"email":     "rakoto.jean@univ-tol.mg",
		})
		w := perform(r, http.MethodPost, "/students", body, "application/json")
		require.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, decode(t, w).Success)
		assert.Equal(t, "2301-045", students.created.Matricule)
	})

	t.Run("create rejects unknown level", func(t *testing.T) {
		body := jsonBody(t, map[string]string{
			"matricule": "2301-046",
			"lastName":  "RABE",
			"firstName": "Hery",
			"level":     "D1",
			"email":     "rabe@univ-tol.mg",
		})
		w := perform(r, http.MethodPost, "/students", body, "application/json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrorCodeValidationFailed, decode(t, w).Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/students/abc", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("payment requires the flag", func(t *testing.T) {
		w := perform(r, http.MethodPatch, "/students/7/payment", jsonBody(t, map[string]string{}), "application/json")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = perform(r, http.MethodPatch, "/students/7/payment", jsonBody(t, map[string]bool{"hasPaid": false}), "application/json")
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, students.paid)
		assert.False(t, *students.paid)
	})

	t.Run("delete", func(t *testing.T) {
		w := perform(r, http.MethodDelete, "/students/9", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []int64{9}, students.deletedIDs)
	})

	t.Run("import accepts xlsx only", func(t *testing.T) {
		upload := func(name string) *httptest.ResponseRecorder {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			fw, err := mw.CreateFormFile("file", name)
			require.NoError(t, err)
			_, err = fw.Write([]byte("workbook"))
			require.NoError(t, err)
			require.NoError(t, mw.Close())
			return perform(r, http.MethodPost, "/students/import", &buf, mw.FormDataContentType())
		}

		assert.Equal(t, http.StatusBadRequest, upload("students.csv").Code)
		w := upload("Students.XLSX")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []byte("workbook"), importer.received)
	})

	t.Run("import without file", func(t *testing.T) {
		w := perform(r, http.MethodPost, "/students/import", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStudentController_NotFound(t *testing.T) {
	ctrl := NewStudentController(&stubStudents{getErr: apperrors.ErrStudentNotFound}, &stubImporter{}, zerolog.Nop())
	r := gin.New()
	r.GET("/students/:id", ctrl.Get)

	w := perform(r, http.MethodGet, "/students/3", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrorCodeResourceNotFound, decode(t, w).Error.Code)
}

func TestTicketController(t *testing.T) {
	tickets := &stubTickets{png: []byte{0x89, 'P', 'N', 'G'}}
	ctrl := NewTicketController(tickets, zerolog.Nop())
	r := gin.New()
	r.GET("/tickets", ctrl.List)
	r.GET("/tickets/:id", ctrl.Get)
	r.GET("/tickets/:id/qrcode", ctrl.QRCode)

	t.Run("list filters", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/tickets?studentId=12&isValid=false", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(12), tickets.filter.StudentID)
		require.NotNil(t, tickets.filter.IsValid)
		assert.False(t, *tickets.filter.IsValid)
	})

	t.Run("list rejects bad student id", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/tickets?studentId=-1", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing ticket", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/tickets/4", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("qrcode", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/tickets/4/qrcode", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "TICK-A1B2C3D4-MHZ3K9QX.png")
		assert.Equal(t, tickets.png, w.Body.Bytes())
	})
}

func TestIssuanceController(t *testing.T) {
	finished := time.Now()
	runner := &stubRunner{runs: map[string]*dto.DeliveryRun{
		"run-0": {RunID: "run-0", Status: dto.RunCompleted, FinishedAt: &finished, Report: &dto.DeliveryReport{}},
	}}
	issuance := &stubIssuance{}
	ctrl := NewIssuanceController(issuance, runner, zerolog.Nop())

	r := gin.New()
	r.Use(withOperator(1))
	r.POST("/tickets/generate", ctrl.Generate)
	r.POST("/tickets/generate-all", ctrl.GenerateAll)
	r.POST("/tickets/send-all", ctrl.SendAll)
	r.GET("/tickets/send-all/:runId", ctrl.SendStatus)

	t.Run("generate", func(t *testing.T) {
		w := perform(r, http.MethodPost, "/tickets/generate", jsonBody(t, map[string]interface{}{"studentId": 5, "eventName": "GALA"}), "application/json")
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "GALA", issuance.eventName)
	})

	t.Run("generate all without body", func(t *testing.T) {
		issuance.eventName = "unset"
		w := perform(r, http.MethodPost, "/tickets/generate-all", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "", issuance.eventName)
	})

	t.Run("send all starts a run", func(t *testing.T) {
		w := perform(r, http.MethodPost, "/tickets/send-all", nil, "")
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "/api/v1/tickets/send-all/run-1", w.Header().Get("Location"))

		var run dto.DeliveryRun
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &run))
		assert.Equal(t, dto.RunRunning, run.Status)
	})

	t.Run("run status", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/tickets/send-all/run-0", nil, "")
		require.Equal(t, http.StatusOK, w.Code)

		w = perform(r, http.MethodGet, "/tickets/send-all/nope", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestIssuanceController_RunInProgress(t *testing.T) {
	ctrl := NewIssuanceController(&stubIssuance{}, &stubRunner{startErr: apperrors.ErrDeliveryInProgress}, zerolog.Nop())
	r := gin.New()
	r.POST("/tickets/send-all", ctrl.SendAll)

	w := perform(r, http.MethodPost, "/tickets/send-all", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGateController(t *testing.T) {
	validation := &stubValidation{}
	ctrl := NewGateController(validation)
	r := gin.New()
	r.Use(withOperator(42))
	r.POST("/tickets/validate", ctrl.Validate)

	t.Run("invalid ticket still answers 200", func(t *testing.T) {
		w := perform(r, http.MethodPost, "/tickets/validate", jsonBody(t, map[string]string{"token": "abc"}), "application/json")
		require.Equal(t, http.StatusOK, w.Code)

		var result dto.ValidationResult
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
		assert.Equal(t, dto.ValidationInvalid, result.Result)
		assert.Equal(t, "abc", validation.token)
		assert.Equal(t, int64(42), validation.operatorID)
	})

	t.Run("token required", func(t *testing.T) {
		w := perform(r, http.MethodPost, "/tickets/validate", jsonBody(t, map[string]string{}), "application/json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("store outage", func(t *testing.T) {
		validation.err = apperrors.ErrTransientStore
		defer func() { validation.err = nil }()
		w := perform(r, http.MethodPost, "/tickets/validate", jsonBody(t, map[string]string{"token": "abc"}), "application/json")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
