package controllers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yigit/campuspass/internal/app/models"
	"github.com/yigit/campuspass/internal/app/models/dto"
	"github.com/yigit/campuspass/internal/middleware"
	"github.com/yigit/campuspass/internal/pkg/helpers"
)

// StudentController handles the student registry
type StudentController struct {
	students StudentService
	importer ImportService
	logger   zerolog.Logger
}

// NewStudentController creates a new StudentController
func NewStudentController(students StudentService, importer ImportService, logger zerolog.Logger) *StudentController {
	return &StudentController{
		students: students,
		importer: importer,
		logger:   logger,
	}
}

func studentID(ctx *gin.Context) (int64, bool) {
	id, ok := helpers.ParseIDParam(ctx, "id")
	if !ok {
		middleware.BadRequest(ctx, "Invalid student ID", "Student ID must be a positive number")
	}
	return id, ok
}

// List returns one page of students
// @Summary List students
// @Description Lists students, filtered by a search term over names, matricule and email, by level and by payment status
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search term"
// @Param level query string false "Study level" Enums(L1, L2, L3, M1, M2)
// @Param hasPaid query bool false "Payment status"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.StudentListResponse} "Students"
// @Failure 400 {object} dto.ErrorResponse "Invalid filter"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Router /students [get]
func (c *StudentController) List(ctx *gin.Context) {
	page, size := helpers.ParsePaginationParams(ctx)
	filter := dto.StudentFilter{
		Search:  strings.TrimSpace(ctx.Query("search")),
		Level:   models.StudyLevel(strings.ToUpper(strings.TrimSpace(ctx.Query("level")))),
		HasPaid: helpers.ParseOptionalBool(ctx, "hasPaid"),
		Page:    page,
		Size:    size,
	}

	resp, err := c.students.List(ctx.Request.Context(), filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// Create registers a student
// @Summary Create a student
// @Description Registers a student. Payment starts as unpaid.
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateStudentRequest true "Student information"
// @Success 201 {object} dto.APIResponse{data=models.Student} "Student created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 409 {object} dto.ErrorResponse "Matricule already exists"
// @Router /students [post]
func (c *StudentController) Create(ctx *gin.Context) {
	var req dto.CreateStudentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	student, err := c.students.Create(ctx.Request.Context(), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(student))
}

// Get returns one student with its tickets
// @Summary Get a student
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=models.Student} "Student"
// @Failure 400 {object} dto.ErrorResponse "Invalid student ID"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /students/{id} [get]
func (c *StudentController) Get(ctx *gin.Context) {
	id, ok := studentID(ctx)
	if !ok {
		return
	}

	student, err := c.students.GetByID(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(student))
}

// Update changes the provided fields of a student
// @Summary Update a student
// @Description Changes only the provided fields. Setting hasPaid also sets the validity of every ticket of the student.
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID" Format(int64) minimum(1)
// @Param request body dto.UpdateStudentRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=models.Student} "Student updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Failure 409 {object} dto.ErrorResponse "Matricule already exists"
// @Router /students/{id} [put]
func (c *StudentController) Update(ctx *gin.Context) {
	id, ok := studentID(ctx)
	if !ok {
		return
	}
	var req dto.UpdateStudentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	student, err := c.students.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(student))
}

// SetPayment sets the payment status of a student
// @Summary Set payment status
// @Description Sets the payment flag and, in the same transaction, the validity of every ticket of the student
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID" Format(int64) minimum(1)
// @Param request body dto.PaymentStatusRequest true "Payment status"
// @Success 200 {object} dto.APIResponse{data=models.Student} "Payment status changed"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /students/{id}/payment [patch]
func (c *StudentController) SetPayment(ctx *gin.Context) {
	id, ok := studentID(ctx)
	if !ok {
		return
	}
	var req dto.PaymentStatusRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	student, err := c.students.SetPaymentStatus(ctx.Request.Context(), id, *req.HasPaid)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(student))
}

// Delete removes a student and its tickets
// @Summary Delete a student
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID" Format(int64) minimum(1)
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Student deleted"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /students/{id} [delete]
func (c *StudentController) Delete(ctx *gin.Context) {
	id, ok := studentID(ctx)
	if !ok {
		return
	}

	if err := c.students.Delete(ctx.Request.Context(), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SuccessResponse{Message: "Student deleted"}))
}

// Import loads students from an xlsx workbook
// @Summary Import students
// @Description Reads every sheet of an xlsx workbook; the level comes from the sheet name. Rows are inserted independently.
// @Tags students
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "xlsx workbook"
// @Success 200 {object} dto.APIResponse{data=dto.ImportResult} "Import result"
// @Failure 400 {object} dto.ErrorResponse "Missing or unreadable file"
// @Router /students/import [post]
func (c *StudentController) Import(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		middleware.BadRequest(ctx, "Missing file", "Upload the workbook in the 'file' form field")
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		middleware.BadRequest(ctx, "Unsupported file type", "Only .xlsx workbooks are accepted")
		return
	}

	file, err := header.Open()
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	defer file.Close()

	result, err := c.importer.Import(ctx.Request.Context(), file)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().Str("file", header.Filename).Int("inserted", result.Inserted).Msg("Students imported")
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(result))
}
