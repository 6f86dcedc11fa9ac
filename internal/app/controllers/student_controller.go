package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/app/models/dto"
	"github.com/00Thor/CCPUR-sub000/internal/app/services"
	"github.com/00Thor/CCPUR-sub000/internal/middleware"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/helpers"
)

// StudentController handles student records and their academic history
type StudentController struct {
	studentService  services.StudentService
	academicService services.AcademicService
	logger          zerolog.Logger
}

// NewStudentController creates a new StudentController
func NewStudentController(studentService services.StudentService, academicService services.AcademicService, logger zerolog.Logger) *StudentController {
	return &StudentController{
		studentService:  studentService,
		academicService: academicService,
		logger:          logger,
	}
}

// GetMyStudent returns the caller's student record
// @Summary My student record
// @Tags students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=models.Student}
// @Failure 404 {object} dto.ErrorResponse "No student record"
// @Router /students/me [get]
func (c *StudentController) GetMyStudent(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}

	student, err := c.studentService.GetMyStudent(ctx.Request.Context(), actor)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(student))
}

// GetStudent returns one student
// @Summary Get student
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=models.Student}
// @Failure 403 {object} dto.ErrorResponse "Not the student"
// @Failure 404 {object} dto.ErrorResponse "Student not found"
// @Router /students/{id} [get]
func (c *StudentController) GetStudent(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	student, err := c.studentService.GetStudent(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(student))
}

// Promote moves a student into the next academic year
// @Summary Yearly promotion
// @Description Moves semester 2 to 3 and 4 to 5. Any other semester is rejected.
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=dto.PromotionResponse}
// @Failure 403 {object} dto.ErrorResponse "Staff only"
// @Failure 422 {object} dto.ErrorResponse "Not eligible"
// @Router /students/{id}/promote [post]
func (c *StudentController) Promote(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp, err := c.studentService.PromoteSemester(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(resp))
}

// Graduate closes a final-semester student
// @Summary Graduate student
// @Tags students
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=models.Student}
// @Failure 403 {object} dto.ErrorResponse "Staff only"
// @Failure 409 {object} dto.ErrorResponse "Already graduated"
// @Failure 422 {object} dto.ErrorResponse "Not in the final semester"
// @Router /students/{id}/graduate [post]
func (c *StudentController) Graduate(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	student, err := c.studentService.Graduate(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(student))
}

// AddAcademicRecord files a semester's results
// @Summary Add academic record
// @Description Stores the record and its subjects, then advances the student's semester if the record is for the current one
// @Tags academic-records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param request body dto.AddAcademicRecordRequest true "Semester results"
// @Success 201 {object} dto.APIResponse{data=dto.AcademicRecordResponse}
// @Failure 400 {object} dto.ErrorResponse "Validation error"
// @Failure 404 {object} dto.ErrorResponse "Student or semester not found"
// @Failure 409 {object} dto.ErrorResponse "Record exists or student graduated"
// @Router /students/{id}/academic-records [post]
func (c *StudentController) AddAcademicRecord(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	var req dto.AddAcademicRecordRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	resp, err := c.academicService.AddRecord(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(resp))
}

// UpdateAcademicRecord edits a record
// @Summary Update academic record
// @Description Updates the named semester's record, or the latest one when no semester is given. Subjects are replaced.
// @Tags academic-records
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Param request body dto.UpdateAcademicRecordRequest true "Changes"
// @Success 200 {object} dto.APIResponse{data=models.AcademicRecord}
// @Failure 400 {object} dto.ErrorResponse "Validation error"
// @Failure 404 {object} dto.ErrorResponse "Record not found"
// @Router /students/{id}/academic-records [put]
func (c *StudentController) UpdateAcademicRecord(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	var req dto.UpdateAcademicRecordRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	record, err := c.academicService.UpdateRecord(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(record))
}

// DeleteAcademicRecords removes every record of a student
// @Summary Delete academic records
// @Tags academic-records
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse
// @Failure 403 {object} dto.ErrorResponse "Staff only"
// @Router /students/{id}/academic-records [delete]
func (c *StudentController) DeleteAcademicRecords(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	deleted, err := c.academicService.DeleteRecords(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(gin.H{"deleted": deleted}))
}

// ListAcademicRecords returns a student's records with their subjects
// @Summary List academic records
// @Tags academic-records
// @Produce json
// @Security BearerAuth
// @Param id path int true "Student ID"
// @Success 200 {object} dto.APIResponse{data=[]models.AcademicRecord}
// @Failure 403 {object} dto.ErrorResponse "Not the student"
// @Router /students/{id}/academic-records [get]
func (c *StudentController) ListAcademicRecords(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	records, err := c.academicService.ListRecords(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(records))
}
