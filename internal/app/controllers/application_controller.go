package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/models/dto"
	"github.com/00Thor/CCPUR-sub000/internal/app/services"
	"github.com/00Thor/CCPUR-sub000/internal/middleware"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/helpers"
)

// ApplicationController handles admission applications
type ApplicationController struct {
	applicationService services.ApplicationService
	logger             zerolog.Logger
}

// NewApplicationController creates a new ApplicationController
func NewApplicationController(applicationService services.ApplicationService, logger zerolog.Logger) *ApplicationController {
	return &ApplicationController{
		applicationService: applicationService,
		logger:             logger,
	}
}

// SubmitPersonalDetails creates a pending application
// @Summary Submit personal details
// @Description Creates a pending application for the caller's own account
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.PersonalDetailsRequest true "Personal details"
// @Success 201 {object} dto.APIResponse{data=dto.IDResponse} "Application created"
// @Failure 400 {object} dto.ErrorResponse "Missing fields"
// @Failure 403 {object} dto.ErrorResponse "Email belongs to another account"
// @Failure 404 {object} dto.ErrorResponse "No account for email"
// @Router /applications [post]
func (c *ApplicationController) SubmitPersonalDetails(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req dto.PersonalDetailsRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	id, err := c.applicationService.SubmitPersonalDetails(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(dto.IDResponse{ID: id}))
}

// SubmitEducationalDetails records class 10 and 12 results
// @Summary Submit educational details
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param request body dto.EducationalDetailsRequest true "Exam results"
// @Success 200 {object} dto.APIResponse "Details saved"
// @Failure 400 {object} dto.ErrorResponse "Validation error"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Failure 409 {object} dto.ErrorResponse "Application already decided"
// @Router /applications/{id}/educational [put]
func (c *ApplicationController) SubmitEducationalDetails(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	var req dto.EducationalDetailsRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	if err := c.applicationService.SubmitEducationalDetails(ctx.Request.Context(), actor, id, &req); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewMessageResponse("Educational details saved"))
}

// GetApplication returns one application
// @Summary Get application
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} dto.APIResponse{data=models.Application}
// @Failure 403 {object} dto.ErrorResponse "Not the applicant"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Router /applications/{id} [get]
func (c *ApplicationController) GetApplication(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	app, err := c.applicationService.GetApplication(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(app))
}

// ListApplications returns a page of applications for staff
// @Summary List applications
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Param course query string false "Course filter"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.ApplicationListResponse}
// @Failure 400 {object} dto.ErrorResponse "Unknown status"
// @Failure 403 {object} dto.ErrorResponse "Staff only"
// @Router /applications [get]
func (c *ApplicationController) ListApplications(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	page, size := helpers.ParsePaginationParams(ctx)
	status := models.ApplicationStatus(ctx.Query("status"))

	resp, err := c.applicationService.ListApplications(ctx.Request.Context(), actor, status, ctx.Query("course"), page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(resp))
}

// Approve promotes a pending application into a student
// @Summary Approve application
// @Description Creates the student record, moves the applicant's files and notifies them. Runs in one transaction.
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} dto.APIResponse{data=dto.DecisionResponse}
// @Failure 403 {object} dto.ErrorResponse "Staff only"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Failure 409 {object} dto.ErrorResponse "Already decided"
// @Router /applications/{id}/approve [post]
func (c *ApplicationController) Approve(ctx *gin.Context) {
	c.decide(ctx, c.applicationService.Approve)
}

// Reject marks a pending application rejected
// @Summary Reject application
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} dto.APIResponse{data=dto.DecisionResponse}
// @Failure 403 {object} dto.ErrorResponse "Staff only"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Failure 409 {object} dto.ErrorResponse "Already decided"
// @Router /applications/{id}/reject [post]
func (c *ApplicationController) Reject(ctx *gin.Context) {
	c.decide(ctx, c.applicationService.Reject)
}

type decisionFunc func(ctx context.Context, actor models.Actor, id int64) (*dto.DecisionResponse, error)

func (c *ApplicationController) decide(ctx *gin.Context, fn decisionFunc) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	id, err := helpers.ParseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp, err := fn(ctx.Request.Context(), actor, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.logger.Info().
		Int64("applicationID", id).
		Str("status", string(resp.Status)).
		Int64("decidedBy", actor.UserID).
		Msg("Application decided")
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(resp))
}
