package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/models/dto"
	"github.com/00Thor/CCPUR-sub000/internal/app/services"
	"github.com/00Thor/CCPUR-sub000/internal/middleware"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/helpers"
)

// FormFileField is the multipart field holding the upload
const FormFileField = "file"

// FileController serves the document slots of applications, students and faculty.
// The same handlers are mounted once per owner kind.
type FileController struct {
	fileService services.FileService
	logger      zerolog.Logger
}

// NewFileController creates a new FileController
func NewFileController(fileService services.FileService, logger zerolog.Logger) *FileController {
	return &FileController{
		fileService: fileService,
		logger:      logger,
	}
}

// ListFiles returns the files held by an owner, grouped by slot
// @Summary List files
// @Tags files
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application or student ID"
// @Success 200 {object} dto.APIResponse{data=models.FileSet}
// @Failure 403 {object} dto.ErrorResponse "Not the owner"
// @Router /applications/{id}/files [get]
// @Router /students/{id}/files [get]
// @Router /faculty/files [get]
func (c *FileController) ListFiles(kind models.OwnerKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor, ownerID, ok := c.resolveOwner(ctx, kind)
		if !ok {
			return
		}

		set, err := c.fileService.List(ctx.Request.Context(), actor, kind, ownerID)
		if err != nil {
			middleware.HandleAPIError(ctx, err)
			return
		}

		ctx.JSON(http.StatusOK, dto.NewAPIResponse(set))
	}
}

// UploadFile stores a file into a slot
// @Summary Upload file
// @Description Single slots replace their previous file. Accepts JPEG, PNG, WebP and PDF.
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application or student ID"
// @Param slot path string true "Slot name"
// @Param file formData file true "File to upload"
// @Success 201 {object} dto.APIResponse{data=dto.FileResponse}
// @Failure 400 {object} dto.ErrorResponse "Unknown slot, bad type or too large"
// @Failure 403 {object} dto.ErrorResponse "Not the owner"
// @Router /applications/{id}/files/{slot} [post]
// @Router /students/{id}/files/{slot} [post]
// @Router /faculty/files/{slot} [post]
func (c *FileController) UploadFile(kind models.OwnerKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor, ownerID, ok := c.resolveOwner(ctx, kind)
		if !ok {
			return
		}
		file, err := ctx.FormFile(FormFileField)
		if err != nil {
			middleware.HandleAPIError(ctx, apperrors.NewValidationError("file is required", FormFileField))
			return
		}

		stored, err := c.fileService.Upload(ctx.Request.Context(), actor, kind, ownerID, ctx.Param("slot"), file)
		if err != nil {
			middleware.HandleAPIError(ctx, err)
			return
		}

		ctx.JSON(http.StatusCreated, dto.NewAPIResponse(dto.FileResponse{
			Slot:     stored.Slot,
			FileURL:  stored.FileURL,
			FileSize: stored.FileSize,
			FileType: stored.FileType,
		}))
	}
}

// DeleteFile removes a file from a slot. Multi slots need the fileUrl to remove,
// given as a query parameter or a JSON body.
// @Summary Delete file
// @Tags files
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application or student ID"
// @Param slot path string true "Slot name"
// @Param fileUrl query string false "URL to remove"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.ErrorResponse "File not found"
// @Router /applications/{id}/files/{slot} [delete]
// @Router /students/{id}/files/{slot} [delete]
// @Router /faculty/files/{slot} [delete]
func (c *FileController) DeleteFile(kind models.OwnerKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor, ownerID, ok := c.resolveOwner(ctx, kind)
		if !ok {
			return
		}
		fileURL := ctx.Query("fileUrl")
		if fileURL == "" && ctx.Request.ContentLength > 0 {
			var req dto.DeleteFileRequest
			if !middleware.BindJSON(ctx, &req) {
				return
			}
			fileURL = req.FileURL
		}

		if err := c.fileService.Delete(ctx.Request.Context(), actor, kind, ownerID, ctx.Param("slot"), fileURL); err != nil {
			middleware.HandleAPIError(ctx, err)
			return
		}

		ctx.JSON(http.StatusOK, dto.NewMessageResponse("File deleted"))
	}
}

// resolveOwner finds the owner id: the path id for applications and students,
// the caller for faculty unless an admin names another account.
func (c *FileController) resolveOwner(ctx *gin.Context, kind models.OwnerKind) (models.Actor, int64, bool) {
	actor, ok := requireActor(ctx)
	if !ok {
		return actor, 0, false
	}

	if kind != models.OwnerFaculty {
		id, err := helpers.ParseIDParam(ctx, "id")
		if err != nil {
			middleware.HandleAPIError(ctx, err)
			return actor, 0, false
		}
		return actor, id, true
	}

	facultyID, err := helpers.ParseOptionalIDQuery(ctx, "facultyId")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return actor, 0, false
	}
	if facultyID != nil {
		return actor, *facultyID, true
	}
	return actor, actor.UserID, true
}
