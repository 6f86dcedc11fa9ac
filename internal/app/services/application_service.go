package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/app/auth"
	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/models/dto"
	"github.com/00Thor/CCPUR-sub000/internal/app/repositories"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/helpers"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/metrics"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/notify"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/validation"
)

// ApplicationService drives the admission application state machine
type ApplicationService interface {
	SubmitPersonalDetails(ctx context.Context, actor models.Actor, req *dto.PersonalDetailsRequest) (int64, error)
	SubmitEducationalDetails(ctx context.Context, actor models.Actor, applicationID int64, req *dto.EducationalDetailsRequest) error
	GetApplication(ctx context.Context, actor models.Actor, applicationID int64) (*models.Application, error)
	ListApplications(ctx context.Context, actor models.Actor, status models.ApplicationStatus, course string, page, size int) (*dto.ApplicationListResponse, error)
	Approve(ctx context.Context, actor models.Actor, applicationID int64) (*dto.DecisionResponse, error)
	Reject(ctx context.Context, actor models.Actor, applicationID int64) (*dto.DecisionResponse, error)
}

type applicationServiceImpl struct {
	applicationRepo repositories.IApplicationRepository
	studentRepo     repositories.IStudentRepository
	fileRepo        repositories.IFileRepository
	userRepo        repositories.IUserRepository
	transactor      db.Transactor
	authzService    *auth.AuthorizationService
	notifier        *notify.Notifier
	logger          zerolog.Logger
	now             func() time.Time
}

// NewApplicationService creates a new ApplicationService
func NewApplicationService(
	applicationRepo repositories.IApplicationRepository,
	studentRepo repositories.IStudentRepository,
	fileRepo repositories.IFileRepository,
	userRepo repositories.IUserRepository,
	transactor db.Transactor,
	authzService *auth.AuthorizationService,
	notifier *notify.Notifier,
	logger zerolog.Logger,
) ApplicationService {
	return &applicationServiceImpl{
		applicationRepo: applicationRepo,
		studentRepo:     studentRepo,
		fileRepo:        fileRepo,
		userRepo:        userRepo,
		transactor:      transactor,
		authzService:    authzService,
		notifier:        notifier,
		logger:          logger,
		now:             time.Now,
	}
}

// SubmitPersonalDetails creates a pending application for the account owning req.Email
func (s *applicationServiceImpl) SubmitPersonalDetails(ctx context.Context, actor models.Actor, req *dto.PersonalDetailsRequest) (int64, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validation.Struct(req); err != nil {
		return 0, err
	}

	email := req.Email
	if !actor.IsStaff() && email != normalizeEmail(actor.Email) {
		return 0, apperrors.NewForbiddenError("applications can only be submitted for your own account")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, apperrors.NewResourceNotFoundError("no account is registered for this email")
		}
		return 0, err
	}

	app := &models.Application{
		UserID:          user.ID,
		PersonalDetails: req.ToModel(),
	}
	app.Email = email
	id, err := s.applicationRepo.Create(ctx, app)
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int64("applicationID", id).Int64("userID", user.ID).Msg("Application submitted")
	return id, nil
}

// SubmitEducationalDetails adds exam results to the caller's own application.
// An application that is missing or owned by someone else is reported as not found.
func (s *applicationServiceImpl) SubmitEducationalDetails(ctx context.Context, actor models.Actor, applicationID int64, req *dto.EducationalDetailsRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}

	edu := req.ToModel()
	if err := s.applicationRepo.UpdateEducational(ctx, applicationID, actor.UserID, &edu); err != nil {
		return err
	}

	s.logger.Info().Int64("applicationID", applicationID).Msg("Educational details submitted")
	return nil
}

// GetApplication returns an application to its owner or to staff
func (s *applicationServiceImpl) GetApplication(ctx context.Context, actor models.Actor, applicationID int64) (*models.Application, error) {
	return s.authzService.AuthorizeApplication(ctx, actor, applicationID)
}

// ListApplications returns a page of applications for staff
func (s *applicationServiceImpl) ListApplications(ctx context.Context, actor models.Actor, status models.ApplicationStatus, course string, page, size int) (*dto.ApplicationListResponse, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	switch status {
	case "", models.ApplicationPending, models.ApplicationApproved, models.ApplicationRejected:
	default:
		return nil, apperrors.NewValidationError("unknown application status", "status")
	}

	offset, limit := helpers.CalculateOffsetLimit(page, size)
	apps, total, err := s.applicationRepo.List(ctx, models.ApplicationFilter{
		Status: status,
		Course: course,
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	return &dto.ApplicationListResponse{
		Applications: apps,
		Pagination:   helpers.NewPaginationInfo(total, page, limit),
	}, nil
}

// Approve promotes a pending application into a student in one transaction.
// The notification is sent after commit and its failure does not undo the approval.
func (s *applicationServiceImpl) Approve(ctx context.Context, actor models.Actor, applicationID int64) (*dto.DecisionResponse, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}

	var (
		app     *models.Application
		student *models.Student
	)
	err := s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		applicationRepo := s.applicationRepo.WithTx(tx)

		var err error
		app, err = applicationRepo.GetForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if !app.Status.CanTransitionTo(models.ApplicationApproved) {
			return apperrors.ErrApplicationNotPending
		}

		student = models.NewStudentFromApplication(app)
		if _, err := s.studentRepo.WithTx(tx).Create(ctx, student); err != nil {
			return err
		}

		moved, err := s.fileRepo.WithTx(tx).Reassign(ctx, models.OwnerApplication, app.ID, models.OwnerStudent, student.ID)
		if err != nil {
			return err
		}
		s.logger.Debug().Int64("applicationID", app.ID).Int64("files", moved).Msg("Application files moved to student")

		return applicationRepo.SetStatus(ctx, app.ID, models.ApplicationApproved, s.now())
	})
	if err != nil {
		s.logDecisionError(err, applicationID, "approve")
		return nil, err
	}

	metrics.RecordApplicationDecision(string(models.ApplicationApproved))
	s.logger.Info().
		Int64("applicationID", app.ID).
		Int64("studentID", student.ID).
		Int64("approvedBy", actor.UserID).
		Msg("Application approved")

	if err := s.notifier.ApplicationApproved(ctx, app.Email, app.FullName(), app.ID, student.ID); err != nil {
		s.logger.Warn().Err(err).Int64("applicationID", app.ID).Msg("Failed to send approval notification")
		metrics.RecordNotificationFailure("application_approved")
	}

	studentID := student.ID
	return &dto.DecisionResponse{
		ApplicationID: app.ID,
		Status:        models.ApplicationApproved,
		StudentID:     &studentID,
	}, nil
}

// Reject closes a pending application
func (s *applicationServiceImpl) Reject(ctx context.Context, actor models.Actor, applicationID int64) (*dto.DecisionResponse, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}

	var app *models.Application
	err := s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		applicationRepo := s.applicationRepo.WithTx(tx)

		var err error
		app, err = applicationRepo.GetForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if !app.Status.CanTransitionTo(models.ApplicationRejected) {
			return apperrors.ErrApplicationNotPending
		}
		return applicationRepo.SetStatus(ctx, app.ID, models.ApplicationRejected, s.now())
	})
	if err != nil {
		s.logDecisionError(err, applicationID, "reject")
		return nil, err
	}

	metrics.RecordApplicationDecision(string(models.ApplicationRejected))
	s.logger.Info().Int64("applicationID", app.ID).Int64("rejectedBy", actor.UserID).Msg("Application rejected")

	if err := s.notifier.ApplicationRejected(ctx, app.Email, app.FullName(), app.ID); err != nil {
		s.logger.Warn().Err(err).Int64("applicationID", app.ID).Msg("Failed to send rejection notification")
		metrics.RecordNotificationFailure("application_rejected")
	}

	return &dto.DecisionResponse{ApplicationID: app.ID, Status: models.ApplicationRejected}, nil
}

func (s *applicationServiceImpl) logDecisionError(err error, applicationID int64, action string) {
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrConflict) {
		s.logger.Info().Err(err).Int64("applicationID", applicationID).Str("action", action).Msg("Application decision refused")
		return
	}
	s.logger.Error().Err(err).Int64("applicationID", applicationID).Str("action", action).Msg("Application decision failed")
}
