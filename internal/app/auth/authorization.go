package auth

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/repositories"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
)

// Authorization errors
var (
	ErrStaffRequired = apperrors.NewForbiddenError("only staff can perform this action")
	ErrAdminRequired = apperrors.NewForbiddenError("only administrators can perform this action")
	ErrNotOwner      = apperrors.NewForbiddenError("you don't have permission for this resource")
)

// AuthorizationService checks role and ownership of portal resources.
// Staff and admins bypass ownership.
type AuthorizationService struct {
	applicationRepo repositories.IApplicationRepository
	studentRepo     repositories.IStudentRepository
	logger          zerolog.Logger
}

// NewAuthorizationService creates a new AuthorizationService
func NewAuthorizationService(
	applicationRepo repositories.IApplicationRepository,
	studentRepo repositories.IStudentRepository,
	logger zerolog.Logger,
) *AuthorizationService {
	return &AuthorizationService{
		applicationRepo: applicationRepo,
		studentRepo:     studentRepo,
		logger:          logger,
	}
}

// RequireStaff fails unless the actor is staff or admin
func RequireStaff(actor models.Actor) error {
	if !actor.IsStaff() {
		return ErrStaffRequired
	}
	return nil
}

// RequireAdmin fails unless the actor is an admin
func RequireAdmin(actor models.Actor) error {
	if actor.Role != models.RoleAdmin {
		return ErrAdminRequired
	}
	return nil
}

// AuthorizeApplication loads an application the actor may access
func (s *AuthorizationService) AuthorizeApplication(ctx context.Context, actor models.Actor, applicationID int64) (*models.Application, error) {
	app, err := s.applicationRepo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if actor.IsStaff() || app.UserID == actor.UserID {
		return app, nil
	}
	s.logger.Warn().
		Int64("userID", actor.UserID).
		Int64("applicationID", applicationID).
		Msg("Application access denied")
	return nil, ErrNotOwner
}

// AuthorizeStudent loads a student record the actor may access
func (s *AuthorizationService) AuthorizeStudent(ctx context.Context, actor models.Actor, studentID int64) (*models.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if actor.IsStaff() || student.UserID == actor.UserID {
		return student, nil
	}
	s.logger.Warn().
		Int64("userID", actor.UserID).
		Int64("studentID", studentID).
		Msg("Student access denied")
	return nil, ErrNotOwner
}

// AuthorizePaymentRef checks access to the owner of a payment reference
func (s *AuthorizationService) AuthorizePaymentRef(ctx context.Context, actor models.Actor, ref models.PaymentRef) error {
	switch {
	case ref.StudentID != nil:
		_, err := s.AuthorizeStudent(ctx, actor, *ref.StudentID)
		return err
	case ref.ApplicationID != nil:
		_, err := s.AuthorizeApplication(ctx, actor, *ref.ApplicationID)
		return err
	}
	return apperrors.NewValidationError("exactly one of studentId or applicationId is required", "studentId", "applicationId")
}

// AuthorizeFileOwner checks access to the owner of a file slot.
// Faculty files belong to a staff account; only that account or an admin may touch them.
func (s *AuthorizationService) AuthorizeFileOwner(ctx context.Context, actor models.Actor, kind models.OwnerKind, ownerID int64) error {
	switch kind {
	case models.OwnerApplication:
		_, err := s.AuthorizeApplication(ctx, actor, ownerID)
		return err
	case models.OwnerStudent:
		_, err := s.AuthorizeStudent(ctx, actor, ownerID)
		return err
	case models.OwnerFaculty:
		if err := RequireStaff(actor); err != nil {
			return err
		}
		if actor.Role == models.RoleAdmin || ownerID == actor.UserID {
			return nil
		}
		return ErrNotOwner
	}
	return apperrors.ErrUnknownSlot
}
