package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/app/auth"
	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/models/dto"
	"github.com/00Thor/CCPUR-sub000/internal/app/repositories"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/metrics"
)

// StudentService handles student records and explicit semester changes
type StudentService interface {
	GetStudent(ctx context.Context, actor models.Actor, studentID int64) (*models.Student, error)
	GetMyStudent(ctx context.Context, actor models.Actor) (*models.Student, error)
	PromoteSemester(ctx context.Context, actor models.Actor, studentID int64) (*dto.PromotionResponse, error)
	Graduate(ctx context.Context, actor models.Actor, studentID int64) (*models.Student, error)
}

type studentServiceImpl struct {
	studentRepo  repositories.IStudentRepository
	transactor   db.Transactor
	authzService *auth.AuthorizationService
	logger       zerolog.Logger
	now          func() time.Time
}

// NewStudentService creates a new StudentService
func NewStudentService(
	studentRepo repositories.IStudentRepository,
	transactor db.Transactor,
	authzService *auth.AuthorizationService,
	logger zerolog.Logger,
) StudentService {
	return &studentServiceImpl{
		studentRepo:  studentRepo,
		transactor:   transactor,
		authzService: authzService,
		logger:       logger,
		now:          time.Now,
	}
}

// GetStudent returns a student record to its owner or to staff
func (s *studentServiceImpl) GetStudent(ctx context.Context, actor models.Actor, studentID int64) (*models.Student, error) {
	return s.authzService.AuthorizeStudent(ctx, actor, studentID)
}

// GetMyStudent returns the caller's own student record
func (s *studentServiceImpl) GetMyStudent(ctx context.Context, actor models.Actor) (*models.Student, error) {
	return s.studentRepo.GetByUserID(ctx, actor.UserID)
}

// PromoteSemester applies a yearly promotion: 2 -> 3 or 4 -> 5
func (s *studentServiceImpl) PromoteSemester(ctx context.Context, actor models.Actor, studentID int64) (*dto.PromotionResponse, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}

	var from, to int
	err := s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		studentRepo := s.studentRepo.WithTx(tx)
		student, err := studentRepo.GetForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		if student.Status == models.StudentGraduated {
			return apperrors.ErrStudentGraduated
		}

		next, ok := models.YearlyPromotionTarget(student.CurrentSemester)
		if !ok {
			return apperrors.ErrNotEligiblePromote
		}
		from, to = student.CurrentSemester, next
		return studentRepo.SetSemester(ctx, studentID, next)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSemesterAdvance("promotion")
	s.logger.Info().Int64("studentID", studentID).Int("from", from).Int("to", to).Msg("Student promoted")
	return &dto.PromotionResponse{StudentID: studentID, CurrentSemester: to}, nil
}

// Graduate marks a final-semester student as graduated
func (s *studentServiceImpl) Graduate(ctx context.Context, actor models.Actor, studentID int64) (*models.Student, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}

	var student *models.Student
	err := s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		studentRepo := s.studentRepo.WithTx(tx)
		var err error
		student, err = studentRepo.GetForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		if student.Status == models.StudentGraduated {
			return apperrors.ErrStudentGraduated
		}
		if student.CurrentSemester != models.FinalSemester {
			return apperrors.ErrNotEligibleGraduate
		}

		at := s.now()
		if err := studentRepo.Graduate(ctx, studentID, at); err != nil {
			return err
		}
		student.Status = models.StudentGraduated
		student.GraduatedAt = &at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("studentID", studentID).Msg("Student graduated")
	return student, nil
}
