package services

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/app/auth"
	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/models/dto"
	"github.com/00Thor/CCPUR-sub000/internal/app/repositories"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/metrics"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/validation"
)

// AcademicService records semester results and advances students
type AcademicService interface {
	AddRecord(ctx context.Context, actor models.Actor, studentID int64, req *dto.AddAcademicRecordRequest) (*dto.AcademicRecordResponse, error)
	UpdateRecord(ctx context.Context, actor models.Actor, studentID int64, req *dto.UpdateAcademicRecordRequest) (*models.AcademicRecord, error)
	DeleteRecords(ctx context.Context, actor models.Actor, studentID int64) (int64, error)
	ListRecords(ctx context.Context, actor models.Actor, studentID int64) ([]*models.AcademicRecord, error)
}

type academicServiceImpl struct {
	recordRepo   repositories.IAcademicRecordRepository
	semesterRepo repositories.ISemesterRepository
	studentRepo  repositories.IStudentRepository
	transactor   db.Transactor
	authzService *auth.AuthorizationService
	logger       zerolog.Logger
}

// NewAcademicService creates a new AcademicService
func NewAcademicService(
	recordRepo repositories.IAcademicRecordRepository,
	semesterRepo repositories.ISemesterRepository,
	studentRepo repositories.IStudentRepository,
	transactor db.Transactor,
	authzService *auth.AuthorizationService,
	logger zerolog.Logger,
) AcademicService {
	return &academicServiceImpl{
		recordRepo:   recordRepo,
		semesterRepo: semesterRepo,
		studentRepo:  studentRepo,
		transactor:   transactor,
		authzService: authzService,
		logger:       logger,
	}
}

// AddRecord files one semester's results. The student row is locked for the whole
// write. Records for semesters after the current one are refused; a record for the
// current semester N moves the student to next(N), earlier semesters leave it as is.
func (s *academicServiceImpl) AddRecord(ctx context.Context, actor models.Actor, studentID int64, req *dto.AddAcademicRecordRequest) (*dto.AcademicRecordResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.authzService.AuthorizeStudent(ctx, actor, studentID); err != nil {
		return nil, err
	}

	semester, err := s.semesterRepo.GetByName(ctx, req.SemesterName)
	if err != nil {
		return nil, err
	}

	record := &models.AcademicRecord{
		StudentID:      studentID,
		SemesterID:     semester.ID,
		SemesterName:   semester.Name,
		SemesterNumber: semester.Number,
		Course:         req.Course,
		ExamPassed:     req.ExamPassed,
		Board:          req.Board,
		Year:           req.Year,
		Division:       req.Division,
		Subjects:       dto.ToSubjects(req.Subjects),
	}

	var before, after int
	err = s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		studentRepo := s.studentRepo.WithTx(tx)
		recordRepo := s.recordRepo.WithTx(tx)

		student, err := studentRepo.GetForUpdate(ctx, studentID)
		if err != nil {
			return err
		}
		if student.Status == models.StudentGraduated {
			return apperrors.ErrStudentGraduated
		}
		if semester.Number > student.CurrentSemester {
			return apperrors.ErrSemesterAhead
		}

		if _, err := recordRepo.Create(ctx, record); err != nil {
			return err
		}
		if err := recordRepo.InsertSubjects(ctx, record.ID, record.Subjects); err != nil {
			return err
		}

		before, after = student.CurrentSemester, student.CurrentSemester
		if next, ok := models.NextSemester(semester.Number); ok && semester.Number == student.CurrentSemester {
			if err := studentRepo.SetSemester(ctx, studentID, next); err != nil {
				return err
			}
			after = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if after != before {
		metrics.RecordSemesterAdvance("academic_record")
		s.logger.Info().Int64("studentID", studentID).Int("from", before).Int("to", after).Msg("Semester advanced")
	}
	s.logger.Info().Int64("studentID", studentID).Int64("recordID", record.ID).Str("semester", semester.Name).Msg("Academic record added")

	return &dto.AcademicRecordResponse{Record: record, CurrentSemester: after}, nil
}

// UpdateRecord edits the allow-listed scalars of a record and replaces its subjects.
// Without a semester name the latest record is targeted.
func (s *academicServiceImpl) UpdateRecord(ctx context.Context, actor models.Actor, studentID int64, req *dto.UpdateAcademicRecordRequest) (*models.AcademicRecord, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.authzService.AuthorizeStudent(ctx, actor, studentID); err != nil {
		return nil, err
	}

	var semesterID int64
	if req.SemesterName != nil {
		semester, err := s.semesterRepo.GetByName(ctx, *req.SemesterName)
		if err != nil {
			return nil, err
		}
		semesterID = semester.ID
	}

	upd := req.ToUpdate()
	subjects := dto.ToSubjects(req.Subjects)

	var record *models.AcademicRecord
	err := s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		recordRepo := s.recordRepo.WithTx(tx)

		var err error
		if semesterID != 0 {
			record, err = recordRepo.GetBySemester(ctx, studentID, semesterID)
		} else {
			record, err = recordRepo.GetLatest(ctx, studentID)
		}
		if err != nil {
			return err
		}

		if err := recordRepo.Update(ctx, record.ID, upd); err != nil {
			return err
		}
		if err := recordRepo.DeleteSubjects(ctx, record.ID); err != nil {
			return err
		}
		return recordRepo.InsertSubjects(ctx, record.ID, subjects)
	})
	if err != nil {
		return nil, err
	}

	applyRecordUpdate(record, upd)
	record.Subjects = subjects
	s.logger.Info().Int64("studentID", studentID).Int64("recordID", record.ID).Msg("Academic record updated")
	return record, nil
}

// DeleteRecords removes every record of a student with their subjects
func (s *academicServiceImpl) DeleteRecords(ctx context.Context, actor models.Actor, studentID int64) (int64, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return 0, err
	}

	var deleted int64
	err := s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		n, err := s.recordRepo.WithTx(tx).DeleteByStudent(ctx, studentID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.ErrAcademicRecordNotFound
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int64("studentID", studentID).Int64("records", deleted).Msg("Academic records deleted")
	return deleted, nil
}

// ListRecords returns a student's records with subjects, by semester
func (s *academicServiceImpl) ListRecords(ctx context.Context, actor models.Actor, studentID int64) ([]*models.AcademicRecord, error) {
	if _, err := s.authzService.AuthorizeStudent(ctx, actor, studentID); err != nil {
		return nil, err
	}
	return s.recordRepo.ListByStudent(ctx, studentID)
}

func applyRecordUpdate(record *models.AcademicRecord, upd models.AcademicRecordUpdate) {
	if upd.Course != nil {
		record.Course = *upd.Course
	}
	if upd.ExamPassed != nil {
		record.ExamPassed = *upd.ExamPassed
	}
	if upd.Board != nil {
		record.Board = *upd.Board
	}
	if upd.Year != nil {
		record.Year = *upd.Year
	}
	if upd.Division != nil {
		record.Division = *upd.Division
	}
}
