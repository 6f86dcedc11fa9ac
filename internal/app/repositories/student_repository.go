package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/dberrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/logger"
)

// IStudentRepository defines student persistence
type IStudentRepository interface {
	WithTx(tx pgx.Tx) IStudentRepository

	Create(ctx context.Context, student *models.Student) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Student, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Student, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Student, error)
	SetSemester(ctx context.Context, id int64, semester int) error
	Graduate(ctx context.Context, id int64, at time.Time) error
}

func studentColumns() []string {
	cols := []string{"id", "user_id", "application_id"}
	cols = append(cols, personalColumns...)
	return append(cols, "educational_details", "current_semester", "status", "graduated_at", "created_at", "updated_at")
}

func scanStudent(row pgx.Row) (*models.Student, error) {
	var s models.Student
	targets := []any{&s.ID, &s.UserID, &s.ApplicationID}
	targets = append(targets, personalTargets(&s.PersonalDetails)...)
	targets = append(targets, &s.Educational, &s.CurrentSemester, &s.Status, &s.GraduatedAt, &s.CreatedAt, &s.UpdatedAt)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	return &s, nil
}

// StudentRepository handles enrolled students
type StudentRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(conn db.DBTX) *StudentRepository {
	return &StudentRepository{db: conn, sb: psql}
}

// WithTx returns a repository bound to tx
func (r *StudentRepository) WithTx(tx pgx.Tx) IStudentRepository {
	return &StudentRepository{db: tx, sb: r.sb}
}

// Create inserts a student and returns its id
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) (int64, error) {
	cols := append([]string{"user_id", "application_id"}, personalColumns...)
	cols = append(cols, "educational_details", "current_semester", "status")
	vals := append([]any{student.UserID, student.ApplicationID}, personalValues(&student.PersonalDetails)...)
	vals = append(vals, student.Educational, student.CurrentSemester, student.Status)

	sql, args, err := r.sb.Insert("students").
		Columns(cols...).
		Values(vals...).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build create student query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&student.ID, &student.CreatedAt, &student.UpdatedAt); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "students_application_id_key") {
			return 0, apperrors.NewConflictError("a student already exists for this application")
		}
		logger.Error().Err(err).Int64("applicationID", student.ApplicationID).Msg("Error creating student")
		return 0, fmt.Errorf("error creating student: %w", err)
	}
	return student.ID, nil
}

// GetByID retrieves a student by ID
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	return r.get(ctx, squirrel.Eq{"id": id}, false)
}

// GetByUserID retrieves the student record of a user account
func (r *StudentRepository) GetByUserID(ctx context.Context, userID int64) (*models.Student, error) {
	return r.get(ctx, squirrel.Eq{"user_id": userID}, false)
}

// GetForUpdate retrieves and row-locks a student; call it inside a transaction
func (r *StudentRepository) GetForUpdate(ctx context.Context, id int64) (*models.Student, error) {
	return r.get(ctx, squirrel.Eq{"id": id}, true)
}

func (r *StudentRepository) get(ctx context.Context, where squirrel.Eq, lock bool) (*models.Student, error) {
	q := r.sb.Select(studentColumns()...).From("students").Where(where).OrderBy("id DESC").Limit(1)
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get student query: %w", err)
	}

	student, err := scanStudent(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, fmt.Errorf("error getting student: %w", err)
	}
	return student, nil
}

// SetSemester stores the student's current semester
func (r *StudentRepository) SetSemester(ctx context.Context, id int64, semester int) error {
	sql, args, err := r.sb.Update("students").
		Set("current_semester", semester).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build set semester query: %w", err)
	}
	return r.execOne(ctx, sql, args)
}

// Graduate marks the student graduated
func (r *StudentRepository) Graduate(ctx context.Context, id int64, at time.Time) error {
	sql, args, err := r.sb.Update("students").
		Set("status", models.StudentGraduated).
		Set("graduated_at", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build graduate query: %w", err)
	}
	return r.execOne(ctx, sql, args)
}

func (r *StudentRepository) execOne(ctx context.Context, sql string, args []any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrStudentNotFound
	}
	return nil
}
