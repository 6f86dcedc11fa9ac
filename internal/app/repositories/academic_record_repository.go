package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/dberrors"
)

// IAcademicRecordRepository defines academic record and subject persistence
type IAcademicRecordRepository interface {
	WithTx(tx pgx.Tx) IAcademicRecordRepository

	Create(ctx context.Context, record *models.AcademicRecord) (int64, error)
	InsertSubjects(ctx context.Context, recordID int64, subjects []models.AcademicSubject) error
	DeleteSubjects(ctx context.Context, recordID int64) error
	GetLatest(ctx context.Context, studentID int64) (*models.AcademicRecord, error)
	GetBySemester(ctx context.Context, studentID, semesterID int64) (*models.AcademicRecord, error)
	Update(ctx context.Context, recordID int64, upd models.AcademicRecordUpdate) error
	ListByStudent(ctx context.Context, studentID int64) ([]*models.AcademicRecord, error)
	DeleteByStudent(ctx context.Context, studentID int64) (int64, error)
}

var recordColumns = []string{
	"r.id", "r.student_id", "r.semester_id", "s.name", "s.number",
	"r.course", "r.exam_passed", "r.board", "r.year", "r.division", "r.created_at", "r.updated_at",
}

func scanRecord(row pgx.Row) (*models.AcademicRecord, error) {
	var rec models.AcademicRecord
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.SemesterID, &rec.SemesterName, &rec.SemesterNumber,
		&rec.Course, &rec.ExamPassed, &rec.Board, &rec.Year, &rec.Division, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AcademicRecordRepository handles academic_records and academic_subjects
type AcademicRecordRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

// NewAcademicRecordRepository creates a new AcademicRecordRepository
func NewAcademicRecordRepository(conn db.DBTX) *AcademicRecordRepository {
	return &AcademicRecordRepository{db: conn, sb: psql}
}

// WithTx returns a repository bound to tx
func (r *AcademicRecordRepository) WithTx(tx pgx.Tx) IAcademicRecordRepository {
	return &AcademicRecordRepository{db: tx, sb: r.sb}
}

// Create inserts the record row (not its subjects) and returns its id
func (r *AcademicRecordRepository) Create(ctx context.Context, record *models.AcademicRecord) (int64, error) {
	sql, args, err := r.sb.Insert("academic_records").
		Columns("student_id", "semester_id", "course", "exam_passed", "board", "year", "division").
		Values(record.StudentID, record.SemesterID, record.Course, record.ExamPassed, record.Board, record.Year, record.Division).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build create record query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "academic_records_student_semester_key") {
			return 0, apperrors.NewConflictError("an academic record for this semester already exists")
		}
		if dberrors.IsForeignKeyViolation(err) {
			return 0, apperrors.ErrStudentNotFound
		}
		return 0, fmt.Errorf("error creating academic record: %w", err)
	}
	return record.ID, nil
}

// InsertSubjects inserts all subjects for a record in one statement
func (r *AcademicRecordRepository) InsertSubjects(ctx context.Context, recordID int64, subjects []models.AcademicSubject) error {
	if len(subjects) == 0 {
		return nil
	}
	q := r.sb.Insert("academic_subjects").Columns("record_id", "subject_name", "grade", "marks")
	for _, s := range subjects {
		q = q.Values(recordID, s.SubjectName, s.Grade, s.Marks)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert subjects query: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error inserting subjects: %w", err)
	}
	return nil
}

// DeleteSubjects removes every subject of a record
func (r *AcademicRecordRepository) DeleteSubjects(ctx context.Context, recordID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM academic_subjects WHERE record_id = $1`, recordID); err != nil {
		return fmt.Errorf("error deleting subjects: %w", err)
	}
	return nil
}

func (r *AcademicRecordRepository) selectRecords() squirrel.SelectBuilder {
	return r.sb.Select(recordColumns...).
		From("academic_records r").
		Join("semesters s ON s.id = r.semester_id")
}

// GetLatest returns the student's record for the highest semester
func (r *AcademicRecordRepository) GetLatest(ctx context.Context, studentID int64) (*models.AcademicRecord, error) {
	return r.getOne(ctx, r.selectRecords().
		Where(squirrel.Eq{"r.student_id": studentID}).
		OrderBy("s.number DESC").
		Limit(1))
}

// GetBySemester returns the student's record for one semester
func (r *AcademicRecordRepository) GetBySemester(ctx context.Context, studentID, semesterID int64) (*models.AcademicRecord, error) {
	return r.getOne(ctx, r.selectRecords().
		Where(squirrel.Eq{"r.student_id": studentID, "r.semester_id": semesterID}))
}

func (r *AcademicRecordRepository) getOne(ctx context.Context, q squirrel.SelectBuilder) (*models.AcademicRecord, error) {
	sql, args, err := q.Suffix("FOR UPDATE OF r").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get record query: %w", err)
	}
	rec, err := scanRecord(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrAcademicRecordNotFound
		}
		return nil, fmt.Errorf("error getting academic record: %w", err)
	}
	return rec, nil
}

// Update sets the allow-listed scalar fields present in upd
func (r *AcademicRecordRepository) Update(ctx context.Context, recordID int64, upd models.AcademicRecordUpdate) error {
	cols, vals := upd.Columns()
	if len(cols) == 0 {
		return nil
	}
	q := r.sb.Update("academic_records")
	for i, col := range cols {
		q = q.Set(col, vals[i])
	}
	sql, args, err := q.Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": recordID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update record query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating academic record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAcademicRecordNotFound
	}
	return nil
}

// ListByStudent returns the student's records with subjects, ordered by semester
func (r *AcademicRecordRepository) ListByStudent(ctx context.Context, studentID int64) ([]*models.AcademicRecord, error) {
	sql, args, err := r.selectRecords().
		Where(squirrel.Eq{"r.student_id": studentID}).
		OrderBy("s.number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list records query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing academic records: %w", err)
	}
	records := make([]*models.AcademicRecord, 0)
	byID := map[int64]*models.AcademicRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning academic record: %w", err)
		}
		rec.Subjects = []models.AcademicSubject{}
		records = append(records, rec)
		byID[rec.ID] = rec
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating academic records: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	subjects, err := r.subjectsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range subjects {
		if rec, ok := byID[s.RecordID]; ok {
			rec.Subjects = append(rec.Subjects, s)
		}
	}
	return records, nil
}

func (r *AcademicRecordRepository) subjectsFor(ctx context.Context, recordIDs []int64) ([]models.AcademicSubject, error) {
	sql, args, err := r.sb.Select("id", "record_id", "subject_name", "grade", "marks").
		From("academic_subjects").
		Where(squirrel.Eq{"record_id": recordIDs}).
		OrderBy("record_id", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list subjects query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing subjects: %w", err)
	}
	defer rows.Close()

	var subjects []models.AcademicSubject
	for rows.Next() {
		var s models.AcademicSubject
		if err := rows.Scan(&s.ID, &s.RecordID, &s.SubjectName, &s.Grade, &s.Marks); err != nil {
			return nil, fmt.Errorf("error scanning subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// DeleteByStudent removes the student's subjects and records and returns the number
// of records deleted
func (r *AcademicRecordRepository) DeleteByStudent(ctx context.Context, studentID int64) (int64, error) {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM academic_subjects WHERE record_id IN (SELECT id FROM academic_records WHERE student_id = $1)`,
		studentID); err != nil {
		return 0, fmt.Errorf("error deleting subjects: %w", err)
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM academic_records WHERE student_id = $1`, studentID)
	if err != nil {
		return 0, fmt.Errorf("error deleting academic records: %w", err)
	}
	return tag.RowsAffected(), nil
}
