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
	"github.com/00Thor/CCPUR-sub000/internal/pkg/logger"
)

// IApplicationRepository defines admission application persistence
type IApplicationRepository interface {
	WithTx(tx pgx.Tx) IApplicationRepository

	Create(ctx context.Context, app *models.Application) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Application, error)
	GetForUpdate(ctx context.Context, id int64) (*models.Application, error)
	UpdateEducational(ctx context.Context, id, userID int64, edu *models.EducationalDetails) error
	SetStatus(ctx context.Context, id int64, status models.ApplicationStatus, at time.Time) error
	List(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, int64, error)
}

// personalColumns are shared by applications and students, in scan order
var personalColumns = []string{
	"email", "first_name", "last_name", "date_of_birth", "gender", "phone",
	"father_name", "mother_name", "guardian_name", "guardian_phone",
	"nationality", "religion", "category", "aadhaar_number",
	"permanent_address", "present_address", "state", "pin_code", "course", "stream",
}

func personalValues(p *models.PersonalDetails) []any {
	return []any{
		p.Email, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.Phone,
		p.FatherName, p.MotherName, p.GuardianName, p.GuardianPhone,
		p.Nationality, p.Religion, p.Category, p.AadhaarNumber,
		p.PermanentAddress, p.PresentAddress, p.State, p.PinCode, p.Course, p.Stream,
	}
}

func personalTargets(p *models.PersonalDetails) []any {
	return []any{
		&p.Email, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender, &p.Phone,
		&p.FatherName, &p.MotherName, &p.GuardianName, &p.GuardianPhone,
		&p.Nationality, &p.Religion, &p.Category, &p.AadhaarNumber,
		&p.PermanentAddress, &p.PresentAddress, &p.State, &p.PinCode, &p.Course, &p.Stream,
	}
}

func applicationColumns() []string {
	cols := []string{"id", "user_id"}
	cols = append(cols, personalColumns...)
	return append(cols, "educational_details", "status", "accepted_at", "rejected_at", "created_at", "updated_at")
}

func scanApplication(row pgx.Row) (*models.Application, error) {
	var a models.Application
	targets := []any{&a.ID, &a.UserID}
	targets = append(targets, personalTargets(&a.PersonalDetails)...)
	targets = append(targets, &a.Educational, &a.Status, &a.AcceptedAt, &a.RejectedAt, &a.CreatedAt, &a.UpdatedAt)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	return &a, nil
}

// ApplicationRepository handles admission applications
type ApplicationRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

// NewApplicationRepository creates a new ApplicationRepository
func NewApplicationRepository(conn db.DBTX) *ApplicationRepository {
	return &ApplicationRepository{db: conn, sb: psql}
}

// WithTx returns a repository bound to tx
func (r *ApplicationRepository) WithTx(tx pgx.Tx) IApplicationRepository {
	return &ApplicationRepository{db: tx, sb: r.sb}
}

// Create inserts a pending application and returns its id
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) (int64, error) {
	app.Status = models.ApplicationPending

	cols := append([]string{"user_id"}, personalColumns...)
	cols = append(cols, "status")
	vals := append([]any{app.UserID}, personalValues(&app.PersonalDetails)...)
	vals = append(vals, app.Status)

	sql, args, err := r.sb.Insert("applications").
		Columns(cols...).
		Values(vals...).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build create application query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt); err != nil {
		logger.Error().Err(err).Int64("userID", app.UserID).Msg("Error creating application")
		return 0, fmt.Errorf("error creating application: %w", err)
	}
	return app.ID, nil
}

// GetByID retrieves an application by ID
func (r *ApplicationRepository) GetByID(ctx context.Context, id int64) (*models.Application, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate retrieves and row-locks an application; call it inside a transaction
func (r *ApplicationRepository) GetForUpdate(ctx context.Context, id int64) (*models.Application, error) {
	return r.get(ctx, id, true)
}

func (r *ApplicationRepository) get(ctx context.Context, id int64, lock bool) (*models.Application, error) {
	q := r.sb.Select(applicationColumns()...).From("applications").Where(squirrel.Eq{"id": id})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get application query: %w", err)
	}

	app, err := scanApplication(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("error getting application: %w", err)
	}
	return app, nil
}

// UpdateEducational stores educational details on an application owned by userID.
// Zero affected rows (missing or not owned) is reported as not found.
func (r *ApplicationRepository) UpdateEducational(ctx context.Context, id, userID int64, edu *models.EducationalDetails) error {
	sql, args, err := r.sb.Update("applications").
		Set("educational_details", edu).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update educational query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating educational details: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrApplicationNotFound
	}
	return nil
}

// SetStatus records a decision and its timestamp
func (r *ApplicationRepository) SetStatus(ctx context.Context, id int64, status models.ApplicationStatus, at time.Time) error {
	q := r.sb.Update("applications").
		Set("status", status).
		Set("updated_at", at)
	switch status {
	case models.ApplicationApproved:
		q = q.Set("accepted_at", at)
	case models.ApplicationRejected:
		q = q.Set("rejected_at", at)
	}

	sql, args, err := q.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build set status query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error updating application status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrApplicationNotFound
	}
	return nil
}

// List returns a page of applications matching filter and the total match count
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]*models.Application, int64, error) {
	where := squirrel.And{}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"status": filter.Status})
	}
	if filter.Course != "" {
		where = append(where, squirrel.Eq{"course": filter.Course})
	}

	countSQL, countArgs, err := r.sb.Select("COUNT(*)").From("applications").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count applications query: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting applications: %w", err)
	}

	q := r.sb.Select(applicationColumns()...).From("applications").Where(where).
		OrderBy("created_at DESC", "id DESC").
		Offset(filter.Offset)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list applications query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing applications: %w", err)
	}
	defer rows.Close()

	apps := make([]*models.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating applications: %w", err)
	}
	return apps, total, nil
}
