package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
)

// ISemesterRepository reads the semester lookup table
type ISemesterRepository interface {
	WithTx(tx pgx.Tx) ISemesterRepository

	GetByName(ctx context.Context, name string) (*models.Semester, error)
	List(ctx context.Context) ([]*models.Semester, error)
	Upsert(ctx context.Context, semester *models.Semester) error
}

// SemesterRepository handles the semesters table
type SemesterRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

// NewSemesterRepository creates a new SemesterRepository
func NewSemesterRepository(conn db.DBTX) *SemesterRepository {
	return &SemesterRepository{db: conn, sb: psql}
}

// WithTx returns a repository bound to tx
func (r *SemesterRepository) WithTx(tx pgx.Tx) ISemesterRepository {
	return &SemesterRepository{db: tx, sb: r.sb}
}

// GetByName resolves a semester by name, case-insensitively
func (r *SemesterRepository) GetByName(ctx context.Context, name string) (*models.Semester, error) {
	sql, args, err := r.sb.Select("id", "name", "number").
		From("semesters").
		Where(squirrel.Expr("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name)))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get semester query: %w", err)
	}

	var s models.Semester
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&s.ID, &s.Name, &s.Number); err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrSemesterNotFound
		}
		return nil, fmt.Errorf("error getting semester: %w", err)
	}
	return &s, nil
}

// List returns all semesters ordered by number
func (r *SemesterRepository) List(ctx context.Context) ([]*models.Semester, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, number FROM semesters ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("error listing semesters: %w", err)
	}
	defer rows.Close()

	var semesters []*models.Semester
	for rows.Next() {
		var s models.Semester
		if err := rows.Scan(&s.ID, &s.Name, &s.Number); err != nil {
			return nil, fmt.Errorf("error scanning semester: %w", err)
		}
		semesters = append(semesters, &s)
	}
	return semesters, rows.Err()
}

// Upsert inserts a semester or renames the one with the same number
func (r *SemesterRepository) Upsert(ctx context.Context, semester *models.Semester) error {
	sql, args, err := r.sb.Insert("semesters").
		Columns("name", "number").
		Values(semester.Name, semester.Number).
		Suffix("ON CONFLICT (number) DO UPDATE SET name = EXCLUDED.name RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert semester query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&semester.ID); err != nil {
		return fmt.Errorf("error upserting semester %d: %w", semester.Number, err)
	}
	return nil
}
