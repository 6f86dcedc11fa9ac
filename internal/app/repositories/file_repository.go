package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
)

// IFileRepository defines slot file persistence
type IFileRepository interface {
	WithTx(tx pgx.Tx) IFileRepository

	Create(ctx context.Context, file *models.StoredFile) (int64, error)
	ListByOwner(ctx context.Context, kind models.OwnerKind, ownerID int64) ([]*models.StoredFile, error)
	ListSlotForUpdate(ctx context.Context, kind models.OwnerKind, ownerID int64, slot string) ([]*models.StoredFile, error)
	DeleteByIDs(ctx context.Context, ids []int64) error
	DeleteByURL(ctx context.Context, kind models.OwnerKind, ownerID int64, slot, url string) error
	Reassign(ctx context.Context, fromKind models.OwnerKind, fromID int64, toKind models.OwnerKind, toID int64) (int64, error)
}

var fileColumns = []string{"id", "owner_kind", "owner_id", "slot", "file_url", "file_size", "file_type", "created_at"}

// FileRepository handles database operations for files
type FileRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

// NewFileRepository creates a new FileRepository
func NewFileRepository(conn db.DBTX) *FileRepository {
	return &FileRepository{db: conn, sb: psql}
}

// WithTx returns a repository bound to tx
func (r *FileRepository) WithTx(tx pgx.Tx) IFileRepository {
	return &FileRepository{db: tx, sb: r.sb}
}

// Create records an uploaded file
func (r *FileRepository) Create(ctx context.Context, file *models.StoredFile) (int64, error) {
	sql, args, err := r.sb.Insert("file_uploads").
		Columns("owner_kind", "owner_id", "slot", "file_url", "file_size", "file_type").
		Values(file.OwnerKind, file.OwnerID, file.Slot, file.FileURL, file.FileSize, file.FileType).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build create file query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&file.ID, &file.CreatedAt); err != nil {
		return 0, fmt.Errorf("error creating file: %w", err)
	}
	return file.ID, nil
}

// ListByOwner returns every file of an owner, oldest first
func (r *FileRepository) ListByOwner(ctx context.Context, kind models.OwnerKind, ownerID int64) ([]*models.StoredFile, error) {
	return r.list(ctx, r.sb.Select(fileColumns...).From("file_uploads").
		Where(squirrel.Eq{"owner_kind": kind, "owner_id": ownerID}).
		OrderBy("slot", "id"))
}

// ListSlotForUpdate returns and locks the files in one slot
func (r *FileRepository) ListSlotForUpdate(ctx context.Context, kind models.OwnerKind, ownerID int64, slot string) ([]*models.StoredFile, error) {
	return r.list(ctx, r.sb.Select(fileColumns...).From("file_uploads").
		Where(squirrel.Eq{"owner_kind": kind, "owner_id": ownerID, "slot": slot}).
		OrderBy("id").
		Suffix("FOR UPDATE"))
}

func (r *FileRepository) list(ctx context.Context, q squirrel.SelectBuilder) ([]*models.StoredFile, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list files query: %w", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing files: %w", err)
	}
	defer rows.Close()

	files := make([]*models.StoredFile, 0)
	for rows.Next() {
		var f models.StoredFile
		if err := rows.Scan(&f.ID, &f.OwnerKind, &f.OwnerID, &f.Slot, &f.FileURL, &f.FileSize, &f.FileType, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning file: %w", err)
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

// DeleteByIDs removes file rows by id
func (r *FileRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	sql, args, err := r.sb.Delete("file_uploads").Where(squirrel.Eq{"id": ids}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete files query: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("error deleting files: %w", err)
	}
	return nil
}

// DeleteByURL removes one file reference from a slot
func (r *FileRepository) DeleteByURL(ctx context.Context, kind models.OwnerKind, ownerID int64, slot, url string) error {
	sql, args, err := r.sb.Delete("file_uploads").
		Where(squirrel.Eq{"owner_kind": kind, "owner_id": ownerID, "slot": slot, "file_url": url}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete file query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("error deleting file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrFileNotFound
	}
	return nil
}

// Reassign moves every file of one owner to another and returns how many moved
func (r *FileRepository) Reassign(ctx context.Context, fromKind models.OwnerKind, fromID int64, toKind models.OwnerKind, toID int64) (int64, error) {
	sql, args, err := r.sb.Update("file_uploads").
		Set("owner_kind", toKind).
		Set("owner_id", toID).
		Where(squirrel.Eq{"owner_kind": fromKind, "owner_id": fromID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build reassign files query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("error reassigning files: %w", err)
	}
	return tag.RowsAffected(), nil
}
