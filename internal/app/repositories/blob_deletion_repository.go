package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/db"
)

// IBlobDeletionRepository is the outbox of blobs waiting to be removed from storage
type IBlobDeletionRepository interface {
	WithTx(tx pgx.Tx) IBlobDeletionRepository

	Enqueue(ctx context.Context, urls ...string) ([]int64, error)
	ListPending(ctx context.Context, limit, maxAttempts int) ([]*models.BlobDeletion, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// BlobDeletionRepository handles blob_deletions
type BlobDeletionRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

// NewBlobDeletionRepository creates a new BlobDeletionRepository
func NewBlobDeletionRepository(conn db.DBTX) *BlobDeletionRepository {
	return &BlobDeletionRepository{db: conn, sb: psql}
}

// WithTx returns a repository bound to tx
func (r *BlobDeletionRepository) WithTx(tx pgx.Tx) IBlobDeletionRepository {
	return &BlobDeletionRepository{db: tx, sb: r.sb}
}

// Enqueue records blobs to delete and returns the outbox ids in order
func (r *BlobDeletionRepository) Enqueue(ctx context.Context, urls ...string) ([]int64, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	q := r.sb.Insert("blob_deletions").Columns("blob_url")
	for _, u := range urls {
		q = q.Values(u)
	}
	sql, args, err := q.Suffix("RETURNING id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build enqueue blob deletion query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error enqueueing blob deletions: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, len(urls))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning blob deletion id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPending returns undone deletions below the attempt limit, oldest first.
// Rows are locked with SKIP LOCKED so concurrent workers do not collide.
func (r *BlobDeletionRepository) ListPending(ctx context.Context, limit, maxAttempts int) ([]*models.BlobDeletion, error) {
	sql, args, err := r.sb.Select("id", "blob_url", "attempts", "last_error", "done_at", "created_at").
		From("blob_deletions").
		Where(squirrel.Eq{"done_at": nil}).
		Where(squirrel.Lt{"attempts": maxAttempts}).
		OrderBy("created_at", "id").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list blob deletions query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing blob deletions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.BlobDeletion, 0)
	for rows.Next() {
		var d models.BlobDeletion
		if err := rows.Scan(&d.ID, &d.BlobURL, &d.Attempts, &d.LastError, &d.DoneAt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning blob deletion: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// MarkDone closes an outbox row
func (r *BlobDeletionRepository) MarkDone(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE blob_deletions SET done_at = NOW(), attempts = attempts + 1, last_error = NULL WHERE id = $1`, id); err != nil {
		return fmt.Errorf("error marking blob deletion done: %w", err)
	}
	return nil
}

// MarkFailed counts a failed attempt
func (r *BlobDeletionRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE blob_deletions SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, reason); err != nil {
		return fmt.Errorf("error marking blob deletion failed: %w", err)
	}
	return nil
}
