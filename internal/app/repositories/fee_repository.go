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

// IFeeRepository reads the fee pricing table
type IFeeRepository interface {
	WithTx(tx pgx.Tx) IFeeRepository

	GetFee(ctx context.Context, paymentType, course string) (*models.FeeStructure, error)
	List(ctx context.Context) ([]*models.FeeStructure, error)
	Upsert(ctx context.Context, fee *models.FeeStructure) error
}

// FeeRepository handles fee_structures
type FeeRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

// NewFeeRepository creates a new FeeRepository
func NewFeeRepository(conn db.DBTX) *FeeRepository {
	return &FeeRepository{db: conn, sb: psql}
}

// WithTx returns a repository bound to tx
func (r *FeeRepository) WithTx(tx pgx.Tx) IFeeRepository {
	return &FeeRepository{db: tx, sb: r.sb}
}

// GetFee returns the amount configured for a payment type and course
func (r *FeeRepository) GetFee(ctx context.Context, paymentType, course string) (*models.FeeStructure, error) {
	sql, args, err := r.sb.Select("id", "payment_type", "course", "amount").
		From("fee_structures").
		Where(squirrel.Eq{"payment_type": paymentType, "course": course}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get fee query: %w", err)
	}

	var f models.FeeStructure
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&f.ID, &f.PaymentType, &f.Course, &f.Amount); err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrFeeNotFound
		}
		return nil, fmt.Errorf("error getting fee: %w", err)
	}
	return &f, nil
}

// List returns the full pricing table
func (r *FeeRepository) List(ctx context.Context) ([]*models.FeeStructure, error) {
	rows, err := r.db.Query(ctx, `SELECT id, payment_type, course, amount FROM fee_structures ORDER BY payment_type, course`)
	if err != nil {
		return nil, fmt.Errorf("error listing fees: %w", err)
	}
	defer rows.Close()

	fees := make([]*models.FeeStructure, 0)
	for rows.Next() {
		var f models.FeeStructure
		if err := rows.Scan(&f.ID, &f.PaymentType, &f.Course, &f.Amount); err != nil {
			return nil, fmt.Errorf("error scanning fee: %w", err)
		}
		fees = append(fees, &f)
	}
	return fees, rows.Err()
}

// Upsert inserts or reprices a fee row
func (r *FeeRepository) Upsert(ctx context.Context, fee *models.FeeStructure) error {
	sql, args, err := r.sb.Insert("fee_structures").
		Columns("payment_type", "course", "amount").
		Values(fee.PaymentType, fee.Course, fee.Amount).
		Suffix("ON CONFLICT (payment_type, course) DO UPDATE SET amount = EXCLUDED.amount RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert fee query: %w", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&fee.ID); err != nil {
		return fmt.Errorf("error upserting fee %s/%s: %w", fee.PaymentType, fee.Course, err)
	}
	return nil
}
