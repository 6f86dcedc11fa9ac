package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/dberrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/logger"
)

// IPaymentRepository defines payment persistence
type IPaymentRepository interface {
	WithTx(tx pgx.Tx) IPaymentRepository

	Create(ctx context.Context, p *models.Payment) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	GetPendingByOrderForUpdate(ctx context.Context, orderID string) (*models.Payment, error)
	MarkPaid(ctx context.Context, id int64, transactionID, method string, amount float64) error
	MarkFailedByOrder(ctx context.Context, orderID string) (int64, error)
	UpdateLatestStatus(ctx context.Context, ref models.PaymentRef, status models.PaymentStatus) (*models.Payment, error)
	ListByRef(ctx context.Context, ref models.PaymentRef) ([]*models.Payment, error)
	ExpirePending(ctx context.Context, createdBefore time.Time) (int64, error)
}

var paymentColumns = []string{
	"id", "razorpay_order_id", "student_id", "application_id", "amount", "currency", "method",
	"status", "transaction_id", "payment_type", "notes", "created_at", "updated_at",
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.RazorpayOrderID, &p.StudentID, &p.ApplicationID, &p.Amount, &p.Currency, &p.Method,
		&p.Status, &p.TransactionID, &p.PaymentType, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// refWhere selects rows owned by ref
func refWhere(ref models.PaymentRef) squirrel.Eq {
	if ref.StudentID != nil {
		return squirrel.Eq{"student_id": *ref.StudentID}
	}
	if ref.ApplicationID != nil {
		return squirrel.Eq{"application_id": *ref.ApplicationID}
	}
	return squirrel.Eq{"id": nil}
}

// PaymentRepository handles payments
type PaymentRepository struct {
	db db.DBTX
	sb squirrel.StatementBuilderType
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(conn db.DBTX) *PaymentRepository {
	return &PaymentRepository{db: conn, sb: psql}
}

// WithTx returns a repository bound to tx
func (r *PaymentRepository) WithTx(tx pgx.Tx) IPaymentRepository {
	return &PaymentRepository{db: tx, sb: r.sb}
}

// Create inserts a payment row and returns its id
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) (int64, error) {
	if p.Notes == nil {
		p.Notes = map[string]string{}
	}
	sql, args, err := r.sb.Insert("payments").
		Columns("razorpay_order_id", "student_id", "application_id", "amount", "currency", "method",
			"status", "transaction_id", "payment_type", "notes").
		Values(p.RazorpayOrderID, p.StudentID, p.ApplicationID, p.Amount, p.Currency, p.Method,
			p.Status, p.TransactionID, p.PaymentType, p.Notes).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build create payment query: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "payments_transaction_id_key") {
			return 0, apperrors.NewConflictError("payment transaction already recorded")
		}
		if dberrors.IsForeignKeyViolation(err) {
			return 0, apperrors.NewResourceNotFoundError("payment owner not found")
		}
		if dberrors.IsCheckViolation(err, "payments_single_owner") {
			return 0, apperrors.NewValidationError("exactly one of studentId or applicationId is required", "studentId", "applicationId")
		}
		logger.Error().Err(err).Str("orderID", p.RazorpayOrderID).Msg("Error creating payment")
		return 0, fmt.Errorf("error creating payment: %w", err)
	}
	return p.ID, nil
}

// GetByID retrieves a payment by ID
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	return r.getOne(ctx, r.sb.Select(paymentColumns...).From("payments").Where(squirrel.Eq{"id": id}))
}

// GetByTransactionID retrieves the payment settled by a gateway payment id
func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	return r.getOne(ctx, r.sb.Select(paymentColumns...).From("payments").
		Where(squirrel.Eq{"transaction_id": transactionID}))
}

// GetPendingByOrderForUpdate locks the newest Pending row for a gateway order
func (r *PaymentRepository) GetPendingByOrderForUpdate(ctx context.Context, orderID string) (*models.Payment, error) {
	return r.getOne(ctx, r.sb.Select(paymentColumns...).From("payments").
		Where(squirrel.Eq{"razorpay_order_id": orderID, "status": models.PaymentPending}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1).
		Suffix("FOR UPDATE"))
}

func (r *PaymentRepository) getOne(ctx context.Context, q squirrel.SelectBuilder) (*models.Payment, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get payment query: %w", err)
	}
	p, err := scanPayment(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("error getting payment: %w", err)
	}
	return p, nil
}

// MarkPaid settles a payment row
func (r *PaymentRepository) MarkPaid(ctx context.Context, id int64, transactionID, method string, amount float64) error {
	sql, args, err := r.sb.Update("payments").
		Set("status", models.PaymentPaid).
		Set("transaction_id", transactionID).
		Set("method", method).
		Set("amount", amount).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build mark paid query: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "payments_transaction_id_key") {
			return apperrors.NewConflictError("payment transaction already recorded")
		}
		return fmt.Errorf("error marking payment paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrPaymentNotFound
	}
	return nil
}

// MarkFailedByOrder fails the Pending rows of an order and returns how many changed
func (r *PaymentRepository) MarkFailedByOrder(ctx context.Context, orderID string) (int64, error) {
	sql, args, err := r.sb.Update("payments").
		Set("status", models.PaymentFailed).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"razorpay_order_id": orderID, "status": models.PaymentPending}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build mark failed query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("error marking payment failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateLatestStatus sets the status of the owner's most recent payment
func (r *PaymentRepository) UpdateLatestStatus(ctx context.Context, ref models.PaymentRef, status models.PaymentStatus) (*models.Payment, error) {
	// built with ? placeholders so the outer statement numbers them
	latestSQL, latestArgs, err := squirrel.Select("id").From("payments").Where(refWhere(ref)).
		OrderBy("created_at DESC", "id DESC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build latest payment query: %w", err)
	}

	sql, args, err := r.sb.Update("payments").
		Set("status", status).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Expr("id = ("+latestSQL+")", latestArgs...)).
		Suffix("RETURNING " + strings.Join(paymentColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update status query: %w", err)
	}

	p, err := scanPayment(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("error updating payment status: %w", err)
	}
	return p, nil
}

// ListByRef returns the owner's payments, newest first
func (r *PaymentRepository) ListByRef(ctx context.Context, ref models.PaymentRef) ([]*models.Payment, error) {
	sql, args, err := r.sb.Select(paymentColumns...).From("payments").
		Where(refWhere(ref)).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list payments query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ExpirePending fails Pending rows created before the cutoff
func (r *PaymentRepository) ExpirePending(ctx context.Context, createdBefore time.Time) (int64, error) {
	sql, args, err := r.sb.Update("payments").
		Set("status", models.PaymentFailed).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"status": models.PaymentPending}).
		Where(squirrel.Lt{"created_at": createdBefore}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build expire payments query: %w", err)
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("error expiring payments: %w", err)
	}
	return tag.RowsAffected(), nil
}
