package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/app/auth"
	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/models/dto"
	"github.com/00Thor/CCPUR-sub000/internal/app/repositories"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/metrics"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/payment"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/validation"
)

// Order note keys
const (
	noteStudentID     = "student_id"
	noteApplicationID = "application_id"
	notePaymentType   = "payment_type"
	noteCourse        = "course"
)

var errRefRequired = apperrors.NewValidationError("exactly one of studentId or applicationId is required", "studentId", "applicationId")

// PaymentService tracks fee payments from order to settlement
type PaymentService interface {
	CreateOrder(ctx context.Context, actor models.Actor, req *dto.CreateOrderRequest) (*dto.OrderResponse, error)
	VerifyPayment(ctx context.Context, actor models.Actor, req *dto.VerifyPaymentRequest) (*models.Payment, error)
	UpdateStatus(ctx context.Context, actor models.Actor, req *dto.UpdatePaymentStatusRequest) (*models.Payment, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	ListPayments(ctx context.Context, actor models.Actor, ref models.PaymentRef) ([]*models.Payment, error)
	ExpireStale(ctx context.Context) (int64, error)
}

// PaymentConfig holds payment settings
type PaymentConfig struct {
	Currency   string
	PendingTTL time.Duration
}

type paymentServiceImpl struct {
	paymentRepo  repositories.IPaymentRepository
	feeRepo      repositories.IFeeRepository
	transactor   db.Transactor
	gateway      payment.Gateway
	authzService *auth.AuthorizationService
	config       PaymentConfig
	logger       zerolog.Logger
	now          func() time.Time
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	paymentRepo repositories.IPaymentRepository,
	feeRepo repositories.IFeeRepository,
	transactor db.Transactor,
	gateway payment.Gateway,
	authzService *auth.AuthorizationService,
	config PaymentConfig,
	logger zerolog.Logger,
) PaymentService {
	if config.Currency == "" {
		config.Currency = "INR"
	}
	if config.PendingTTL <= 0 {
		config.PendingTTL = 24 * time.Hour
	}
	return &paymentServiceImpl{
		paymentRepo:  paymentRepo,
		feeRepo:      feeRepo,
		transactor:   transactor,
		gateway:      gateway,
		authzService: authzService,
		config:       config,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateOrder prices the fee, opens a gateway order and records a Pending payment
func (s *paymentServiceImpl) CreateOrder(ctx context.Context, actor models.Actor, req *dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	ref := req.Ref()
	if !ref.Valid() {
		return nil, errRefRequired
	}
	if err := s.authzService.AuthorizePaymentRef(ctx, actor, ref); err != nil {
		return nil, err
	}

	fee, err := s.feeRepo.GetFee(ctx, req.PaymentType, req.Course)
	if err != nil {
		return nil, err
	}

	notes := refNotes(ref)
	notes[notePaymentType] = req.PaymentType
	notes[noteCourse] = req.Course

	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	order, err := s.gateway.CreateOrder(ctx, models.ToMinorUnits(fee.Amount), s.config.Currency, receipt, notes)
	if err != nil {
		s.logger.Error().Err(err).Str("receipt", receipt).Msg("Gateway order creation failed")
		return nil, apperrors.ErrPaymentGatewayError
	}

	p := &models.Payment{
		RazorpayOrderID: order.ID,
		PaymentRef:      ref,
		Amount:          fee.Amount,
		Currency:        s.config.Currency,
		Status:          models.PaymentPending,
		PaymentType:     req.PaymentType,
		Notes:           notes,
	}
	if _, err := s.paymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("paymentID", p.ID).Str("orderID", order.ID).Float64("amount", fee.Amount).Msg("Payment order created")
	return &dto.OrderResponse{
		PaymentID:   p.ID,
		OrderID:     order.ID,
		Amount:      fee.Amount,
		AmountMinor: order.Amount,
		Currency:    order.Currency,
		KeyID:       s.gateway.KeyID(),
	}, nil
}

// VerifyPayment confirms a checkout against the gateway and settles the payment
func (s *paymentServiceImpl) VerifyPayment(ctx context.Context, actor models.Actor, req *dto.VerifyPaymentRequest) (*models.Payment, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	details, err := s.gateway.FetchPayment(ctx, req.PaymentID)
	if err != nil {
		s.logger.Error().Err(err).Str("gatewayPaymentID", req.PaymentID).Msg("Gateway payment fetch failed")
		return nil, apperrors.ErrPaymentGatewayError
	}
	if details.OrderID != req.OrderID {
		metrics.RecordPaymentVerification("order_mismatch")
		s.logger.Warn().
			Str("orderID", req.OrderID).
			Str("gatewayOrderID", details.OrderID).
			Msg("Payment verification order mismatch")
		return nil, apperrors.ErrOrderMismatch
	}
	if details.Status != payment.StatusCaptured {
		metrics.RecordPaymentVerification("not_captured")
		return nil, apperrors.ErrPaymentNotCaptured
	}

	return s.settle(ctx, details, &actor)
}

// settle marks the order's Pending row Paid, or inserts a Paid row when none exists.
// A payment id that was already settled returns the stored row.
func (s *paymentServiceImpl) settle(ctx context.Context, details *payment.Details, actor *models.Actor) (*models.Payment, error) {
	order, err := s.gateway.FetchOrder(ctx, details.OrderID)
	if err != nil {
		s.logger.Error().Err(err).Str("orderID", details.OrderID).Msg("Gateway order fetch failed")
		return nil, apperrors.ErrPaymentGatewayError
	}
	ref := refFromNotes(order.Notes)
	if actor != nil && ref.Valid() {
		if err := s.authzService.AuthorizePaymentRef(ctx, *actor, ref); err != nil {
			return nil, err
		}
	}

	amount := models.FromMinorUnits(details.Amount)
	var (
		result *models.Payment
		replay bool
	)
	err = s.transactor.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		paymentRepo := s.paymentRepo.WithTx(tx)

		pending, err := paymentRepo.GetPendingByOrderForUpdate(ctx, details.OrderID)
		switch {
		case err == nil:
			if pending.Amount != amount {
				s.logger.Warn().
					Str("orderID", details.OrderID).
					Float64("expected", pending.Amount).
					Float64("captured", amount).
					Msg("Captured amount differs from order amount")
			}
			if err := paymentRepo.MarkPaid(ctx, pending.ID, details.ID, details.Method, amount); err != nil {
				return err
			}
			txnID := details.ID
			pending.Status = models.PaymentPaid
			pending.TransactionID = &txnID
			pending.Method = details.Method
			pending.Amount = amount
			result = pending
			return nil
		case !errors.Is(err, apperrors.ErrNotFound):
			return err
		}

		existing, err := paymentRepo.GetByTransactionID(ctx, details.ID)
		if err == nil {
			result, replay = existing, true
			return nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		if !ref.Valid() {
			return apperrors.NewInvalidStateError("payment order is not linked to a student or application")
		}
		txnID := details.ID
		p := &models.Payment{
			RazorpayOrderID: details.OrderID,
			PaymentRef:      ref,
			Amount:          amount,
			Currency:        details.Currency,
			Method:          details.Method,
			Status:          models.PaymentPaid,
			TransactionID:   &txnID,
			PaymentType:     order.Notes[notePaymentType],
			Notes:           order.Notes,
		}
		if _, err := paymentRepo.Create(ctx, p); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// lost a race with a concurrent settlement of the same payment
			if existing, getErr := s.paymentRepo.GetByTransactionID(ctx, details.ID); getErr == nil {
				metrics.RecordPaymentVerification("replay")
				return existing, nil
			}
		}
		metrics.RecordPaymentVerification("error")
		return nil, err
	}

	if replay {
		metrics.RecordPaymentVerification("replay")
		s.logger.Info().Str("gatewayPaymentID", details.ID).Msg("Payment already settled")
		return result, nil
	}
	metrics.RecordPaymentVerification("paid")
	s.logger.Info().
		Int64("paymentID", result.ID).
		Str("orderID", details.OrderID).
		Str("gatewayPaymentID", details.ID).
		Msg("Payment settled")
	return result, nil
}

// UpdateStatus sets the status of the reference's most recent payment
func (s *paymentServiceImpl) UpdateStatus(ctx context.Context, actor models.Actor, req *dto.UpdatePaymentStatusRequest) (*models.Payment, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, apperrors.NewValidationError("status must be Pending, Paid or Failed", "status")
	}
	ref := req.Ref()
	if !ref.Valid() {
		return nil, errRefRequired
	}

	p, err := s.paymentRepo.UpdateLatestStatus(ctx, ref, req.Status)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("paymentID", p.ID).Str("status", string(p.Status)).Int64("updatedBy", actor.UserID).Msg("Payment status updated")
	return p, nil
}

// HandleWebhook applies a signed gateway event
func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		s.logger.Warn().Msg("Rejected webhook with invalid signature")
		return apperrors.ErrInvalidWebhookSig
	}

	event, err := payment.ParseWebhookEvent(body)
	if err != nil {
		return apperrors.NewBadRequestError("malformed webhook payload")
	}

	switch event.Event {
	case payment.EventPaymentCaptured:
		_, err := s.settle(ctx, &event.Payment, nil)
		return err
	case payment.EventPaymentFailed:
		n, err := s.paymentRepo.MarkFailedByOrder(ctx, event.Payment.OrderID)
		if err != nil {
			return err
		}
		metrics.RecordPaymentVerification("failed")
		s.logger.Info().Str("orderID", event.Payment.OrderID).Int64("rows", n).Msg("Payment failed")
		return nil
	}

	s.logger.Debug().Str("event", event.Event).Msg("Ignoring webhook event")
	return nil
}

// ListPayments returns the payments of a student or application
func (s *paymentServiceImpl) ListPayments(ctx context.Context, actor models.Actor, ref models.PaymentRef) ([]*models.Payment, error) {
	if !ref.Valid() {
		return nil, errRefRequired
	}
	if err := s.authzService.AuthorizePaymentRef(ctx, actor, ref); err != nil {
		return nil, err
	}
	return s.paymentRepo.ListByRef(ctx, ref)
}

// ExpireStale fails Pending payments older than the configured TTL
func (s *paymentServiceImpl) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.paymentRepo.ExpirePending(ctx, s.now().Add(-s.config.PendingTTL))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("payments", n).Msg("Expired stale pending payments")
	}
	return n, nil
}

func refNotes(ref models.PaymentRef) map[string]string {
	notes := map[string]string{}
	if ref.StudentID != nil {
		notes[noteStudentID] = strconv.FormatInt(*ref.StudentID, 10)
	}
	if ref.ApplicationID != nil {
		notes[noteApplicationID] = strconv.FormatInt(*ref.ApplicationID, 10)
	}
	return notes
}

func refFromNotes(notes map[string]string) models.PaymentRef {
	var ref models.PaymentRef
	if id, err := strconv.ParseInt(notes[noteStudentID], 10, 64); err == nil && id > 0 {
		ref.StudentID = &id
	}
	if id, err := strconv.ParseInt(notes[noteApplicationID], 10, 64); err == nil && id > 0 {
		ref.ApplicationID = &id
	}
	return ref
}
