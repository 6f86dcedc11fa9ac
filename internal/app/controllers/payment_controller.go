package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/models/dto"
	"github.com/00Thor/CCPUR-sub000/internal/app/services"
	"github.com/00Thor/CCPUR-sub000/internal/middleware"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/helpers"
)

// WebhookSignatureHeader carries the gateway's HMAC of the raw body
const WebhookSignatureHeader = "X-Razorpay-Signature"

// PaymentController handles fee orders and gateway callbacks
type PaymentController struct {
	paymentService services.PaymentService
	logger         zerolog.Logger
}

// NewPaymentController creates a new PaymentController
func NewPaymentController(paymentService services.PaymentService, logger zerolog.Logger) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         logger,
	}
}

// CreateOrder opens a gateway order for a fee
// @Summary Create payment order
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateOrderRequest true "Fee and owner"
// @Success 201 {object} dto.APIResponse{data=dto.OrderResponse}
// @Failure 400 {object} dto.ErrorResponse "Validation error"
// @Failure 404 {object} dto.ErrorResponse "No fee configured"
// @Failure 500 {object} dto.ErrorResponse "Gateway unavailable"
// @Router /payments/orders [post]
func (c *PaymentController) CreateOrder(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req dto.CreateOrderRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	resp, err := c.paymentService.CreateOrder(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(resp))
}

// VerifyPayment confirms a checkout with the gateway
// @Summary Verify payment
// @Description Fetches the payment from the gateway and marks the order paid once captured. Repeating the call is safe.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.VerifyPaymentRequest true "Gateway identifiers"
// @Success 200 {object} dto.APIResponse{data=models.Payment}
// @Failure 409 {object} dto.ErrorResponse "Order mismatch"
// @Failure 422 {object} dto.ErrorResponse "Payment not captured"
// @Router /payments/verify [post]
func (c *PaymentController) VerifyPayment(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req dto.VerifyPaymentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	payment, err := c.paymentService.VerifyPayment(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(payment))
}

// UpdateStatus sets the latest payment status for a reference
// @Summary Update payment status
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdatePaymentStatusRequest true "Reference and status"
// @Success 200 {object} dto.APIResponse{data=models.Payment}
// @Failure 403 {object} dto.ErrorResponse "Staff only"
// @Failure 404 {object} dto.ErrorResponse "No payment"
// @Router /payments/status [patch]
func (c *PaymentController) UpdateStatus(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	var req dto.UpdatePaymentStatusRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	payment, err := c.paymentService.UpdateStatus(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(payment))
}

// Webhook receives gateway events
// @Summary Payment webhook
// @Description Unauthenticated. The body is verified against the X-Razorpay-Signature header.
// @Tags payments
// @Accept json
// @Produce json
// @Success 200 {object} dto.APIResponse
// @Failure 400 {object} dto.ErrorResponse "Malformed event"
// @Failure 401 {object} dto.ErrorResponse "Bad signature"
// @Router /payments/webhook [post]
func (c *PaymentController) Webhook(ctx *gin.Context) {
	body, err := ctx.GetRawData()
	if err != nil {
		middleware.HandleAPIError(ctx, apperrors.NewBadRequestError("could not read body"))
		return
	}

	if err := c.paymentService.HandleWebhook(ctx.Request.Context(), body, ctx.GetHeader(WebhookSignatureHeader)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewMessageResponse("ok"))
}

// ListPayments returns payments for a student or an application
// @Summary List payments
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param studentId query int false "Student ID"
// @Param applicationId query int false "Application ID"
// @Success 200 {object} dto.APIResponse{data=[]models.Payment}
// @Failure 400 {object} dto.ErrorResponse "Missing reference"
// @Router /payments [get]
func (c *PaymentController) ListPayments(ctx *gin.Context) {
	actor, ok := requireActor(ctx)
	if !ok {
		return
	}
	studentID, err := helpers.ParseOptionalIDQuery(ctx, "studentId")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	applicationID, err := helpers.ParseOptionalIDQuery(ctx, "applicationId")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	payments, err := c.paymentService.ListPayments(ctx.Request.Context(), actor, models.PaymentRef{StudentID: studentID, ApplicationID: applicationID})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(payments))
}
