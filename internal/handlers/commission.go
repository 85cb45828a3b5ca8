// internal/handlers/commission.go
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/commission"
	"github.com/javajoker/commission-backend/internal/i18n"
	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/services"
	"github.com/javajoker/commission-backend/internal/utils"
)

type LedgerReader interface {
	ListByAffiliate(ctx context.Context, affiliateID uuid.UUID, offset, limit int) (*services.LedgerPage, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) (*services.PaymentLedger, error)
	GetSplit(ctx context.Context, orderID uuid.UUID) (*models.SplitRecord, error)
}

type CommissionOperator interface {
	Preview(ctx context.Context, orderValueCents int64, n1ID uuid.UUID) (*commission.Breakdown, error)
	RetrySplit(ctx context.Context, orderID uuid.UUID) (*services.ProcessResult, error)
	ProcessPayment(ctx context.Context, paymentID uuid.UUID) (*services.ProcessResult, error)
}

type CommissionHandler struct {
	ledger      LedgerReader
	commissions CommissionOperator
	wallets     services.WalletChecker
	logger      logrus.FieldLogger
}

func NewCommissionHandler(ledger LedgerReader, commissions CommissionOperator, wallets services.WalletChecker, logger logrus.FieldLogger) *CommissionHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CommissionHandler{
		ledger:      ledger,
		commissions: commissions,
		wallets:     wallets,
		logger:      logger.WithField("component", "commission_handler"),
	}
}

type PreviewRequest struct {
	OrderValueCents int64  `json:"order_value_cents" validate:"required,gt=0,lte=922337203685477"`
	N1AffiliateID   string `json:"n1_affiliate_id" validate:"required,uuid"`
}

// GET /v1/me/commissions
func (h *CommissionHandler) GetMyCommissions(c *gin.Context) {
	affiliateIDStr, exists := utils.GetAffiliateIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}
	affiliateID, err := uuid.Parse(affiliateIDStr)
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "affiliate_id"), nil)
		return
	}
	h.listByAffiliate(c, affiliateID)
}

// GET /v1/commissions?affiliate_id=
func (h *CommissionHandler) ListCommissions(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	raw := c.Query("affiliate_id")
	if raw == "" {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "affiliate_id"), nil)
		return
	}
	affiliateID, err := uuid.Parse(raw)
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "affiliate_id"), nil)
		return
	}
	h.listByAffiliate(c, affiliateID)
}

func (h *CommissionHandler) listByAffiliate(c *gin.Context, affiliateID uuid.UUID) {
	params := utils.GetPaginationParams(c)

	page, err := h.ledger.ListByAffiliate(c.Request.Context(), affiliateID, params.Offset(), params.Limit)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}

	result := utils.CreatePaginationResult(page.Records, page.Total, params)
	utils.PaginatedResponse(c, result, gin.H{"page_total_cents": page.TotalCents})
}

// GET /v1/commissions/payments/:id
func (h *CommissionHandler) GetPaymentCommissions(c *gin.Context) {
	paymentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	ledger, err := h.ledger.ListByPayment(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}
	utils.SuccessResponse(c, ledger)
}

// POST /v1/commissions/payments/:id/process
// Re-runs the whole commission flow of a confirmed payment, for instance
// after a beneficiary fixed the wallet that made the split invalid.
func (h *CommissionHandler) ProcessPayment(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	paymentID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.commissions.ProcessPayment(c.Request.Context(), paymentID)
	if err != nil {
		var split interface{}
		if result != nil && result.Split != nil {
			split = result.Split
		}
		respondError(c, h.logger, err, split)
		return
	}

	message := i18n.T(lang, i18n.KeySplitSubmitted)
	if result.Split == nil || !result.Split.Submitted() {
		message = i18n.T(lang, i18n.KeyCommissionProcessing)
	}
	utils.SuccessResponse(c, gin.H{
		"message":   message,
		"reused":    result.Reused,
		"split":     result.Split,
		"breakdown": result.Breakdown,
	})
}

// POST /v1/commissions/preview
func (h *CommissionHandler) Preview(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	breakdown, err := h.commissions.Preview(c.Request.Context(), req.OrderValueCents, uuid.MustParse(req.N1AffiliateID))
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"breakdown":       breakdown,
		"remainder_cents": breakdown.RemainderCents(),
	})
}

// GET /v1/splits/:order_id
func (h *CommissionHandler) GetSplit(c *gin.Context) {
	orderID, ok := parseUUIDParam(c, "order_id")
	if !ok {
		return
	}

	split, err := h.ledger.GetSplit(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}
	utils.SuccessResponse(c, split)
}

// POST /v1/splits/:order_id/retry
func (h *CommissionHandler) RetrySplit(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	orderID, ok := parseUUIDParam(c, "order_id")
	if !ok {
		return
	}

	result, err := h.commissions.RetrySplit(c.Request.Context(), orderID)
	if err != nil {
		var split interface{}
		if result != nil && result.Split != nil {
			split = result.Split
		}
		respondError(c, h.logger, err, split)
		return
	}

	// A result without payment means the split was already submitted earlier.
	message := i18n.T(lang, i18n.KeySplitSubmitted)
	if result.Payment == nil {
		message = i18n.T(lang, i18n.KeySplitAlreadySubmitted)
	}
	utils.SuccessResponse(c, gin.H{
		"message":   message,
		"split":     result.Split,
		"breakdown": result.Breakdown,
	})
}

// GET /v1/wallets/:wallet_id/validation
func (h *CommissionHandler) ValidateWallet(c *gin.Context) {
	walletID := c.Param("wallet_id")
	if err := utils.ValidateVar(walletID, "required,wallet_id"); err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, "wallet_id"), nil)
		return
	}

	status, err := h.wallets.Validate(c.Request.Context(), walletID)
	if err != nil {
		respondError(c, h.logger, err, nil)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"wallet": status,
		"usable": status.Usable(),
	})
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyValidationInvalid, name), nil)
		return uuid.Nil, false
	}
	return id, true
}
