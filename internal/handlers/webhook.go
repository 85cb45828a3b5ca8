// internal/handlers/webhook.go
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/archive"
	"github.com/javajoker/commission-backend/internal/i18n"
	"github.com/javajoker/commission-backend/internal/processor"
	"github.com/javajoker/commission-backend/internal/services"
	"github.com/javajoker/commission-backend/internal/utils"
)

const (
	asaasTokenHeader = "asaas-access-token"
	maxWebhookBody   = 1 << 20
	archiveTimeout   = 5 * time.Second
)

type EventHandler interface {
	HandleEvent(ctx context.Context, ev *processor.PaymentEvent) (*services.ReconcileResult, error)
}

type WebhookHandler struct {
	reconciler EventHandler
	archiver   archive.Archiver
	token      string
	logger     logrus.FieldLogger
}

// NewWebhookHandler builds the Asaas webhook endpoint. An empty token turns
// the token check off, which config validation only allows outside production.
func NewWebhookHandler(reconciler EventHandler, archiver archive.Archiver, token string, logger logrus.FieldLogger) *WebhookHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if archiver == nil {
		archiver = archive.Noop{}
	}
	logger = logger.WithField("component", "asaas_webhook")
	if token == "" {
		logger.Warn("Asaas webhook token not configured, deliveries are not authenticated")
	}
	return &WebhookHandler{reconciler: reconciler, archiver: archiver, token: token, logger: logger}
}

// POST /webhooks/asaas
func (h *WebhookHandler) HandleAsaas(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	if h.token != "" && !utils.SecureCompare(c.GetHeader(asaasTokenHeader), h.token) {
		h.logger.WithField("ip", c.ClientIP()).Warn("Webhook rejected: invalid token")
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyWebhookUnauthorized))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyWebhookInvalidPayload), err.Error())
		return
	}

	ev, err := processor.ParseAsaasWebhook(body)
	if err != nil {
		h.logger.WithError(err).Warn("Webhook rejected: malformed payload")
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyWebhookInvalidPayload), err.Error())
		return
	}
	log := h.logger.WithFields(logrus.Fields{
		"event_id":            ev.EventID,
		"event":               ev.RawType,
		"external_payment_id": ev.ExternalPaymentID,
	})

	h.archive(c.Request.Context(), log, ev, body)

	result, err := h.reconciler.HandleEvent(c.Request.Context(), ev)
	if err != nil {
		if apperr.IsValidation(err) {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyWebhookInvalidPayload), err.Error())
			return
		}
		log.WithError(err).Error("Webhook processing failed")
		_ = c.Error(err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "WEBHOOK_FAILED", i18n.T(lang, i18n.KeyWebhookFailed), nil)
		return
	}

	response := gin.H{"result": result}
	if len(result.SideEffectErrors) > 0 {
		failed := make([]string, 0, len(result.SideEffectErrors))
		for _, pf := range result.SideEffectErrors {
			failed = append(failed, pf.Step)
		}
		response["failed_side_effects"] = failed
	}
	utils.SuccessResponse(c, response)
}

func (h *WebhookHandler) archive(ctx context.Context, log logrus.FieldLogger, ev *processor.PaymentEvent, body []byte) {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	key, err := h.archiver.Archive(ctx, ev.Provider, ev.EventID, body)
	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		log.WithError(err).Warn("Failed to archive webhook body")
	case key != "":
		log.WithField("archive_key", key).Debug("Webhook body archived")
	}
}
