// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/i18n"
	"github.com/javajoker/commission-backend/internal/retry"
	"github.com/javajoker/commission-backend/internal/services"
	"github.com/javajoker/commission-backend/internal/utils"
)

// respondError maps service errors onto the response envelope. details, when
// not nil, is attached to the error body (for example the split record left
// behind by a failed submission).
func respondError(c *gin.Context, logger logrus.FieldLogger, err error, details interface{}) {
	lang := utils.GetLangFromContext(c)
	_ = c.Error(err)

	var splitErr *services.SplitValidationError
	if errors.As(err, &splitErr) {
		key := i18n.KeyCommissionWalletInvalid
		if splitErr.HasReason(services.ReasonWalletMissing) {
			key = i18n.KeyCommissionWalletNotConfigured
		}
		body := gin.H{"problems": splitErr.Problems}
		if details != nil {
			body["split"] = details
		}
		utils.ErrorResponse(c, http.StatusBadRequest, "SPLIT_VALIDATION_ERROR", i18n.T(lang, key), body)
		return
	}

	switch {
	case errors.Is(err, apperr.ErrAffiliateNotFound):
		utils.NotFoundResponse(c, "affiliate")
		return
	case errors.Is(err, apperr.ErrPaymentNotFound):
		utils.NotFoundResponse(c, "payment")
		return
	case errors.Is(err, apperr.ErrSplitNotFound):
		utils.NotFoundResponse(c, "split")
		return
	}

	var appErr *apperr.Error
	hasAppErr := errors.As(err, &appErr)

	switch {
	case apperr.IsValidation(err):
		var field interface{}
		if hasAppErr && appErr.Field != "" {
			field = gin.H{"field": appErr.Field}
		}
		utils.ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), field)
	case apperr.IsTransient(err):
		logger.WithError(err).Warn("Request failed on a transient error")
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "PROCESSING", i18n.T(lang, i18n.KeyCommissionProcessing), details)
	case apperr.IsConsistency(err):
		logger.WithError(err).Error("Consistency error")
		utils.ErrorResponse(c, http.StatusInternalServerError, "CONSISTENCY_ERROR", i18n.T(lang, i18n.KeyCommissionInconsistent), details)
	default:
		var subErr *services.SubmissionError
		if errors.As(err, &subErr) {
			if retry.IsRetryable(subErr.Err) {
				utils.ErrorResponse(c, http.StatusServiceUnavailable, "PROCESSING", i18n.T(lang, i18n.KeyCommissionProcessing), details)
				return
			}
			utils.ErrorResponse(c, http.StatusBadGateway, "SPLIT_REJECTED", err.Error(), details)
			return
		}
		logger.WithError(err).Error("Unhandled request error")
		utils.InternalErrorResponse(c, "")
	}
}
