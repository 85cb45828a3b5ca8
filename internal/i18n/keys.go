// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess       = "success"
	KeyError         = "error"
	KeyInternalError = "internal.error"

	// Authentication
	KeyAuthRequired      = "auth.required"
	KeyAuthInvalidToken  = "auth.invalid_token"
	KeyAuthTokenExpired  = "auth.token_expired"
	KeyAdminAccessDenied = "admin.access_denied"

	// Validation
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationRequired = "validation.required"
	KeyRateLimitExceeded  = "rate_limit.exceeded"

	// Resources
	KeyAffiliateNotFound = "affiliate.not_found"
	KeyPaymentNotFound   = "payment.not_found"
	KeySplitNotFound     = "split.not_found"

	// Commissions
	KeyCommissionWalletNotConfigured = "commission.wallet_not_configured"
	KeyCommissionWalletInvalid       = "commission.wallet_invalid"
	KeyCommissionPaymentNotConfirmed = "commission.payment_not_confirmed"
	KeyCommissionProcessing          = "commission.processing"
	KeyCommissionInconsistent        = "commission.inconsistent"
	KeySplitAlreadySubmitted         = "split.already_submitted"
	KeySplitSubmitted                = "split.submitted"

	// Webhooks
	KeyWebhookUnauthorized   = "webhook.unauthorized"
	KeyWebhookInvalidPayload = "webhook.invalid_payload"
	KeyWebhookFailed         = "webhook.failed"

	// Health
	KeyHealthDatabaseDown = "health.database_down"
)
