// internal/processor/gateway.go
package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrWalletNotFound is returned by GetWallet when the processor does not know the id.
var ErrWalletNotFound = errors.New("wallet not found")

// Gateway is the payment processor surface used by the commission flow.
type Gateway interface {
	Name() string
	GetWallet(ctx context.Context, walletID string) (*WalletInfo, error)
	CreateSplit(ctx context.Context, req SplitRequest) (*SplitResult, error)
}

type WalletInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Active bool   `json:"active"`
}

// SplitItem is one payee line of a split.
type SplitItem struct {
	WalletID    string     `json:"wallet_id"`
	ValueCents  int64      `json:"value_cents"`
	Description string     `json:"description"`
	Role        string     `json:"role"`
	AffiliateID *uuid.UUID `json:"affiliate_id,omitempty"`
}

type SplitRequest struct {
	OrderID           uuid.UUID
	ExternalPaymentID string
	Items             []SplitItem
	// IdempotencyKey is forwarded to processors that support request dedup.
	IdempotencyKey string
}

type SplitResult struct {
	SplitID string                 `json:"split_id"`
	Status  string                 `json:"status"`
	Raw     map[string]interface{} `json:"raw,omitempty"`
}

// APIError is a non-2xx answer from the processor.
type APIError struct {
	Provider    string `json:"provider"`
	StatusCode  int    `json:"status_code"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
	Body        string `json:"body,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s api error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("%s api error %d: %s", e.Provider, e.StatusCode, e.Description)
}

// HTTPStatus lets the retry policy classify the error.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// TotalCents sums the item values.
func TotalCents(items []SplitItem) int64 {
	var total int64
	for _, it := range items {
		total += it.ValueCents
	}
	return total
}

// WalletIDs returns item wallets in order.
func WalletIDs(items []SplitItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.WalletID)
	}
	return out
}
