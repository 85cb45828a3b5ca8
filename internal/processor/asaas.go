// internal/processor/asaas.go
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/config"
)

const (
	ProviderAsaas = "asaas"

	maxAsaasErrorBody = 64 << 10
)

type AsaasClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

func NewAsaasClient(cfg config.AsaasConfig, httpClient *http.Client, logger logrus.FieldLogger) *AsaasClient {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AsaasClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger.WithField("provider", ProviderAsaas),
	}
}

func (c *AsaasClient) Name() string { return ProviderAsaas }

type asaasWallet struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

func (c *AsaasClient) GetWallet(ctx context.Context, walletID string) (*WalletInfo, error) {
	var w asaasWallet
	err := c.do(ctx, http.MethodGet, "/v3/wallets/"+url.PathEscape(walletID), nil, "", &w)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, walletID)
		}
		return nil, err
	}

	status := strings.ToUpper(w.Status)
	return &WalletInfo{
		ID:     w.ID,
		Name:   w.Name,
		Email:  w.Email,
		Active: status == "ACTIVE" || status == "APPROVED",
	}, nil
}

type asaasSplitItem struct {
	WalletID    string      `json:"walletId"`
	FixedValue  json.Number `json:"fixedValue"`
	Description string      `json:"description,omitempty"`
}

type asaasSplitRequest struct {
	Splits []asaasSplitItem `json:"splits"`
}

func (c *AsaasClient) CreateSplit(ctx context.Context, req SplitRequest) (*SplitResult, error) {
	if req.ExternalPaymentID == "" {
		return nil, apperr.Validation("asaas.CreateSplit", "external_payment_id", "processor payment id is required")
	}

	body := asaasSplitRequest{Splits: make([]asaasSplitItem, 0, len(req.Items))}
	for _, it := range req.Items {
		body.Splits = append(body.Splits, asaasSplitItem{
			WalletID:    it.WalletID,
			FixedValue:  CentsToAmount(it.ValueCents),
			Description: it.Description,
		})
	}

	var raw map[string]interface{}
	path := "/v3/payments/" + url.PathEscape(req.ExternalPaymentID) + "/split"
	if err := c.do(ctx, http.MethodPost, path, body, req.IdempotencyKey, &raw); err != nil {
		return nil, err
	}

	res := &SplitResult{Raw: raw}
	if id, ok := raw["id"].(string); ok {
		res.SplitID = id
	}
	if status, ok := raw["status"].(string); ok {
		res.Status = status
	}
	if res.SplitID == "" {
		// The processor accepted the request, so sending it again could pay
		// the beneficiaries twice. Keep the body for manual reconciliation.
		body, _ := json.Marshal(raw)
		return nil, apperr.ConsistencyWrap("asaas.CreateSplit", "split accepted without id", &APIError{
			Provider:    ProviderAsaas,
			StatusCode:  http.StatusOK,
			Description: "split response without id",
			Body:        string(body),
		})
	}

	c.logger.WithFields(logrus.Fields{
		"order_id":   req.OrderID,
		"payment_id": req.ExternalPaymentID,
		"split_id":   res.SplitID,
		"items":      len(req.Items),
	}).Info("Split created")
	return res, nil
}

type asaasErrorBody struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

func (c *AsaasClient) do(ctx context.Context, method, path string, in interface{}, idempotencyKey string, out interface{}) error {
	op := "asaas " + method + " " + path

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("access_token", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "commission-backend")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return err
		}
		return apperr.Transient(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxAsaasErrorBody))
		apiErr := &APIError{Provider: ProviderAsaas, StatusCode: resp.StatusCode, Body: string(raw)}
		var eb asaasErrorBody
		if json.Unmarshal(raw, &eb) == nil && len(eb.Errors) > 0 {
			apiErr.Code = eb.Errors[0].Code
			apiErr.Description = eb.Errors[0].Description
		} else {
			apiErr.Description = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Transient(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// CentsToAmount renders integer cents as a two-decimal JSON number.
func CentsToAmount(cents int64) json.Number {
	return json.Number(decimal.New(cents, -2).StringFixed(2))
}

// AmountToCents converts a processor amount to cents, rounding half away from zero.
func AmountToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
