// internal/processor/stripe.go
package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/config"
)

const ProviderStripe = "stripe"

// StripeGateway maps wallets to Connect accounts and splits to transfer groups.
type StripeGateway struct {
	api      *client.API
	currency string
	logger   logrus.FieldLogger
}

// NewStripeGateway builds a gateway on the default Stripe backends.
func NewStripeGateway(cfg config.StripeConfig, logger logrus.FieldLogger) *StripeGateway {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return NewStripeGatewayWithAPI(sc, cfg.Currency, logger)
}

func NewStripeGatewayWithAPI(api *client.API, currency string, logger logrus.FieldLogger) *StripeGateway {
	if currency == "" {
		currency = "brl"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StripeGateway{api: api, currency: currency, logger: logger.WithField("provider", ProviderStripe)}
}

func (g *StripeGateway) Name() string { return ProviderStripe }

func (g *StripeGateway) GetWallet(ctx context.Context, walletID string) (*WalletInfo, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := g.api.Accounts.GetByID(walletID, params)
	if err != nil {
		mapped := mapStripeError("stripe GetWallet", err)
		var apiErr *APIError
		if errors.As(mapped, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, walletID)
		}
		return nil, mapped
	}

	info := &WalletInfo{
		ID:     acct.ID,
		Email:  acct.Email,
		Active: acct.ChargesEnabled && acct.PayoutsEnabled,
	}
	if acct.BusinessProfile != nil {
		info.Name = acct.BusinessProfile.Name
	}
	return info, nil
}

func (g *StripeGateway) CreateSplit(ctx context.Context, req SplitRequest) (*SplitResult, error) {
	group := "order_" + req.OrderID.String()
	key := req.IdempotencyKey
	if key == "" {
		key = req.OrderID.String()
	}

	transfers := make([]interface{}, 0, len(req.Items))
	for _, it := range req.Items {
		params := &stripe.TransferParams{
			Amount:        stripe.Int64(it.ValueCents),
			Currency:      stripe.String(g.currency),
			Destination:   stripe.String(it.WalletID),
			TransferGroup: stripe.String(group),
			Description:   stripe.String(it.Description),
		}
		params.Context = ctx
		// Per-item keys make a replay after a partial failure safe.
		params.SetIdempotencyKey(key + ":" + it.WalletID)
		params.AddMetadata("order_id", req.OrderID.String())
		params.AddMetadata("role", it.Role)
		if req.ExternalPaymentID != "" {
			params.AddMetadata("payment_id", req.ExternalPaymentID)
		}

		tr, err := g.api.Transfers.New(params)
		if err != nil {
			return nil, mapStripeError("stripe CreateSplit", err)
		}
		transfers = append(transfers, map[string]interface{}{
			"id":          tr.ID,
			"destination": it.WalletID,
			"amount":      tr.Amount,
		})
	}

	g.logger.WithFields(logrus.Fields{
		"order_id":  req.OrderID,
		"group":     group,
		"transfers": len(transfers),
	}).Info("Transfer group created")

	return &SplitResult{
		SplitID: group,
		Status:  "sent",
		Raw:     map[string]interface{}{"transfer_group": group, "transfers": transfers},
	}, nil
}

func mapStripeError(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return apperr.Transient(op, err)
	}
	status := se.HTTPStatusCode
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &APIError{
		Provider:    ProviderStripe,
		StatusCode:  status,
		Code:        string(se.Code),
		Description: se.Msg,
	}
}
