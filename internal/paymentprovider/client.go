// Package paymentprovider содержит клиент Stripe: создание сессий оплаты
// и проверку подписанных вебхуков.
package paymentprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/magabrotheeeer/worksmart-portal/internal/config"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
	"github.com/magabrotheeeer/worksmart-portal/internal/product"
)

// CheckoutRequest параметры новой сессии оплаты.
type CheckoutRequest struct {
	AccountID string
	Product   product.Product
}

// CheckoutSession созданная сессия провайдера.
type CheckoutSession struct {
	ID  string
	URL string
}

// Client создаёт сессии оплаты через Stripe API.
type Client struct {
	sessions *session.Client
	cfg      config.Stripe
}

// NewClient создаёт клиент Stripe. Пустой cfg.APIURL означает боевой API.
func NewClient(cfg config.Stripe, httpClient *http.Client) *Client {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(1),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	return &Client{
		sessions: &session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		cfg: cfg,
	}
}

// CreateCheckoutSession создаёт одноразовую сессию оплаты для продукта.
// Аккаунт и тег продукта записываются в метаданные сессии,
// аккаунт также передаётся как client_reference_id.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"

	if c.cfg.SecretKey == "" {
		return nil, fmt.Errorf("%s: %w", op, &models.ProviderError{
			Kind:    models.ErrCheckoutCreationFailed,
			Message: "stripe secret key is not set",
		})
	}
	lineItem, err := c.lineItem(req.Product)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.cfg.SuccessURL),
		CancelURL:         stripe.String(c.cfg.CancelURL),
		ClientReferenceID: stripe.String(req.AccountID),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{lineItem},
	}
	params.Context = ctx
	params.AddMetadata(models.MetadataAccountID, req.AccountID)
	params.AddMetadata(models.MetadataProductType, req.Product.Tag())

	s, err := c.sessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, fmt.Errorf("%s: %w", op, &models.ProviderError{Kind: models.ErrCheckoutCreationFailed, Message: stripeErr.Msg})
		}
		return nil, fmt.Errorf("%s: %w", op, &models.ProviderError{Kind: models.ErrDownstreamProvider, Message: err.Error()})
	}
	if s.URL == "" {
		return nil, fmt.Errorf("%s: %w", op, &models.ProviderError{
			Kind:    models.ErrCheckoutCreationFailed,
			Message: "session " + s.ID + " has no url",
		})
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (c *Client) lineItem(p product.Product) (*stripe.CheckoutSessionLineItemParams, error) {
	var priceID string
	switch p.Kind() {
	case product.KindWealth:
		priceID = c.cfg.WealthPriceID
	case product.KindProductivity:
		priceID = c.cfg.ProductivityPriceID
	case product.KindTool:
		return &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(c.cfg.Currency),
				UnitAmount: stripe.Int64(c.cfg.ToolPriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(p.Name()),
				},
			},
			Quantity: stripe.Int64(1),
		}, nil
	default:
		return nil, models.ErrInvalidProduct
	}
	if priceID == "" {
		return nil, &models.ProviderError{
			Kind:    models.ErrCheckoutCreationFailed,
			Message: "price for " + p.Tag() + " is not configured",
		}
	}
	return &stripe.CheckoutSessionLineItemParams{
		Price:    stripe.String(priceID),
		Quantity: stripe.Int64(1),
	}, nil
}
