// Package checkout создаёт сессии оплаты для выбранного продукта.
package checkout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/worksmart-portal/internal/lib/sl"
	"github.com/magabrotheeeer/worksmart-portal/internal/metrics"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
	"github.com/magabrotheeeer/worksmart-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/worksmart-portal/internal/product"
)

// SessionCreator создаёт сессию у платёжного провайдера.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req paymentprovider.CheckoutRequest) (*paymentprovider.CheckoutSession, error)
}

// Service инициирует оплату. Ничего не сохраняет: связь сессии с аккаунтом
// живёт в метаданных провайдера.
type Service struct {
	provider SessionCreator
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// New создаёт Service.
func New(provider SessionCreator, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		provider: provider,
		metrics:  m,
		log:      log,
	}
}

// CreateSession возвращает URL страницы оплаты для аккаунта и продукта.
func (s *Service) CreateSession(ctx context.Context, accountID string, sel product.Selector) (string, error) {
	const op = "checkout.CreateSession"

	if accountID == "" {
		return "", fmt.Errorf("%s: %w", op, models.ErrUnauthenticated)
	}
	p, err := sel.Resolve()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	log := s.log.With(slog.String("op", op), sl.Account(accountID), sl.Product(p.Tag()))

	session, err := s.provider.CreateCheckoutSession(ctx, paymentprovider.CheckoutRequest{
		AccountID: accountID,
		Product:   p,
	})
	if err != nil {
		s.metrics.CheckoutSession(false)
		log.Error("failed to create checkout session", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.CheckoutSession(true)
	log.Info("checkout session created", slog.String("session_id", session.ID))
	return session.URL, nil
}
