package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/worksmart-portal/internal/cache"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/sl"
	"github.com/magabrotheeeer/worksmart-portal/internal/metrics"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
	"github.com/magabrotheeeer/worksmart-portal/internal/product"
	"github.com/magabrotheeeer/worksmart-portal/internal/storage"
)

// Outcome результат выдачи доступа.
type Outcome int

const (
	// Granted создана новая запись.
	Granted Outcome = iota + 1
	// Duplicate запись уже была, ничего не записано.
	Duplicate
	// AwaitingPayment сессия завершена, но оплата ещё не поступила.
	AwaitingPayment
)

func (o Outcome) String() string {
	switch o {
	case Granted:
		return metrics.OutcomeGranted
	case Duplicate:
		return metrics.OutcomeDuplicate
	case AwaitingPayment:
		return metrics.OutcomePending
	default:
		return "unknown"
	}
}

// GrantResult итог HandleCheckoutCompleted.
type GrantResult struct {
	Outcome     Outcome
	Entitlement *models.Entitlement
}

// Writer записывает доступ по завершённым оплатам. Повторная доставка
// одного события не создаёт второй записи.
type Writer struct {
	repo      WriterRepository
	cache     Cache
	publisher EventPublisher
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

// NewWriter создаёт Writer. cache, publisher и m могут быть nil.
func NewWriter(repo WriterRepository, cache Cache, publisher EventPublisher, m *metrics.Metrics, log *slog.Logger) *Writer {
	return &Writer{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// HandleCheckoutCompleted выдаёт доступ по данным завершённой сессии оплаты.
// Аккаунт берётся из metadata, при его отсутствии из client_reference_id.
// Доступ выдаётся только при payment_status paid или no_payment_required.
func (w *Writer) HandleCheckoutCompleted(ctx context.Context, c models.CheckoutCompletion) (GrantResult, error) {
	const op = "entitlement.HandleCheckoutCompleted"

	accountID := strings.TrimSpace(c.Metadata[models.MetadataAccountID])
	if accountID == "" {
		accountID = strings.TrimSpace(c.ClientReferenceID)
	}
	if accountID == "" {
		return GrantResult{}, fmt.Errorf("%s: %w: session %s has no account", op, models.ErrMalformedEvent, c.SessionID)
	}
	tag := c.Metadata[models.MetadataProductType]
	if strings.TrimSpace(tag) == "" {
		return GrantResult{}, fmt.Errorf("%s: %w: session %s has no product", op, models.ErrMalformedEvent, c.SessionID)
	}
	p, err := product.Parse(tag)
	if err != nil {
		return GrantResult{}, fmt.Errorf("%s: %w: %w", op, models.ErrMalformedEvent, err)
	}

	if !c.Settled() {
		w.log.Info("checkout session is not paid yet, entitlement deferred",
			slog.String("op", op),
			sl.Account(accountID),
			sl.Product(p.Tag()),
			slog.String("session_id", c.SessionID),
			slog.String("payment_status", c.PaymentStatus),
		)
		return GrantResult{Outcome: AwaitingPayment}, nil
	}

	return w.Grant(ctx, accountID, p, c.SessionID)
}

// Grant создаёт запись о доступе, если её ещё нет.
func (w *Writer) Grant(ctx context.Context, accountID string, p product.Product, sessionID string) (GrantResult, error) {
	const op = "entitlement.Grant"
	log := w.log.With(slog.String("op", op), sl.Account(accountID), sl.Product(p.Tag()))

	existing, found, err := w.repo.FindEntitlement(ctx, accountID, p.Tag())
	if err != nil {
		return GrantResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if found {
		log.Info("entitlement already exists", slog.String("session_id", sessionID))
		return GrantResult{Outcome: Duplicate, Entitlement: existing}, nil
	}

	e := models.Entitlement{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		ProductType: p.Tag(),
		CreatedAt:   w.now().UTC(),
	}
	if sessionID != "" {
		e.SessionID = &sessionID
	}

	if err := w.repo.CreateEntitlement(ctx, e); err != nil {
		if errors.Is(err, storage.ErrEntitlementExists) {
			log.Info("entitlement created concurrently", slog.String("session_id", sessionID))
			return GrantResult{Outcome: Duplicate}, nil
		}
		return GrantResult{}, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("entitlement granted", slog.String("entitlement_id", e.ID))

	w.afterGrant(ctx, log, e, p)
	return GrantResult{Outcome: Granted, Entitlement: &e}, nil
}

func (w *Writer) afterGrant(ctx context.Context, log *slog.Logger, e models.Entitlement, p product.Product) {
	w.metrics.EntitlementGranted(p.Kind().String())

	if w.cache != nil {
		if err := w.cache.Invalidate(ctx, cache.EntitlementsKey(e.AccountID)); err != nil {
			log.Warn("failed to invalidate entitlements cache", sl.Err(err))
		}
	}

	if w.publisher != nil {
		event := models.EntitlementGranted{
			EntitlementID: e.ID,
			AccountID:     e.AccountID,
			ProductType:   e.ProductType,
			GrantedAt:     e.CreatedAt,
		}
		if e.SessionID != nil {
			event.SessionID = *e.SessionID
		}
		if err := w.publisher.Publish(ctx, rabbitmq.RoutingKeyEntitlementGranted, event); err != nil {
			log.Warn("failed to publish entitlement granted event", sl.Err(err))
		}
	}
}
