// Package reconcile закрывает окно между возвратом клиента со страницы оплаты
// и приходом вебхука: после паузы Grace права перечитываются один раз.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/worksmart-portal/internal/lib/sl"
	"github.com/magabrotheeeer/worksmart-portal/internal/metrics"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
	"github.com/magabrotheeeer/worksmart-portal/internal/product"
	"github.com/magabrotheeeer/worksmart-portal/internal/services/entitlement"
)

// DefaultGrace пауза перед перечитыванием по умолчанию.
const DefaultGrace = 2 * time.Second

// State шаг сверки.
type State string

const (
	StatePending    State = "pending"
	StateRefreshing State = "refreshing"
	StateSettled    State = "settled"
)

// Refresher перечитывает права аккаунта в обход кэша.
type Refresher interface {
	Refresh(ctx context.Context, accountID string) ([]*models.Entitlement, error)
}

// Result итог сверки. Err заполняется при ошибке чтения, но наружу не возвращается.
type Result struct {
	State    State
	Product  string
	Visible  bool
	Canceled bool
	Err      error
}

// Poller выполняет одну отложенную проверку без повторов.
type Poller struct {
	Grace time.Duration
	// OnTransition вызывается при каждой смене состояния, если задан.
	OnTransition func(State)

	reader  Refresher
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New создаёт Poller. Неположительный grace заменяется на DefaultGrace.
func New(reader Refresher, grace time.Duration, m *metrics.Metrics, log *slog.Logger) *Poller {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Poller{
		Grace:   grace,
		reader:  reader,
		metrics: m,
		log:     log,
	}
}

// Run ждёт Grace, перечитывает права и сообщает, видна ли покупка expected.
func (p *Poller) Run(ctx context.Context, accountID string, expected product.Product) Result {
	const op = "reconcile.Run"
	log := p.log.With(slog.String("op", op), sl.Account(accountID), sl.Product(expected.Tag()))

	res := Result{State: StatePending, Product: expected.Tag()}
	p.transition(StatePending)

	timer := time.NewTimer(p.Grace)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		res.State = StateSettled
		res.Canceled = true
		p.transition(StateSettled)
		p.metrics.Reconcile("canceled")
		log.Debug("reconcile canceled during grace")
		return res
	case <-timer.C:
	}

	res.State = StateRefreshing
	p.transition(StateRefreshing)

	list, err := p.reader.Refresh(ctx, accountID)
	res.State = StateSettled
	if err != nil {
		res.Err = err
		p.transition(StateSettled)
		p.metrics.Reconcile("error")
		log.Warn("failed to refresh entitlements", sl.Err(err))
		return res
	}

	res.Visible = entitlement.Contains(list, expected)
	p.transition(StateSettled)
	if res.Visible {
		p.metrics.Reconcile("visible")
	} else {
		p.metrics.Reconcile("not_visible")
	}
	log.Info("reconcile settled", slog.Bool("visible", res.Visible))
	return res
}

func (p *Poller) transition(s State) {
	if p.OnTransition != nil {
		p.OnTransition(s)
	}
}
