// Package paymentwebhook принимает вебхуки Stripe.
//
// Подпись проверяется над сырым телом запроса до любой обработки.
// Состояние меняют только checkout.session.completed с оплаченной сессией
// и checkout.session.async_payment_succeeded.
package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/worksmart-portal/internal/http/response"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/sl"
	"github.com/magabrotheeeer/worksmart-portal/internal/metrics"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
	"github.com/magabrotheeeer/worksmart-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/worksmart-portal/internal/services/entitlement"
)

const bodyLimit = 1 << 20

// Writer выдаёт доступ по завершённой оплате.
type Writer interface {
	HandleCheckoutCompleted(ctx context.Context, c models.CheckoutCompletion) (entitlement.GrantResult, error)
}

// Ack ответ, по которому провайдер прекращает повторную доставку.
type Ack struct {
	Received bool `json:"received" example:"true"`
}

// Handler обрабатывает POST /api/v1/payments/webhook.
type Handler struct {
	log     *slog.Logger
	writer  Writer
	secret  string
	metrics *metrics.Metrics
}

// New создает новый экземпляр Handler. Пустой secret означает, что все события отклоняются.
func New(log *slog.Logger, writer Writer, secret string, m *metrics.Metrics) *Handler {
	return &Handler{
		log:     log,
		writer:  writer,
		secret:  secret,
		metrics: m,
	}
}

// ServeHTTP godoc
// @Summary Вебхук Stripe
// @Description Принимает подписанные события Stripe. checkout.session.completed с payment_status paid или no_payment_required и checkout.session.async_payment_succeeded выдают доступ, остальные события подтверждаются без обработки
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param Stripe-Signature header string true "Подпись Stripe"
// @Success 200 {object} Ack
// @Failure 400 {object} response.ErrorResponse "Неверная подпись или неполное событие"
// @Failure 500 {object} response.ErrorResponse "Ошибка записи, провайдер повторит доставку"
// @Failure 503 {object} response.ErrorResponse "Секрет вебхука не настроен"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if h.secret == "" {
		log.Error("webhook secret is not configured, rejecting event")
		h.metrics.WebhookEvent("unknown", metrics.OutcomeRejected)
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error(models.ErrConfigurationMissing.Error()))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	event, err := paymentprovider.VerifyEvent(payload, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		log.Warn("webhook signature verification failed", sl.Err(err))
		h.metrics.WebhookEvent("unknown", metrics.OutcomeRejected)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(models.ErrSignatureVerificationFailed.Error()))
		return
	}
	log = log.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))

	if !event.IsCheckoutCompletion() {
		log.Info("ignored webhook event")
		h.metrics.WebhookEvent(event.Type, metrics.OutcomeIgnored)
		render.JSON(w, r, Ack{Received: true})
		return
	}

	completion, err := event.CheckoutCompletion()
	if err != nil {
		h.fail(w, r, log, event.Type, err)
		return
	}
	res, err := h.writer.HandleCheckoutCompleted(r.Context(), *completion)
	if err != nil {
		h.fail(w, r, log, event.Type, err)
		return
	}

	log.Info("webhook processed", slog.String("outcome", res.Outcome.String()))
	h.metrics.WebhookEvent(event.Type, res.Outcome.String())
	render.JSON(w, r, Ack{Received: true})
}

// fail отвечает 400 на неполное событие и 500 на ошибку записи, чтобы провайдер повторил доставку.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, eventType string, err error) {
	if errors.Is(err, models.ErrMalformedEvent) {
		log.Warn("malformed checkout event", sl.Err(err))
		h.metrics.WebhookEvent(eventType, metrics.OutcomeRejected)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(models.ErrMalformedEvent.Error()))
		return
	}

	log.Error("failed to write entitlement", sl.Err(err))
	h.metrics.WebhookEvent(eventType, metrics.OutcomeFailed)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, response.Error("failed to record purchase"))
}
