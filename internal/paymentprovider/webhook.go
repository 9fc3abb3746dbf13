package paymentprovider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/magabrotheeeer/worksmart-portal/internal/models"
)

// События, которые могут выдать доступ. completed с payment_status=unpaid
// доступа не даёт, его выдаёт последующее async_payment_succeeded.
const (
	EventCheckoutSessionCompleted             = string(stripe.EventTypeCheckoutSessionCompleted)
	EventCheckoutSessionAsyncPaymentSucceeded = string(stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded)
)

// Event проверенное событие провайдера.
type Event struct {
	ID   string
	Type string
	raw  json.RawMessage
}

type checkoutSessionObject struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	Metadata          map[string]string `json:"metadata"`
}

// VerifyEvent проверяет подпись Stripe-Signature над сырым телом запроса
// и возвращает событие. Допуск по времени подписи стандартный (300 с).
func VerifyEvent(payload []byte, sigHeader, secret string) (*Event, error) {
	const op = "paymentprovider.VerifyEvent"

	if secret == "" {
		return nil, fmt.Errorf("%s: %w: webhook secret is not set", op, models.ErrConfigurationMissing)
	}
	if strings.TrimSpace(sigHeader) == "" {
		return nil, fmt.Errorf("%s: %w: missing signature header", op, models.ErrSignatureVerificationFailed)
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, models.ErrSignatureVerificationFailed, err)
	}

	ev := &Event{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil {
		ev.raw = event.Data.Raw
	}
	return ev, nil
}

// IsCheckoutCompletion сообщает, что событие несёт завершённую сессию оплаты.
func (e *Event) IsCheckoutCompletion() bool {
	return e.Type == EventCheckoutSessionCompleted || e.Type == EventCheckoutSessionAsyncPaymentSucceeded
}

// CheckoutCompletion извлекает данные сессии из событий checkout.session.completed
// и checkout.session.async_payment_succeeded.
func (e *Event) CheckoutCompletion() (*models.CheckoutCompletion, error) {
	const op = "paymentprovider.CheckoutCompletion"

	if !e.IsCheckoutCompletion() {
		return nil, fmt.Errorf("%s: %w: unexpected event type %s", op, models.ErrMalformedEvent, e.Type)
	}
	if len(e.raw) == 0 {
		return nil, fmt.Errorf("%s: %w: empty event object", op, models.ErrMalformedEvent)
	}
	var obj checkoutSessionObject
	if err := json.Unmarshal(e.raw, &obj); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, models.ErrMalformedEvent, err)
	}
	return &models.CheckoutCompletion{
		SessionID:         obj.ID,
		ClientReferenceID: obj.ClientReferenceID,
		PaymentStatus:     obj.PaymentStatus,
		Metadata:          obj.Metadata,
	}, nil
}
