// Package models содержит доменные модели портала: запись о владении продуктом
// (entitlement), данные завершённой оплаты и сообщения для брокера.
package models

import "time"

// Entitlement представляет бессрочный доступ аккаунта к продукту.
// Пара (AccountID, ProductType) уникальна.
type Entitlement struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	ProductType string    `json:"productType"`
	SessionID   *string   `json:"sessionId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CheckoutCompletion содержит данные проверенного события завершения оплаты.
type CheckoutCompletion struct {
	SessionID         string
	ClientReferenceID string
	PaymentStatus     string
	Metadata          map[string]string
}

// Статусы оплаты сессии, при которых выдаётся доступ.
// Остальные (unpaid при отложенных способах оплаты) ждут async_payment_succeeded.
const (
	PaymentStatusPaid              = "paid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// Settled сообщает, что деньги получены или оплата не требуется.
func (c CheckoutCompletion) Settled() bool {
	return c.PaymentStatus == PaymentStatusPaid || c.PaymentStatus == PaymentStatusNoPaymentRequired
}

// Ключи метаданных, которые инициатор оплаты прикрепляет к сессии провайдера.
const (
	MetadataAccountID   = "account_id"
	MetadataProductType = "product_type"
)

// EntitlementGranted сообщение о новой выдаче доступа, публикуется в брокер.
type EntitlementGranted struct {
	EntitlementID string    `json:"entitlement_id"`
	AccountID     string    `json:"account_id"`
	ProductType   string    `json:"product_type"`
	SessionID     string    `json:"session_id,omitempty"`
	GrantedAt     time.Time `json:"granted_at"`
}
