package models

import "errors"

var (
	// ErrUnauthenticated отсутствует идентификатор аккаунта там, где он обязателен.
	ErrUnauthenticated = errors.New("unauthenticated: please sign in")
	// ErrInvalidProduct селектор не соответствует ни одному известному продукту.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrMalformedEvent в событии нет метаданных аккаунта или продукта.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrSignatureVerificationFailed подпись вебхука отсутствует или неверна.
	ErrSignatureVerificationFailed = errors.New("signature verification failed")
	// ErrConfigurationMissing не задан секрет подписи вебхука.
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrCheckoutCreationFailed провайдер не смог создать сессию оплаты.
	ErrCheckoutCreationFailed = errors.New("checkout creation failed")
	// ErrDownstreamProvider сетевая ошибка или ошибка стороннего API.
	ErrDownstreamProvider = errors.New("downstream provider error")
)

// ProviderError несёт сообщение стороннего провайдера, пригодное для ответа клиенту.
type ProviderError struct {
	Kind    error
	Message string
}

func (e *ProviderError) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Kind
}
