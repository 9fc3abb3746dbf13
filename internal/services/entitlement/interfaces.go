// Package entitlement содержит запись и чтение прав доступа к продуктам.
//
// Writer превращает проверенное событие оплаты в запись о доступе,
// Reader отдаёт записи только для переданного аккаунта.
package entitlement

import (
	"context"
	"time"

	"github.com/magabrotheeeer/worksmart-portal/internal/models"
)

// WriterRepository хранилище с сервисными правами на запись.
type WriterRepository interface {
	FindEntitlement(ctx context.Context, accountID, productType string) (*models.Entitlement, bool, error)
	CreateEntitlement(ctx context.Context, e models.Entitlement) error
}

// ReaderRepository хранилище, читающее записи одного аккаунта.
type ReaderRepository interface {
	ListEntitlements(ctx context.Context, accountID string) ([]*models.Entitlement, error)
}

// Cache описывает кэш списков прав. Invalidate увеличивает поколение ключа,
// а SetIfVersion не перезаписывает ключ, поколение которого изменилось.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Version(ctx context.Context, key string) (int64, error)
	SetIfVersion(ctx context.Context, key string, version int64, value any, expiration time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// EventPublisher публикует события в брокер.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}
