package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/worksmart-portal/internal/cache"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/sl"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
	"github.com/magabrotheeeer/worksmart-portal/internal/product"
)

// Reader отдаёт права доступа аккаунта. Чтение идёт через кэш,
// ошибки кэша только логируются.
type Reader struct {
	repo  ReaderRepository
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewReader создаёт Reader. cache может быть nil.
func NewReader(repo ReaderRepository, cache Cache, ttl time.Duration, log *slog.Logger) *Reader {
	return &Reader{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

// List возвращает все записи аккаунта. Если записей нет, возвращается пустой срез.
func (r *Reader) List(ctx context.Context, accountID string) ([]*models.Entitlement, error) {
	const op = "entitlement.List"
	if accountID == "" {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUnauthenticated)
	}
	log := r.log.With(slog.String("op", op), sl.Account(accountID))
	key := cache.EntitlementsKey(accountID)

	if r.cache != nil {
		var cached []*models.Entitlement
		found, err := r.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn("failed to read entitlements cache", sl.Err(err))
		}
		if found && err == nil {
			if cached == nil {
				cached = []*models.Entitlement{}
			}
			return cached, nil
		}
	}

	return r.load(ctx, log, accountID)
}

// Refresh сбрасывает кэш аккаунта и перечитывает записи из хранилища.
func (r *Reader) Refresh(ctx context.Context, accountID string) ([]*models.Entitlement, error) {
	const op = "entitlement.Refresh"
	if accountID == "" {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUnauthenticated)
	}
	log := r.log.With(slog.String("op", op), sl.Account(accountID))

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx, cache.EntitlementsKey(accountID)); err != nil {
			log.Warn("failed to invalidate entitlements cache", sl.Err(err))
		}
	}
	return r.load(ctx, log, accountID)
}

func (r *Reader) load(ctx context.Context, log *slog.Logger, accountID string) ([]*models.Entitlement, error) {
	key := cache.EntitlementsKey(accountID)

	// Поколение читается до запроса в хранилище: список, загруженный до выдачи доступа,
	// не попадёт в кэш после её Invalidate.
	var version int64
	cacheable := false
	if r.cache != nil {
		v, err := r.cache.Version(ctx, key)
		if err != nil {
			log.Warn("failed to read entitlements cache version", sl.Err(err))
		} else {
			version, cacheable = v, true
		}
	}

	list, err := r.repo.ListEntitlements(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("entitlement.load: %w", err)
	}
	if list == nil {
		list = []*models.Entitlement{}
	}
	if cacheable {
		stored, err := r.cache.SetIfVersion(ctx, key, version, list, r.ttl)
		if err != nil {
			log.Warn("failed to cache entitlements", sl.Err(err))
		} else if !stored {
			log.Debug("entitlements changed while loading, cache not updated")
		}
	}
	return list, nil
}

// Owns сообщает, владеет ли аккаунт продуктом.
func (r *Reader) Owns(ctx context.Context, accountID string, p product.Product) (bool, error) {
	return r.OwnsAll(ctx, accountID, p)
}

// OwnsAll сообщает, владеет ли аккаунт всеми перечисленными продуктами.
func (r *Reader) OwnsAll(ctx context.Context, accountID string, products ...product.Product) (bool, error) {
	list, err := r.List(ctx, accountID)
	if err != nil {
		return false, err
	}
	return Contains(list, products...), nil
}

// Contains проверяет, что в списке есть записи для всех продуктов.
func Contains(list []*models.Entitlement, products ...product.Product) bool {
	owned := make(map[string]struct{}, len(list))
	for _, e := range list {
		owned[e.ProductType] = struct{}{}
	}
	for _, p := range products {
		if _, ok := owned[p.Tag()]; !ok {
			return false
		}
	}
	return true
}
