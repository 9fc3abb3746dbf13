package entitlement

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/worksmart-portal/internal/models"
	"github.com/magabrotheeeer/worksmart-portal/internal/storage"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

// memStore повторяет поведение таблицы entitlements с уникальной парой (аккаунт, продукт).
type memStore struct {
	mu   sync.Mutex
	rows []models.Entitlement
	// findMiss заставляет FindEntitlement не видеть записи, как при гонке двух доставок
	findMiss bool
	// afterList, если задан, вызывается после снимка строк в ListEntitlements
	afterList func()
}

func (s *memStore) FindEntitlement(_ context.Context, accountID, productType string) (*models.Entitlement, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findMiss {
		return nil, false, nil
	}
	for i := range s.rows {
		if s.rows[i].AccountID == accountID && s.rows[i].ProductType == productType {
			e := s.rows[i]
			return &e, true, nil
		}
	}
	return nil, false, nil
}

func (s *memStore) CreateEntitlement(_ context.Context, e models.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.AccountID == e.AccountID && row.ProductType == e.ProductType {
			return fmt.Errorf("storage.CreateEntitlement: %w", storage.ErrEntitlementExists)
		}
	}
	s.rows = append(s.rows, e)
	return nil
}

func (s *memStore) ListEntitlements(_ context.Context, accountID string) ([]*models.Entitlement, error) {
	s.mu.Lock()
	res := []*models.Entitlement{}
	for i := range s.rows {
		if s.rows[i].AccountID == accountID {
			e := s.rows[i]
			res = append(res, &e)
		}
	}
	hook := s.afterList
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return res, nil
}

func (s *memStore) count(accountID, productType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.AccountID == accountID && row.ProductType == productType {
			n++
		}
	}
	return n
}

type RepoMock struct{ mock.Mock }

func (m *RepoMock) FindEntitlement(ctx context.Context, accountID, productType string) (*models.Entitlement, bool, error) {
	args := m.Called(ctx, accountID, productType)
	e, _ := args.Get(0).(*models.Entitlement)
	return e, args.Bool(1), args.Error(2)
}

func (m *RepoMock) CreateEntitlement(ctx context.Context, e models.Entitlement) error {
	return m.Called(ctx, e).Error(0)
}

func (m *RepoMock) ListEntitlements(ctx context.Context, accountID string) ([]*models.Entitlement, error) {
	args := m.Called(ctx, accountID)
	list, _ := args.Get(0).([]*models.Entitlement)
	return list, args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Version(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *CacheMock) SetIfVersion(ctx context.Context, key string, version int64, value any, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, version, value, expiration)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Invalidate(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}
