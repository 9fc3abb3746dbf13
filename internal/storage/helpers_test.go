package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/worksmart-portal/internal/migrations"
)

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// CountEntitlements возвращает количество записей для пары (аккаунт, продукт)
func (v *TestVerification) CountEntitlements(t *testing.T, accountID, productType string) int {
	var count int
	err := v.storage.DB.QueryRow(
		"SELECT COUNT(*) FROM entitlements WHERE account_id = $1 AND product_type = $2",
		accountID, productType).Scan(&count)
	require.NoError(t, err)
	return count
}

// testPostgres запущенный контейнер PostgreSQL с применёнными миграциями
type testPostgres struct {
	container *postgres.PostgresContainer
	host      string
	port      string
}

func (p *testPostgres) connString(user, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/testdb?sslmode=disable", user, password, p.host, p.port)
}

func startTestPostgres(t *testing.T) *testPostgres {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err, "Failed to get port")

	return &testPostgres{container: pgContainer, host: host, port: port.Port()}
}

// connectWithRetry пробует подключиться несколько раз с ретраями
func connectWithRetry(t *testing.T, connStr string) *Storage {
	var (
		storage *Storage
		err     error
	)
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	require.NoError(t, err, "Failed to create storage after retries")
	return storage
}

// setupTestDatabase создает тестовую БД с контейнером PostgreSQL и применяет миграции.
// Подключение идёт под владельцем таблицы, на которого политика строк не действует.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	owner, _, cleanup := setup(t, false)
	return owner, cleanup
}

// setupTestDatabaseWithReader дополнительно подключается под ролью portal_reader,
// как пул чтения портала.
func setupTestDatabaseWithReader(t *testing.T) (*Storage, *Storage, func()) {
	return setup(t, true)
}

func setup(t *testing.T, withReader bool) (*Storage, *Storage, func()) {
	pg := startTestPostgres(t)
	owner := connectWithRetry(t, pg.connString("testuser", "testpass"))

	migrationsPath, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(owner.DB, migrationsPath), "Failed to apply migrations")

	var reader *Storage
	if withReader {
		_, err = owner.DB.Exec(`ALTER ROLE portal_reader WITH LOGIN PASSWORD 'readerpass'`)
		require.NoError(t, err)
		reader = connectWithRetry(t, pg.connString("portal_reader", "readerpass"))
	}

	cleanup := func() {
		for _, s := range []*Storage{reader, owner} {
			if s != nil && s.DB != nil {
				_ = s.DB.Close()
			}
		}
		_ = pg.container.Terminate(context.Background())
	}

	return owner, reader, cleanup
}
