package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_ReaderRole_SeesOnlyOwnRows(t *testing.T) {
	owner, reader, cleanup := setupTestDatabaseWithReader(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, owner.CreateEntitlement(ctx, newEntitlement("a", "wealth-course", nil)))
	require.NoError(t, owner.CreateEntitlement(ctx, newEntitlement("a", "tool:focus", nil)))
	require.NoError(t, owner.CreateEntitlement(ctx, newEntitlement("b", "wealth-course", nil)))

	list, err := reader.ListEntitlements(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, e := range list {
		assert.Equal(t, "a", e.AccountID)
	}

	list, err = reader.ListEntitlements(ctx, "b")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].AccountID)
}

func TestStorage_ReaderRole_PolicyWithoutWhere(t *testing.T) {
	owner, reader, cleanup := setupTestDatabaseWithReader(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, owner.CreateEntitlement(ctx, newEntitlement("a", "wealth-course", nil)))
	require.NoError(t, owner.CreateEntitlement(ctx, newEntitlement("b", "wealth-course", nil)))
	require.NoError(t, owner.CreateEntitlement(ctx, newEntitlement("b", "productivity-course", nil)))

	tx, err := reader.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() {
		_ = tx.Rollback()
	}()
	_, err = tx.ExecContext(ctx, `SELECT set_config('app.account_id', $1, true)`, "a")
	require.NoError(t, err)

	rows, err := tx.QueryContext(ctx, `SELECT account_id FROM entitlements`)
	require.NoError(t, err)
	var seen []string
	for rows.Next() {
		var accountID string
		require.NoError(t, rows.Scan(&accountID))
		seen = append(seen, accountID)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []string{"a"}, seen)
	require.NoError(t, tx.Rollback())

	// Без app.account_id политика не пропускает ни одной строки
	var count int
	require.NoError(t, reader.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM entitlements`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestStorage_ReaderRole_CannotWrite(t *testing.T) {
	owner, reader, cleanup := setupTestDatabaseWithReader(t)
	defer cleanup()
	ctx := context.Background()

	err := reader.CreateEntitlement(ctx, newEntitlement("a", "wealth-course", nil))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEntitlementExists)

	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, pgerrcode.InsufficientPrivilege, pgErr.Code)

	assert.Equal(t, 0, NewTestVerification(owner).CountEntitlements(t, "a", "wealth-course"))
}
