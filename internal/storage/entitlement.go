package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/worksmart-portal/internal/models"
)

// FindEntitlement ищет запись о владении продуктом
func (s *Storage) FindEntitlement(ctx context.Context, accountID, productType string) (*models.Entitlement, bool, error) {
	const op = "storage.FindEntitlement"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, product_type, session_id, created_at
			  FROM entitlements
			  WHERE account_id = $1 AND product_type = $2`
	var e models.Entitlement
	var sessionID sql.NullString
	err := s.DB.QueryRowContext(ctx, query, accountID, productType).
		Scan(&e.ID, &e.AccountID, &e.ProductType, &sessionID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if sessionID.Valid {
		e.SessionID = &sessionID.String
	}
	return &e, true, nil
}

// CreateEntitlement вставляет новую запись о владении продуктом.
// Нарушение уникальности (account_id, product_type) возвращается как ErrEntitlementExists.
func (s *Storage) CreateEntitlement(ctx context.Context, e models.Entitlement) error {
	const op = "storage.CreateEntitlement"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO entitlements (id, account_id, product_type, session_id, created_at)
			  VALUES ($1, $2, $3, $4, $5)`
	_, err := s.DB.ExecContext(ctx, query, e.ID, e.AccountID, e.ProductType, e.SessionID, e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, ErrEntitlementExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListEntitlements возвращает все записи аккаунта. Для аккаунта без покупок: пустой срез.
func (s *Storage) ListEntitlements(ctx context.Context, accountID string) ([]*models.Entitlement, error) {
	const op = "storage.ListEntitlements"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	// Политика строк читает app.account_id; set_config с is_local=true живёт до конца транзакции.
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err := tx.ExecContext(ctx, `SELECT set_config('app.account_id', $1, true)`, accountID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT id, account_id, product_type, session_id, created_at
			  FROM entitlements
			  WHERE account_id = $1
			  ORDER BY created_at`
	rows, err := tx.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Entitlement, 0)
	for rows.Next() {
		var e models.Entitlement
		var sessionID sql.NullString
		if err := rows.Scan(&e.ID, &e.AccountID, &e.ProductType, &sessionID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if sessionID.Valid {
			e.SessionID = &sessionID.String
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
