package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingSubject возвращается, если в токене не указан аккаунт.
	ErrMissingSubject = errors.New("token has no subject")
	// ErrEmptySecret возвращается, если секрет подписи не задан.
	ErrEmptySecret = errors.New("jwt secret key is not set")
)

// AccountClaims описывает данные, которые провайдер идентификации кладёт в токен.
type AccountClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AccountID возвращает идентификатор аккаунта из claim "sub".
func (c *AccountClaims) AccountID() string {
	return c.Subject
}

// GenerateToken создает подписанный HS256 токен для аккаунта.
// Используется в тестах и локальной разработке.
func (j *MakerImpl) GenerateToken(accountID, email string) (string, error) {
	if j.secretKey == "" {
		return "", fmt.Errorf("jwt.GenerateToken: %w", ErrEmptySecret)
	}
	now := time.Now()
	claims := AccountClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken проверяет подпись и срок действия токена и возвращает его claims.
func (j *MakerImpl) ParseToken(tokenStr string) (*AccountClaims, error) {
	const op = "jwt.ParseToken"
	if j.secretKey == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}
	token, err := jwt.ParseWithClaims(tokenStr, &AccountClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*AccountClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingSubject)
	}
	return claims, nil
}
