// Package middlewarectx содержит HTTP middleware портала.
//
// JWTMiddleware проверяет токен провайдера идентификации в заголовке Authorization
// и кладёт идентификатор аккаунта в контекст запроса. Запросы без валидного
// токена получают 401 и до обработчиков не доходят.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/worksmart-portal/internal/http/response"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/sl"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// AccountID ключ идентификатора аккаунта в контексте
	AccountID Key = "account_id"
	// Email ключ email пользователя в контексте
	Email Key = "email"
)

// TokenParser описывает проверку токена.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.AccountClaims, error)
}

// AccountFromContext достаёт идентификатор аккаунта, положенный JWTMiddleware.
func AccountFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(AccountID).(string)
	return id, ok && id != ""
}

// WithAccount возвращает контекст с идентификатором аккаунта.
func WithAccount(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, AccountID, accountID)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Info("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(models.ErrUnauthenticated.Error()))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := parser.ParseToken(tokenStr)
			if err != nil {
				log.Info("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error(models.ErrUnauthenticated.Error()))
				return
			}
			ctx := WithAccount(r.Context(), claims.AccountID())
			if claims.Email != "" {
				ctx = context.WithValue(ctx, Email, claims.Email)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
