// Package entitlementlist отдаёт права доступа текущего аккаунта.
package entitlementlist

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/worksmart-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/worksmart-portal/internal/http/response"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/sl"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
)

// Service читает права аккаунта.
type Service interface {
	List(ctx context.Context, accountID string) ([]*models.Entitlement, error)
}

// Handler обрабатывает GET /api/v1/entitlements.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Список прав доступа
// @Description Возвращает все купленные продукты текущего аккаунта
// @Tags Entitlements
// @Produce  json
// @Success 200 {object} response.Response{data=[]models.Entitlement}
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка"
// @Router /entitlements [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.AccountFromContext(r.Context())
	if !ok {
		log.Info("account id not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(models.ErrUnauthenticated.Error()))
		return
	}

	list, err := h.service.List(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, models.ErrUnauthenticated) {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error(models.ErrUnauthenticated.Error()))
			return
		}
		log.Error("failed to list entitlements", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Debug("entitlements listed", slog.Int("count", len(list)))
	render.JSON(w, r, response.StatusOKWithData(list))
}
