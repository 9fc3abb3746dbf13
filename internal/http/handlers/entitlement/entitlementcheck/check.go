// Package entitlementcheck отвечает, владеет ли аккаунт набором продуктов.
package entitlementcheck

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/worksmart-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/worksmart-portal/internal/http/response"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/sl"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
	"github.com/magabrotheeeer/worksmart-portal/internal/product"
)

// Service проверяет владение продуктами.
type Service interface {
	OwnsAll(ctx context.Context, accountID string, products ...product.Product) (bool, error)
}

// Response результат проверки.
type Response struct {
	Owned bool `json:"owned" example:"true"`
}

// Handler обрабатывает GET /api/v1/entitlements/check.
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
// @Summary Проверка доступа
// @Description Возвращает owned=true, если аккаунт владеет всеми переданными продуктами. Ошибка чтения трактуется как отсутствие доступа
// @Tags Entitlements
// @Produce  json
// @Param product query []string true "Теги продуктов" collectionFormat(multi)
// @Success 200 {object} Response
// @Failure 400 {object} response.ErrorResponse "Неизвестный продукт"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /entitlements/check [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.check"
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

	tags := r.URL.Query()["product"]
	if len(tags) == 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(models.ErrInvalidProduct.Error()))
		return
	}
	products := make([]product.Product, 0, len(tags))
	for _, tag := range tags {
		p, err := product.Parse(tag)
		if err != nil {
			log.Info("invalid product in query", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(models.ErrInvalidProduct.Error()))
			return
		}
		products = append(products, p)
	}

	owned, err := h.service.OwnsAll(r.Context(), accountID, products...)
	if err != nil {
		log.Warn("failed to check entitlements, treating as not owned", sl.Err(err))
		owned = false
	}

	render.JSON(w, r, Response{Owned: owned})
}
