// Package checkoutreturn обрабатывает возврат клиента со страницы оплаты.
package checkoutreturn

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
	"github.com/magabrotheeeer/worksmart-portal/internal/product"
	"github.com/magabrotheeeer/worksmart-portal/internal/reconcile"
)

// Reconciler ждёт вебхук и один раз перечитывает права.
type Reconciler interface {
	Run(ctx context.Context, accountID string, expected product.Product) reconcile.Result
}

// Response состояние сверки после возврата.
type Response struct {
	State   string `json:"state" example:"settled"`
	Product string `json:"product" example:"tool:write-it-better"`
	Visible bool   `json:"visible" example:"true"`
}

// Handler обрабатывает GET /api/v1/checkout/return.
type Handler struct {
	log        *slog.Logger
	reconciler Reconciler
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, reconciler Reconciler) *Handler {
	return &Handler{
		log:        log,
		reconciler: reconciler,
	}
}

// ServeHTTP godoc
// @Summary Возврат со страницы оплаты
// @Description Ждёт короткую паузу и один раз перечитывает права аккаунта. visible=false не означает ошибку: вебхук мог ещё не прийти
// @Tags Checkout
// @Produce  json
// @Param product query string true "Тег купленного продукта"
// @Success 200 {object} Response
// @Failure 400 {object} response.ErrorResponse "Неизвестный продукт"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /checkout/return [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.return"
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

	expected, err := product.Parse(r.URL.Query().Get("product"))
	if err != nil {
		log.Info("invalid product in return url", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(models.ErrInvalidProduct.Error()))
		return
	}

	res := h.reconciler.Run(r.Context(), accountID, expected)
	if res.Canceled {
		log.Info("client left before reconcile finished")
		return
	}
	if res.Err != nil && errors.Is(res.Err, models.ErrUnauthenticated) {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error(models.ErrUnauthenticated.Error()))
		return
	}

	render.JSON(w, r, Response{
		State:   string(res.State),
		Product: res.Product,
		Visible: res.Visible,
	})
}
