// Package checkoutcreate обрабатывает запуск оплаты продукта.
package checkoutcreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/worksmart-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/worksmart-portal/internal/http/response"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/sl"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
	"github.com/magabrotheeeer/worksmart-portal/internal/product"
)

// Request тело запроса на оплату.
type Request struct {
	ProductType string `json:"productType" validate:"required" example:"tool"`
	ToolName    string `json:"toolName,omitempty" validate:"max=120" example:"Write It Better"`
	ToolSlug    string `json:"toolSlug,omitempty" validate:"max=64" example:"write-it-better"`
}

// Response адрес страницы оплаты.
type Response struct {
	URL string `json:"url" example:"https://checkout.stripe.com/c/pay/cs_test_a1"`
}

// Service создаёт сессию оплаты.
type Service interface {
	CreateSession(ctx context.Context, accountID string, sel product.Selector) (string, error)
}

// Handler обрабатывает POST /api/v1/checkout.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Начать оплату
// @Description Создаёт сессию оплаты Stripe для курса или инструмента и возвращает её адрес
// @Tags Checkout
// @Accept  json
// @Produce  json
// @Param request body Request true "Выбранный продукт"
// @Success 200 {object} Response
// @Failure 400 {object} response.ErrorResponse "Неизвестный продукт или некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 502 {object} response.ErrorResponse "Ошибка платёжного провайдера"
// @Router /checkout [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.create"
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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	url, err := h.service.CreateSession(r.Context(), accountID, product.Selector{
		ProductType: req.ProductType,
		ToolName:    req.ToolName,
		ToolSlug:    req.ToolSlug,
	})
	if err != nil {
		var providerErr *models.ProviderError
		switch {
		case errors.Is(err, models.ErrUnauthenticated):
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error(models.ErrUnauthenticated.Error()))
		case errors.Is(err, models.ErrInvalidProduct):
			log.Info("invalid product", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(models.ErrInvalidProduct.Error()))
		case errors.Is(err, models.ErrDownstreamProvider):
			log.Error("payment provider unreachable", sl.Err(err))
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, response.Error("payment provider unavailable"))
		case errors.As(err, &providerErr):
			log.Error("checkout provider failed", sl.Err(err))
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, response.Error(providerErr.Error()))
		default:
			log.Error("failed to create checkout session", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	render.JSON(w, r, Response{URL: url})
}
