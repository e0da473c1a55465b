// Package validate реализует HTTP-обработчик проверки промокода для заказа.
package validate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/clearride/internal/http/middlewarectx"
	"github.com/magabrotheeeer/clearride/internal/http/response"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/discount"
)

// Request параметры заказа, к которому применяется промокод.
type Request struct {
	Code        string             `json:"code" validate:"required,max=32"`
	OrderValue  decimal.Decimal    `json:"order_value"`
	ServiceType models.ServiceType `json:"service_type" validate:"required"`
}

type Service interface {
	Validate(ctx context.Context, req models.PromoValidationRequest) (models.PromoValidation, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Проверить промокод
// @Description Возвращает скидку или причину отказа. Отказ не является ошибкой запроса.
// @Tags Promo
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Промокод и заказ"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse
// @Router /promo-codes/validate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.promo.validate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.AccountIDFrom(r.Context())
	if !ok {
		log.Error("account id not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.Validate(r.Context(), models.PromoValidationRequest{
		Code:        req.Code,
		OrderValue:  req.OrderValue,
		ServiceType: req.ServiceType,
		AccountID:   accountID,
	})
	if err != nil {
		if errors.Is(err, discount.ErrInvalidOrderValue) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("order value must not be negative"))
			return
		}
		log.Error("failed to validate promo code", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not validate promo code"))
		return
	}

	render.JSON(w, r, response.OKWithData(res))
}
