// Package checkout реализует HTTP-обработчик оформления заказа и создания сессии оплаты.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/clearride/internal/http/middlewarectx"
	"github.com/magabrotheeeer/clearride/internal/http/response"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/payment"
)

type Service interface {
	Checkout(ctx context.Context, accountID string, req models.DummyCheckout) (*models.CheckoutResult, error)
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
// @Summary Оформить заказ
// @Description Применяет промокод, создаёт платёж и возвращает ссылку на оплату. Бесплатный заказ подтверждается сразу.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.DummyCheckout true "Продукт, количество и промокод"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.Response "Промокод не принят или неизвестный продукт"
// @Failure 500 {object} response.ErrorResponse
// @Router /payments/checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.checkout"

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

	var req models.DummyCheckout
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

	res, err := h.service.Checkout(r.Context(), accountID, req)
	switch {
	case errors.Is(err, payment.ErrUnknownProduct):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("unknown product"))
		return
	case errors.Is(err, payment.ErrInvalidQuantity):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid quantity"))
		return
	case errors.Is(err, payment.ErrAccountNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("account not found"))
		return
	case err != nil:
		log.Error("failed to checkout", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not start payment"))
		return
	}

	if res.Rejection != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ErrorWithData(res.Rejection.Message, res.Rejection))
		return
	}

	log.Info("checkout created",
		slog.String("payment_id", res.Payment.ID),
		slog.String("status", string(res.Payment.Status)),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(res))
}
