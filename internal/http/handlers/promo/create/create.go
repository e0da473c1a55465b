// Package create реализует HTTP-обработчик создания промокода администратором.
package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/clearride/internal/http/response"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/promo"
)

type Service interface {
	Create(ctx context.Context, req models.DummyPromoCode) (*models.PromoCode, error)
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
// @Summary Создать промокод
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.DummyPromoCode true "Промокод"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/promo-codes [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.promo.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyPromoCode
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

	p, err := h.service.Create(r.Context(), req)
	switch {
	case errors.Is(err, promo.ErrInvalidPromo):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(err.Error()))
		return
	case errors.Is(err, promo.ErrPromoExists):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("promo code already exists"))
		return
	case err != nil:
		log.Error("failed to create promo code", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create promo code"))
		return
	}

	log.Info("promo code created", slog.String("code", p.Code))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(p))
}
