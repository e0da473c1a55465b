// Package update реализует HTTP-обработчик изменения промокода администратором.
package update

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/clearride/internal/http/response"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/promo"
)

type Service interface {
	Update(ctx context.Context, code string, req models.DummyPromoCode) (*models.PromoCode, error)
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
// @Summary Изменить промокод
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param code path string true "Код"
// @Param request body models.DummyPromoCode true "Новые параметры"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/promo-codes/{code} [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.promo.update"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	code := models.NormalizePromoCode(chi.URLParam(r, "code"))
	if code == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("code is required"))
		return
	}

	var req models.DummyPromoCode
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	// код берётся из пути
	req.Code = code
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	p, err := h.service.Update(r.Context(), code, req)
	switch {
	case errors.Is(err, promo.ErrInvalidPromo):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(err.Error()))
		return
	case errors.Is(err, promo.ErrPromoNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("promo code not found"))
		return
	case err != nil:
		log.Error("failed to update promo code", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update promo code"))
		return
	}

	log.Info("promo code updated", slog.String("code", code))
	render.JSON(w, r, response.OKWithData(p))
}
