// Package remove реализует HTTP-обработчик удаления промокода.
// Промокод, который уже применялся, удалить нельзя.
package remove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/clearride/internal/http/response"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/promo"
)

type Service interface {
	Remove(ctx context.Context, code string) error
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Удалить промокод
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Param code path string true "Код"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Промокод уже применялся"
// @Router /admin/promo-codes/{code} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.promo.remove"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	code := models.NormalizePromoCode(chi.URLParam(r, "code"))
	err := h.service.Remove(r.Context(), code)
	switch {
	case errors.Is(err, promo.ErrPromoNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("promo code not found"))
		return
	case errors.Is(err, promo.ErrPromoInUse):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("promo code has usages and can only be deactivated"))
		return
	case err != nil:
		log.Error("failed to remove promo code", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not remove promo code"))
		return
	}

	log.Info("promo code removed", slog.String("code", code))
	render.JSON(w, r, response.OK())
}
