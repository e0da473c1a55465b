package read

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
	Get(ctx context.Context, code string) (*models.PromoCode, error)
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
// @Summary Получить промокод
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Param code path string true "Код"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/promo-codes/{code} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.promo.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	p, err := h.service.Get(r.Context(), models.NormalizePromoCode(chi.URLParam(r, "code")))
	if err != nil {
		if errors.Is(err, promo.ErrPromoNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("promo code not found"))
			return
		}
		log.Error("failed to read promo code", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read promo code"))
		return
	}

	render.JSON(w, r, response.OKWithData(p))
}
