package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/clearride/internal/http/middlewarectx"
	"github.com/magabrotheeeer/clearride/internal/http/response"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
)

type Service interface {
	List(ctx context.Context, accountID string) ([]*models.Appeal, error)
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
// @Summary Список апелляций
// @Tags Appeals
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /appeals [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.appeal.list"

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

	appeals, err := h.service.List(r.Context(), accountID)
	if err != nil {
		log.Error("failed to list appeals", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list appeals"))
		return
	}
	if appeals == nil {
		appeals = []*models.Appeal{}
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"appeals": appeals,
		"count":   len(appeals),
	}))
}
