// Package letter отдаёт PDF письмо по апелляции.
package letter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/clearride/internal/http/middlewarectx"
	"github.com/magabrotheeeer/clearride/internal/http/response"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/appeal"
)

type Service interface {
	Letter(ctx context.Context, accountID string, id int) ([]byte, *models.Appeal, error)
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
// @Summary PDF письмо апелляции
// @Tags Appeals
// @Produce  application/pdf
// @Security BearerAuth
// @Param id path int true "ID апелляции"
// @Success 200 {file} binary
// @Failure 404 {object} response.ErrorResponse
// @Router /appeals/{id}/letter [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.appeal.letter"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := middlewarectx.AccountIDFrom(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode id from url"))
		return
	}

	doc, a, err := h.service.Letter(r.Context(), accountID, id)
	if err != nil {
		if errors.Is(err, appeal.ErrAppealNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("appeal not found"))
			return
		}
		log.Error("failed to render letter", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not render letter"))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="appeal-%s.pdf"`, a.TicketNumber))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	if _, err := w.Write(doc); err != nil {
		log.Error("failed to write letter", sl.Err(err))
	}
}
