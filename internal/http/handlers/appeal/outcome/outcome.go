// Package outcome реализует HTTP-обработчик для отметки результата апелляции водителем.
package outcome

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/clearride/internal/http/middlewarectx"
	"github.com/magabrotheeeer/clearride/internal/http/response"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/appeal"
)

// Request новое значение результата.
type Request struct {
	Outcome models.AppealOutcome `json:"outcome" validate:"required"`
}

type Service interface {
	UpdateOutcome(ctx context.Context, accountID string, id int, outcome models.AppealOutcome) error
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
// @Summary Отметить результат апелляции
// @Tags Appeals
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path int true "ID апелляции"
// @Param request body Request true "pending, successful или unsuccessful"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /appeals/{id}/outcome [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.appeal.outcome"

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

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Info("failed to decode id from url", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode id from url"))
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

	err = h.service.UpdateOutcome(r.Context(), accountID, id, req.Outcome)
	switch {
	case errors.Is(err, appeal.ErrInvalidAppeal):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("unknown outcome"))
		return
	case errors.Is(err, appeal.ErrAppealNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("appeal not found"))
		return
	case err != nil:
		log.Error("failed to update outcome", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update appeal"))
		return
	}

	log.Info("appeal outcome updated", slog.Int("appeal_id", id), slog.String("outcome", string(req.Outcome)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"id":      id,
		"outcome": req.Outcome,
	}))
}
