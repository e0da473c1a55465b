// Package check реализует HTTP-обработчик запроса HPI-проверки автомобиля.
package check

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
	"github.com/magabrotheeeer/clearride/internal/services/hpi"
)

// Request номер автомобиля для проверки.
type Request struct {
	Registration string `json:"registration" validate:"required,max=16"`
}

type Service interface {
	Request(ctx context.Context, accountID, registration string) (*models.HpiCheck, models.Decision, error)
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
// @Summary Запросить HPI-проверку
// @Description Использует подписку или списывает один кредит HPI.
// @Tags HPI
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Номер автомобиля"
// @Success 201 {object} response.Response
// @Failure 402 {object} response.Response "Нет подписки и кредитов"
// @Failure 422 {object} response.ErrorResponse
// @Router /hpi/checks [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.hpi.check"

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

	check, decision, err := h.service.Request(r.Context(), accountID, req.Registration)
	switch {
	case errors.Is(err, hpi.ErrInvalidRegistration):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("vehicle registration is empty"))
		return
	case errors.Is(err, hpi.ErrAccountNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("account not found"))
		return
	case err != nil:
		log.Error("failed to request hpi check", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not request hpi check"))
		return
	}

	if check == nil {
		render.Status(r, http.StatusPaymentRequired)
		render.JSON(w, r, response.ErrorWithData("payment required", decision))
		return
	}

	log.Info("hpi check requested", slog.Int("check_id", check.ID), slog.String("source", string(check.Source)))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"check":    check,
		"decision": decision,
	}))
}
