// Package create реализует HTTP-обработчик подачи апелляции по штрафу.
package create

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
	"github.com/magabrotheeeer/clearride/internal/services/appeal"
)

type Service interface {
	Create(ctx context.Context, accountID string, req models.DummyAppeal) (*appeal.CreateResult, error)
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
// @Summary Подать апелляцию
// @Description Проверяет лимит тарифа и право на бесплатную апелляцию, затем сохраняет апелляцию.
// @Tags Appeals
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.DummyAppeal true "Данные штрафа"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse
// @Failure 402 {object} response.Response "Требуется оплата"
// @Failure 403 {object} response.Response "Превышен лимит тарифа"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse
// @Router /appeals [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.appeal.create"

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

	var req models.DummyAppeal
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.Create(r.Context(), accountID, req)
	if err != nil {
		switch {
		case errors.Is(err, appeal.ErrInvalidAppeal):
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(err.Error()))
		case errors.Is(err, appeal.ErrAccountNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("account not found"))
		default:
			log.Error("failed to create appeal", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create appeal"))
		}
		return
	}

	if res.Rejection != nil {
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.ErrorWithData(res.Rejection.Message, res.Rejection))
		return
	}
	if res.Appeal == nil {
		render.Status(r, http.StatusPaymentRequired)
		render.JSON(w, r, response.ErrorWithData("payment required", res.Decision))
		return
	}

	log.Info("appeal created", slog.Int("appeal_id", res.Appeal.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"appeal":   res.Appeal,
		"decision": res.Decision,
	}))
}
