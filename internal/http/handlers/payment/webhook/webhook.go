// Package webhook принимает уведомления Stripe о статусе оплаты.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/clearride/internal/http/response"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/services/payment"
)

// MaxBodyBytes предел размера тела уведомления.
const MaxBodyBytes = 65536

type Service interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
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
// @Summary Webhook Stripe
// @Description Подпись проверяется по заголовку Stripe-Signature. Повторная доставка безопасна.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read body"))
		return
	}

	err = h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		log.Warn("webhook rejected", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	case err != nil:
		// 500 заставит Stripe повторить доставку
		log.Error("failed to handle webhook", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not handle webhook"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]bool{"received": true}))
}
