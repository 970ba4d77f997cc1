package order

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-importadora/internal/common"
	"github.com/noah-isme/backend-importadora/internal/export"
	"github.com/noah-isme/backend-importadora/internal/settlement"
)

// DocumentRenderer prints order documents.
type DocumentRenderer interface {
	PDF(ctx context.Context, doc export.Document) ([]byte, error)
}

// Handler serves the client-facing order endpoints.
type Handler struct {
	Svc      *Service
	Renderer DocumentRenderer
	Logger   zerolog.Logger
}

// Create places an order from the session in the body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	client, _ := common.ClientName(r.Context())
	sess, err := settlement.DecodeSession(r.Body, client)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if sess.ClientName == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "clientName is required to place an order", nil)
		return
	}
	out, err := h.Svc.Create(r.Context(), sess)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

// Get returns a persisted order with its stored summary.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ord})
}

// Document renders the order PDF from the persisted summary.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Renderer == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order documents not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	pdf, err := h.Renderer.PDF(r.Context(), DocumentFor(ord))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="pedido-`+ord.ID.String()+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// DocumentFor builds the printable view of a stored order.
func DocumentFor(o Order) export.Document {
	return export.Document{
		Title:      "Pedido",
		Number:     o.ID.String(),
		ClientName: o.ClientName,
		IssuedAt:   o.CreatedAt,
		Summary:    o.Summary,
		Credit:     o.Credit,
		Shipping:   o.Shipping,
		Billing:    o.Billing,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	appErr := AppError(err)
	if !common.IsAppError(appErr) {
		h.Logger.Error().Err(err).Msg("order_request_failed")
	}
	common.WriteError(w, appErr)
}

// AppError translates order and settlement failures into API errors.
func AppError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidTransition):
		return common.NewAppError("INVALID_STATE", "state transition not allowed", http.StatusConflict, err)
	case errors.Is(err, ErrUnsupportedStatus):
		return common.NewAppError("BAD_REQUEST", "unsupported status", http.StatusBadRequest, err)
	case errors.Is(err, export.ErrRender):
		return common.NewAppError("RENDER_FAILED", "document could not be rendered", http.StatusBadGateway, err)
	}
	return settlement.AppError(err)
}
