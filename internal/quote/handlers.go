package quote

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-importadora/internal/common"
	"github.com/noah-isme/backend-importadora/internal/export"
	"github.com/noah-isme/backend-importadora/internal/settlement"
)

// Calculator computes settlement results for a session.
type Calculator interface {
	Compute(ctx context.Context, sess settlement.Session) (settlement.Result, error)
}

// DocumentRenderer prints quote documents.
type DocumentRenderer interface {
	PDF(ctx context.Context, doc export.Document) ([]byte, error)
}

// Handler serves the on-screen quote and its printable version. Both go through
// the same settlement computation used when the order is placed.
type Handler struct {
	Svc      Calculator
	Renderer DocumentRenderer
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Quote returns the summary for the cart in the body. A missing exchange rate is
// reported through the summary state, not as an error.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	sess, res, ok := h.compute(w, r)
	if !ok {
		return
	}
	h.Logger.Debug().
		Str("client", sess.ClientName).
		Str("state", string(res.Summary.State)).
		Int("lines", len(sess.Items)).
		Msg("quote_computed")
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// Document renders the quote as PDF.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Renderer == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote documents not configured", nil)
		return
	}
	sess, res, ok := h.compute(w, r)
	if !ok {
		return
	}
	pdf, err := h.Renderer.PDF(r.Context(), export.Document{
		Title:      "Cotización",
		ClientName: sess.ClientName,
		IssuedAt:   h.now(),
		Summary:    res.Summary,
		Credit:     res.Credit,
		Shipping:   sess.Shipping,
		Billing:    sess.Billing,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="cotizacion.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) compute(w http.ResponseWriter, r *http.Request) (settlement.Session, settlement.Result, bool) {
	client, _ := common.ClientName(r.Context())
	sess, err := settlement.DecodeSession(r.Body, client)
	if err != nil {
		h.writeError(w, err)
		return settlement.Session{}, settlement.Result{}, false
	}
	res, err := h.Svc.Compute(r.Context(), sess)
	if err != nil {
		h.writeError(w, err)
		return settlement.Session{}, settlement.Result{}, false
	}
	return sess, res, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, export.ErrRender) {
		common.JSONError(w, http.StatusBadGateway, "RENDER_FAILED", "document could not be rendered", nil)
		return
	}
	appErr := settlement.AppError(err)
	if !common.IsAppError(appErr) {
		h.Logger.Error().Err(err).Msg("quote_request_failed")
	}
	common.WriteError(w, appErr)
}
