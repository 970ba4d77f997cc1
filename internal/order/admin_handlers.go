package order

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-importadora/internal/common"
)

// AdminHandler provides staff order tracking endpoints.
type AdminHandler struct {
	Svc *Service
}

type patchStatusRequest struct {
	Status string `json:"status"`
}

// PatchStatus moves an order forward; CANCELED is accepted from PENDING and PACKED only.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req patchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if req.Status == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "status is required", nil)
		return
	}
	target, err := ParseStatus(req.Status)
	if err != nil {
		common.WriteError(w, AppError(err))
		return
	}
	ord, err := h.Svc.UpdateStatus(r.Context(), id, target)
	if err != nil {
		common.WriteError(w, AppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"orderId":   ord.ID,
		"status":    ord.Status,
		"updatedAt": ord.UpdatedAt,
	}})
}

// List pages through orders, optionally filtered by status and client.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	filter := ListFilter{
		ClientName: r.URL.Query().Get("client"),
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			common.WriteError(w, AppError(err))
			return
		}
		filter.Status = status
	}
	orders, total, err := h.Svc.List(r.Context(), filter)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	response := make([]map[string]any, 0, len(orders))
	for _, ord := range orders {
		response = append(response, map[string]any{
			"orderId":           ord.ID,
			"clientName":        ord.ClientName,
			"status":            ord.Status,
			"preferredCurrency": ord.PreferredCurrency,
			"grandTotal":        ord.Summary.GrandTotal,
			"payment":           ord.Payment,
			"dueDate":           ord.DueDate,
			"createdAt":         ord.CreatedAt,
		})
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": response,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: total,
		},
	})
}
