package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"ms-pos/internal/models"
	"ms-pos/internal/order"
	"ms-pos/internal/tables"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	var req models.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &order.ValidationError{Message: "invalid request body: " + err.Error()})
		return
	}
	if err := h.check(&req); err != nil {
		h.writeError(w, err)
		return
	}

	f, err := h.FeedbackService.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, err)
		return
	}

	out, err := h.FeedbackService.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// TableQR serves the PNG printed on a table. It links to the menu with the table
// number preset.
func (h *Handler) TableQR(w http.ResponseWriter, r *http.Request) {
	table, err := strconv.Atoi(chi.URLParam(r, "table"))
	if err != nil || table < 1 || table > tables.MaxTableNumber {
		h.writeError(w, &order.ValidationError{
			Field:   "table",
			Message: fmt.Sprintf("must be a number between 1 and %d", tables.MaxTableNumber),
		})
		return
	}

	png, err := h.QR.PNG(table)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("TableQR: failed to render table %d: %v", table, err))
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("TableQR: write failed: %v", err))
	}
}
