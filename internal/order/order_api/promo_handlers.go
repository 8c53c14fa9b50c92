package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"ms-pos/internal/models"
	"ms-pos/internal/order"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListPromos(w http.ResponseWriter, r *http.Request) {
	promos, err := h.PromoService.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, promos)
}

func (h *Handler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePromo(w, r)
	if !ok {
		return
	}

	p, err := h.PromoService.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) UpdatePromo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	req, ok := h.decodePromo(w, r)
	if !ok {
		return
	}

	p, err := h.PromoService.Update(r.Context(), code, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeletePromo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.PromoService.Delete(r.Context(), code); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ValidatePromo previews a code against an order total. An unusable code is a
// normal answer with valid=false, not an error.
func (h *Handler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")

	total := 0.0
	if raw := q.Get("order_total"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, &order.ValidationError{Field: "order_total", Message: "must be a number"})
			return
		}
		total = v
	}

	preview, err := h.PromoService.Validate(r.Context(), code, total)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Logger.Debug("API", fmt.Sprintf("ValidatePromo: %s on %.2f valid=%t", code, total, preview.Valid))
	h.writeJSON(w, http.StatusOK, preview)
}

func (h *Handler) decodePromo(w http.ResponseWriter, r *http.Request) (models.PromoCodeRequest, bool) {
	var req models.PromoCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &order.ValidationError{Message: "invalid request body: " + err.Error()})
		return req, false
	}
	if chi.URLParam(r, "code") != "" && req.Code == "" {
		req.Code = chi.URLParam(r, "code")
	}
	if err := h.check(&req); err != nil {
		h.writeError(w, err)
		return req, false
	}
	return req, true
}
