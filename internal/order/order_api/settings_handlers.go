package order_api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"ms-pos/internal/models"
	"ms-pos/internal/order"
)

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Settings.Snapshot())
}

func (h *Handler) GetDeliverySettings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Settings.Snapshot().Delivery)
}

// GetOrderTypes lists order types by sort position. ?enabled_only=true hides the
// disabled ones.
func (h *Handler) GetOrderTypes(w http.ResponseWriter, r *http.Request) {
	enabledOnly, _ := strconv.ParseBool(r.URL.Query().Get("enabled_only"))

	out := make([]models.OrderTypeOption, 0, len(h.Settings.Snapshot().OrderTypes))
	for _, ot := range h.Settings.Snapshot().OrderTypes {
		if enabledOnly && !ot.Enabled {
			continue
		}
		out = append(out, ot)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateDeliverySettings(w http.ResponseWriter, r *http.Request) {
	var req models.DeliverySettings
	if !h.decodeSettings(w, r, &req) {
		return
	}
	if err := h.check(&req); err != nil {
		h.writeError(w, err)
		return
	}

	s, err := h.Settings.UpdateDelivery(r.Context(), req)
	if err != nil {
		h.writeSettingsError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handler) UpdateRestaurantSettings(w http.ResponseWriter, r *http.Request) {
	var req models.RestaurantSettings
	if !h.decodeSettings(w, r, &req) {
		return
	}
	if err := h.check(&req); err != nil {
		h.writeError(w, err)
		return
	}

	s, err := h.Settings.UpdateRestaurant(r.Context(), req)
	if err != nil {
		h.writeSettingsError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

// UpdateOrderTypes takes a JSON array of {id, label, enabled}.
func (h *Handler) UpdateOrderTypes(w http.ResponseWriter, r *http.Request) {
	var req []models.OrderTypeOption
	if !h.decodeSettings(w, r, &req) {
		return
	}

	s, err := h.Settings.UpdateOrderTypes(r.Context(), req)
	if err != nil {
		h.writeSettingsError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

// ReorderOrderTypes takes the order type ids in their new order.
func (h *Handler) ReorderOrderTypes(w http.ResponseWriter, r *http.Request) {
	var req []models.OrderType
	if !h.decodeSettings(w, r, &req) {
		return
	}

	s, err := h.Settings.ReorderOrderTypes(r.Context(), req)
	if err != nil {
		h.writeSettingsError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handler) decodeSettings(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, &order.ValidationError{Message: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeSettingsError reports a failed save as 503. Rejections keep their own status.
func (h *Handler) writeSettingsError(w http.ResponseWriter, err error) {
	if status, _ := classify(err); status == http.StatusInternalServerError {
		h.Logger.Error("SETTINGS", err.Error())
		h.writeError(w, errUnavailable(err))
		return
	}
	h.writeError(w, err)
}
