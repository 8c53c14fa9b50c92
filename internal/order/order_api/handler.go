package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"ms-pos/internal/feedback"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/order"
	"ms-pos/internal/order/discount"
	"ms-pos/internal/settings"
	"ms-pos/internal/tables"
	"ms-pos/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const IdempotencyHeader = "Idempotency-Key"

type Handler struct {
	OrderService    *order.OrderService
	PromoService    *order.PromoService
	Settings        *settings.Store
	FeedbackService *feedback.Service
	QR              *tables.QRGenerator
	Logger          *logger.Logger

	validate *validator.Validate
}

func NewHandler(orders *order.OrderService, promos *order.PromoService, st *settings.Store, fb *feedback.Service, qr *tables.QRGenerator, log *logger.Logger) *Handler {
	v := validator.New()
	// report json field names instead of Go ones
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		OrderService:    orders,
		PromoService:    promos,
		Settings:        st,
		FeedbackService: fb,
		QR:              qr,
		Logger:          log,
		validate:        v,
	}
}

// Routes mounts the public and operator endpoints. operator wraps the routes that
// need a staff token; pass nil to leave them open.
func (h *Handler) Routes(r chi.Router, operator func(http.Handler) http.Handler, limiter func(http.Handler) http.Handler) {
	if operator == nil {
		operator = func(next http.Handler) http.Handler { return next }
	}
	if limiter == nil {
		limiter = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api", func(r chi.Router) {
		r.With(limiter).Post("/orders", h.PlaceOrder)
		r.Get("/orders/{id}", h.GetOrder)
		r.Post("/promo-codes/validate", h.ValidatePromo)
		r.Get("/settings", h.GetSettings)
		r.Get("/settings/delivery", h.GetDeliverySettings)
		r.Get("/settings/order-types", h.GetOrderTypes)
		r.Post("/feedbacks", h.CreateFeedback)
		r.Get("/tables/{table}/qr", h.TableQR)

		r.Group(func(r chi.Router) {
			r.Use(operator)

			r.Get("/orders", h.ListOrders)
			r.Put("/orders/{id}/status", h.UpdateStatus)
			r.Put("/orders/{id}/payment", h.UpdatePayment)

			r.Get("/promo-codes", h.ListPromos)
			r.Post("/promo-codes", h.CreatePromo)
			r.Put("/promo-codes/{code}", h.UpdatePromo)
			r.Delete("/promo-codes/{code}", h.DeletePromo)

			r.Put("/settings/delivery", h.UpdateDeliverySettings)
			r.Put("/settings/order-types", h.UpdateOrderTypes)
			r.Put("/settings/order-types/reorder", h.ReorderOrderTypes)
			r.Put("/settings/restaurant", h.UpdateRestaurantSettings)

			r.Get("/feedbacks", h.ListFeedback)
		})
	})
}

type placeOrderResponse struct {
	*models.Order
	PromoRejection *discount.Rejection `json:"promo_rejection,omitempty"`
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("PlaceOrder: failed to decode request body: %v", err))
		h.writeError(w, &order.ValidationError{Message: "invalid request body: " + err.Error()})
		return
	}
	if err := h.check(&req); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.OrderService.PlaceOrderOnce(r.Context(), r.Header.Get(IdempotencyHeader), req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("PlaceOrder: rejected: %v", err))
		h.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	h.writeJSON(w, status, placeOrderResponse{Order: res.Order, PromoRejection: res.PromoRejection})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	o, err := h.OrderService.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeError(w, err)
		return
	}

	orders, err := h.OrderService.ListOrders(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Logger.Debug("API", fmt.Sprintf("ListOrders: returning %d orders", len(orders)))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Status string `json:"status"`
	}
	if err := decodeOptional(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	if q := r.URL.Query().Get("status"); q != "" {
		body.Status = q
	}

	if err := h.OrderService.UpdateStatus(r.Context(), id, body.Status); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("UpdateStatus: order %s: %v", id, err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := decodeOptional(r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	if q := r.URL.Query().Get("payment_status"); q != "" {
		body.PaymentStatus = q
	}

	if err := h.OrderService.UpdatePaymentStatus(r.Context(), id, body.PaymentStatus); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("UpdatePayment: order %s: %v", id, err))
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ---------------- helpers ----------------

func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &order.ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	field := fe.Namespace()
	// drop the struct name prefix
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	msg := fe.Tag()
	if fe.Param() != "" {
		msg = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
	}
	return &order.ValidationError{Field: field, Message: "failed " + msg}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", message, err))
	}
	if field := invalidField(err); field != "" {
		h.writeJSON(w, status, utils.ValidationErrorResponse(field, err.Error()))
		return
	}
	h.writeJSON(w, status, utils.ErrorResponse(message, err.Error()))
}

func invalidField(err error) string {
	var (
		verr  *order.ValidationError
		sverr *settings.ValidationError
	)
	switch {
	case errors.As(err, &verr):
		return verr.Field
	case errors.As(err, &sverr):
		return sverr.Field
	}
	return ""
}

// classify maps domain errors onto HTTP statuses.
func classify(err error) (int, string) {
	var (
		verr  *order.ValidationError
		sverr *settings.ValidationError
		below *order.BelowMinimumOrderError
	)
	switch {
	case errors.As(err, &below):
		return http.StatusBadRequest, below.Message
	case errors.As(err, &verr), errors.As(err, &sverr):
		return http.StatusBadRequest, "Validation failed"
	case errors.Is(err, order.ErrInvalidStatus), errors.Is(err, order.ErrInvalidPaymentStatus):
		return http.StatusBadRequest, "Invalid status"
	case errors.Is(err, settings.ErrUnknownOrderType):
		return http.StatusBadRequest, "Unknown order type"
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, order.ErrPromoNotFound):
		return http.StatusNotFound, "Promo code not found"
	case errors.Is(err, order.ErrPromoExists):
		return http.StatusConflict, "Promo code already exists"
	case errors.Is(err, order.ErrSubmissionInProgress):
		return http.StatusConflict, "Order submission already in progress"
	case errors.Is(err, order.ErrIllegalTransition):
		return http.StatusConflict, "Status change not allowed"
	case errors.Is(err, order.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func errUnavailable(err error) error {
	return fmt.Errorf("%w: %v", order.ErrStoreUnavailable, err)
}

// decodeOptional decodes a JSON body when one was sent.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &order.ValidationError{Message: "invalid request body: " + err.Error()}
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &order.ValidationError{Field: name, Message: "must be a non-negative integer"}
	}
	return n, nil
}
