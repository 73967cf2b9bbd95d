package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/auth"
	"github.com/ariefcatur/go-shop-api.git/internal/redisx"
	"github.com/ariefcatur/go-shop-api.git/internal/shop"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

type OrdersHandler struct {
	Checkout *shop.Checkout
	Orders   *shop.Orders
	Payments *shop.Payments
	Redis    *redis.Client
}

func (h *OrdersHandler) Register(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Put("/orders/{id}/pay", h.payOrder)
	r.With(adminOnly).Put("/orders/{id}/deliver", h.deliverOrder)
}

type createOrderReq struct {
	ShippingAddress shop.Address `json:"shipping_address"`
	PaymentMethod   string       `json:"payment_method"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	ident, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(traced(r), 10*time.Second)
	defer cancel()

	order, err := h.Checkout.CreateOrder(ctx, ident.UserID, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.cacheStatus(ctx, order)
	respond(w, http.StatusCreated, order)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orders, err := h.Orders.ListForUser(ctx, ident.UserID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondCount(w, http.StatusOK, orders, len(orders))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, err := h.Orders.GetForCaller(ctx, ident.UserID, ident.Role, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, order)
}

// getOrderStatus is the cheap poll endpoint: redis first, DB fallback.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			var cached cachedStatus
			if json.Unmarshal([]byte(s), &cached) == nil {
				if cached.UserID != ident.UserID && ident.Role != "admin" {
					respondErr(w, shop.ErrForbidden)
					return
				}
				respond(w, http.StatusOK, cached.View)
				return
			}
		}
	}

	order, err := h.Orders.GetForCaller(ctx, ident.UserID, ident.Role, orderID)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.cacheStatus(ctx, order)
	respond(w, http.StatusOK, statusView(order))
}

type payOrderReq struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

// payOrder is the manual/trusted path; the result blob comes from the caller.
func (h *OrdersHandler) payOrder(w http.ResponseWriter, r *http.Request) {
	var req payOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	ident, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(traced(r), 5*time.Second)
	defer cancel()

	order, err := h.Payments.MarkPaidManually(ctx, ident.UserID, ident.Role, chi.URLParam(r, "id"), shop.PaymentResult{
		ID:           req.ID,
		Status:       req.Status,
		UpdateTime:   req.UpdateTime,
		EmailAddress: req.EmailAddress,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	h.cacheStatus(ctx, order)
	respond(w, http.StatusOK, order)
}

func (h *OrdersHandler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(traced(r), 5*time.Second)
	defer cancel()

	order, err := h.Orders.MarkDelivered(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	h.cacheStatus(ctx, order)
	respond(w, http.StatusOK, order)
}

type statusViewBody struct {
	Status      shop.DeliveryStatus `json:"status"`
	IsPaid      bool                `json:"is_paid"`
	IsDelivered bool                `json:"is_delivered"`
}

// cachedStatus carries the owner so cache hits can still enforce who may read.
type cachedStatus struct {
	UserID string `json:"user_id"`
	View   statusViewBody `json:"view"`
}

func statusView(o *shop.Order) statusViewBody {
	return statusViewBody{Status: o.Status, IsPaid: o.IsPaid, IsDelivered: o.IsDelivered}
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *shop.Order) {
	if h.Redis == nil {
		return
	}
	b, err := json.Marshal(cachedStatus{UserID: o.UserID, View: statusView(o)})
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}

// traced threads the request id through to published events.
func traced(r *http.Request) context.Context {
	return shop.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
}
