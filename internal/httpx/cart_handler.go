package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/auth"
	"github.com/ariefcatur/go-shop-api.git/internal/shop"
	"github.com/go-chi/chi/v5"
)

// CartAPI is what the handler needs from the cart store; *shop.CartRepo
// implements it.
type CartAPI interface {
	Get(ctx context.Context, userID string) (*shop.Cart, error)
	AddItem(ctx context.Context, userID, productID string, qty int) (*shop.Cart, error)
	UpdateItem(ctx context.Context, userID, itemID string, qty int) (*shop.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID string) (*shop.Cart, error)
	Clear(ctx context.Context, userID string) error
}

type CartHandler struct {
	Carts CartAPI
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.getCart)
	r.Delete("/cart", h.clearCart)
	r.Post("/cart/items", h.addItem)
	r.Put("/cart/items/{itemID}", h.updateItem)
	r.Delete("/cart/items/{itemID}", h.removeItem)
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cart, err := h.Carts.Get(ctx, ident.UserID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, cart)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.ProductID == "" || req.Qty < 1 {
		badRequest(w, "product_id and qty >= 1 are required")
		return
	}
	ident, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cart, err := h.Carts.AddItem(ctx, ident.UserID, req.ProductID, req.Qty)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusCreated, cart)
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	ident, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cart, err := h.Carts.UpdateItem(ctx, ident.UserID, chi.URLParam(r, "itemID"), req.Qty)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, cart)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cart, err := h.Carts.RemoveItem(ctx, ident.UserID, chi.URLParam(r, "itemID"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, cart)
}

func (h *CartHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Carts.Clear(ctx, ident.UserID); err != nil {
		respondErr(w, err)
		return
	}
	respondMsg(w, http.StatusOK, "cart cleared", nil)
}
