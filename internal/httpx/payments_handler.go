package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/ariefcatur/go-shop-api.git/internal/auth"
	"github.com/ariefcatur/go-shop-api.git/internal/shop"
	"github.com/ariefcatur/go-shop-api.git/internal/stripe"
	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 1 << 20

type PaymentsHandler struct {
	Engine        *shop.Payments
	WebhookSecret string
}

func (h *PaymentsHandler) RegisterAuthed(r chi.Router) {
	r.Post("/payments/create-payment-intent", h.createIntent)
	r.Post("/payments/confirm-payment", h.confirmPayment)
	r.Get("/payments/intent/{id}", h.intentStatus)
}

// RegisterPublic mounts the webhook outside the auth stack: the processor
// authenticates with its signature, not a bearer token.
func (h *PaymentsHandler) RegisterPublic(r chi.Router) {
	r.Post("/payments/webhook", h.webhook)
}

func (h *PaymentsHandler) createIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		badRequest(w, "order_id is required")
		return
	}
	ident, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	ref, err := h.Engine.CreateIntent(ctx, ident.UserID, req.OrderID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, ref)
}

func (h *PaymentsHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentIntentID string `json:"payment_intent_id"`
		OrderID         string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentIntentID == "" || req.OrderID == "" {
		badRequest(w, "payment_intent_id and order_id are required")
		return
	}
	ident, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(traced(r), 15*time.Second)
	defer cancel()

	order, err := h.Engine.ConfirmPayment(ctx, ident.UserID, ident.Email, req.PaymentIntentID, req.OrderID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondMsg(w, http.StatusOK, "payment confirmed", order)
}

func (h *PaymentsHandler) intentStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	intent, err := h.Engine.IntentStatus(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"id":       intent.ID,
		"status":   intent.Status,
		"amount":   intent.Amount,
		"currency": intent.Currency,
		"created":  intent.Created,
	})
}

// webhook verifies the processor signature over the raw, untouched body and
// fails closed: nothing is processed unless verification passes. The raw
// bytes must reach ConstructEvent exactly as sent; re-serializing the JSON
// would break the signature.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		badRequest(w, "cannot read body")
		return
	}
	ev, err := stripe.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		if errors.Is(err, stripe.ErrSignature) {
			log.Printf("webhook signature verification failed: %v", err)
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Webhook Error: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(traced(r), 10*time.Second)
	defer cancel()

	if err := h.Engine.HandleWebhook(ctx, ev); err != nil {
		// let the processor retry
		log.Printf("webhook event=%s: %v", ev.ID, err)
		writeJSON(w, http.StatusInternalServerError, Envelope{Success: false, Message: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
