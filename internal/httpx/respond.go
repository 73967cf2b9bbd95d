package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ariefcatur/go-shop-api.git/internal/shop"
)

// Envelope is the uniform response shape: {success, data?, message?, count?}.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

func respond(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, Envelope{Success: true, Data: data})
}

func respondCount(w http.ResponseWriter, code int, data any, n int) {
	writeJSON(w, code, Envelope{Success: true, Data: data, Count: &n})
}

func respondMsg(w http.ResponseWriter, code int, msg string, data any) {
	writeJSON(w, code, Envelope{Success: true, Message: msg, Data: data})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: msg})
}

// respondErr maps the domain error taxonomy onto HTTP codes. Unknown errors
// become an opaque 500; internals never leak into the message field.
func respondErr(w http.ResponseWriter, err error) {
	var (
		valErr   *shop.ValidationError
		stockErr *shop.InsufficientStockError
		payErr   *shop.PaymentVerificationError
	)
	switch {
	case errors.As(err, &valErr),
		errors.As(err, &stockErr),
		errors.As(err, &payErr),
		errors.Is(err, shop.ErrEmptyCart),
		errors.Is(err, shop.ErrAlreadyPaid):
		writeJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: err.Error()})
	case errors.Is(err, shop.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Envelope{Success: false, Message: "not found"})
	case errors.Is(err, shop.ErrForbidden):
		writeJSON(w, http.StatusUnauthorized, Envelope{Success: false, Message: "not authorized"})
	case errors.Is(err, shop.ErrUpstreamTimeout):
		writeJSON(w, http.StatusBadGateway, Envelope{Success: false, Message: "payment processor timed out, retry later"})
	default:
		log.Printf("unexpected error: %v", err)
		writeJSON(w, http.StatusInternalServerError, Envelope{Success: false, Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
