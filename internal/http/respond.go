package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/orders"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: "",
	})
}

// handleServiceError writes err as an ErrorResponse. Payment errors carry
// their kind in Details so clients can rebuild them.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	case errors.Is(err, orders.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}

	pe, ok := d.AsPaymentError(err)
	if !ok {
		log.Printf("order request failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	msg := pe.Message
	if msg == "" {
		msg = pe.Error()
	}
	respondJSON(w, statusForKind(pe.Kind), ErrorResponse{
		Error:   msg,
		Code:    pe.Code,
		Details: string(pe.Kind),
	})
}

func statusForKind(kind d.PaymentErrorKind) int {
	switch kind {
	case d.PaymentErrorDeclined, d.PaymentErrorInvalidInstrument, d.PaymentErrorAuthentication:
		return http.StatusPaymentRequired
	case d.PaymentErrorInvalidRequest:
		return http.StatusUnprocessableEntity
	case d.PaymentErrorTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
