package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// PaymentProcessor is the slice of the cascade manager the webhook needs.
type PaymentProcessor interface {
	OnPaymentConfirmed(ctx context.Context, offerID int64, invoiceID string, amount int64, currency string) error
}

// SignatureVerifier checks the gateway's signature over the raw body.
type SignatureVerifier interface {
	VerifyWebhookSignature(ctx context.Context, body []byte, signature string) bool
}

// WebhookHandler consumes payment callbacks. The gateway retries on non-2xx,
// so the handler only signals failure when it wants a retry: a bad signature
// or an unreadable body gets 400, a store failure gets 500, everything else
// is acknowledged even when the event is ignored.
type WebhookHandler struct {
	processor    PaymentProcessor
	verifier     SignatureVerifier
	currency     string
	currencyCode int
}

func NewWebhookHandler(processor PaymentProcessor, verifier SignatureVerifier, currency string, currencyCode int) *WebhookHandler {
	return &WebhookHandler{
		processor:    processor,
		verifier:     verifier,
		currency:     currency,
		currencyCode: currencyCode,
	}
}

type webhookPayload struct {
	InvoiceID string `json:"invoiceId"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Ccy       int    `json:"ccy"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !h.verifier.VerifyWebhookSignature(r.Context(), body, r.Header.Get("X-Sign")) {
		slog.Warn("Webhook with invalid signature rejected",
			slog.String("type", "pay"),
			slog.String("remote", r.RemoteAddr))
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	offerID, err := strconv.ParseInt(r.URL.Query().Get("offer_id"), 10, 64)
	if err != nil {
		// Signed but malformed; retrying will not help.
		slog.Warn("Webhook without usable offer_id ignored",
			slog.String("type", "pay"),
			slog.String("offer_id", r.URL.Query().Get("offer_id")))
		w.WriteHeader(http.StatusOK)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Warn("Webhook with undecodable body ignored",
			slog.String("type", "pay"),
			slog.Any("error", err))
		w.WriteHeader(http.StatusOK)
		return
	}

	if payload.Status != "success" {
		// Intermediate statuses (created, processing, failure) carry no
		// state change for the cascade.
		w.WriteHeader(http.StatusOK)
		return
	}

	currency := h.currency
	if payload.Ccy != h.currencyCode {
		// Let the manager log and count the mismatch.
		currency = strconv.Itoa(payload.Ccy)
	}

	err = h.processor.OnPaymentConfirmed(r.Context(), offerID, payload.InvoiceID, payload.Amount/100, currency)
	if err != nil {
		slog.Error("Payment confirmation failed, requesting redelivery",
			slog.String("type", "pay"),
			slog.Int64("offer_id", offerID),
			slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
