package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordedPayment struct {
	offerID   int64
	invoiceID string
	amount    int64
	currency  string
}

type fakeProcessor struct {
	calls []recordedPayment
	err   error
}

func (f *fakeProcessor) OnPaymentConfirmed(_ context.Context, offerID int64, invoiceID string, amount int64, currency string) error {
	f.calls = append(f.calls, recordedPayment{offerID: offerID, invoiceID: invoiceID, amount: amount, currency: currency})
	return f.err
}

type fakeVerifier struct {
	ok bool
}

func (f *fakeVerifier) VerifyWebhookSignature(_ context.Context, _ []byte, _ string) bool {
	return f.ok
}

func newWebhookRequest(body, offerID string) *http.Request {
	url := "/payments/webhook"
	if offerID != "" {
		url += "?offer_id=" + offerID
	}
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("X-Sign", "c2ln")
	return req
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	processor := &fakeProcessor{}
	handler := NewWebhookHandler(processor, &fakeVerifier{ok: false}, "UAH", 980)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newWebhookRequest(`{"status":"success"}`, "1"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, processor.calls)
}

func TestWebhookConfirmsSuccessfulPayment(t *testing.T) {
	processor := &fakeProcessor{}
	handler := NewWebhookHandler(processor, &fakeVerifier{ok: true}, "UAH", 980)

	body := `{"invoiceId":"inv-7","status":"success","amount":15000,"ccy":980}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newWebhookRequest(body, "7"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []recordedPayment{{
		offerID:   7,
		invoiceID: "inv-7",
		amount:    150,
		currency:  "UAH",
	}}, processor.calls)
}

func TestWebhookIgnoresIntermediateStatuses(t *testing.T) {
	processor := &fakeProcessor{}
	handler := NewWebhookHandler(processor, &fakeVerifier{ok: true}, "UAH", 980)

	for _, status := range []string{"created", "processing", "failure", "expired"} {
		body := fmt.Sprintf(`{"invoiceId":"inv-7","status":%q,"amount":15000,"ccy":980}`, status)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newWebhookRequest(body, "7"))
		require.Equal(t, http.StatusOK, rec.Code, status)
	}
	require.Empty(t, processor.calls)
}

func TestWebhookAcksMalformedOfferID(t *testing.T) {
	processor := &fakeProcessor{}
	handler := NewWebhookHandler(processor, &fakeVerifier{ok: true}, "UAH", 980)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newWebhookRequest(`{"status":"success"}`, "not-a-number"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, processor.calls)
}

func TestWebhookPassesForeignCurrencyThrough(t *testing.T) {
	processor := &fakeProcessor{}
	handler := NewWebhookHandler(processor, &fakeVerifier{ok: true}, "UAH", 980)

	body := `{"invoiceId":"inv-7","status":"success","amount":15000,"ccy":840}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newWebhookRequest(body, "7"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, processor.calls, 1)
	require.Equal(t, "840", processor.calls[0].currency)
}

func TestWebhookRequestsRedeliveryOnStoreFailure(t *testing.T) {
	processor := &fakeProcessor{err: fmt.Errorf("db down")}
	handler := NewWebhookHandler(processor, &fakeVerifier{ok: true}, "UAH", 980)

	body := `{"invoiceId":"inv-7","status":"success","amount":15000,"ccy":980}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newWebhookRequest(body, "7"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, processor.calls, 1)
}
