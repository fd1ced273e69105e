package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
)

type Config struct {
	// Token is the merchant API token, sent as X-Token.
	Token string `toml:"token"`
	// APIBaseURL is the gateway root, e.g. https://api.monobank.ua.
	APIBaseURL string `toml:"api_base_url"`
	// WebhookBaseURL is this service's public root; the per-invoice webhook
	// URL is derived from it.
	WebhookBaseURL string `toml:"webhook_base_url"`
	// RedirectURL is where the payment page sends the user afterwards.
	RedirectURL string `toml:"redirect_url"`
	// CurrencyCode is the ISO 4217 numeric code matching the configured
	// currency (980 for UAH).
	CurrencyCode int `toml:"currency_code"`
	// PublicKey optionally pins the webhook signing key (base64 PEM). When
	// empty the key is fetched from the gateway and cached.
	PublicKey string `toml:"public_key"`
}

// Client talks to the payment gateway: it creates hosted invoices and
// verifies webhook signatures. It implements auction.Invoicer.
type Client struct {
	cfg        Config
	httpClient *http.Client
	pubKeys    *lru.Cache
}

func NewClient(cfg Config) (*Client, error) {
	cache, err := lru.New(4)
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		pubKeys:    cache,
	}
	if cfg.PublicKey != "" {
		key, err := ParsePublicKey(cfg.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid configured public key: %w", err)
		}
		c.SetPublicKey(key)
	}
	return c, nil
}

type invoiceRequest struct {
	Amount           int64            `json:"amount"`
	Ccy              int              `json:"ccy"`
	MerchantPaymInfo merchantPaymInfo `json:"merchantPaymInfo"`
	RedirectURL      string           `json:"redirectUrl,omitempty"`
	WebHookURL       string           `json:"webHookUrl"`
	Validity         int64            `json:"validity,omitempty"`
}

type merchantPaymInfo struct {
	Reference   string `json:"reference"`
	Destination string `json:"destination"`
}

type invoiceResponse struct {
	InvoiceID string `json:"invoiceId"`
	PageURL   string `json:"pageUrl"`
}

type apiError struct {
	ErrCode string `json:"errCode"`
	ErrText string `json:"errText"`
}

// CreateInvoice opens a hosted payment page for an offer. Amount is converted
// to minor units; the invoice validity tracks the offer's hold deadline so a
// stale page cannot be paid long after the claim lapsed.
func (c *Client) CreateInvoice(ctx context.Context, lot *models.Lot, offer *models.Offer) (string, string, error) {
	webhookURL, err := url.JoinPath(c.cfg.WebhookBaseURL, "/payments/webhook")
	if err != nil {
		return "", "", fmt.Errorf("failed to build webhook url: %w", err)
	}
	webhookURL += "?offer_id=" + strconv.FormatInt(offer.ID, 10)

	req := invoiceRequest{
		Amount: offer.Price * 100,
		Ccy:    c.cfg.CurrencyCode,
		MerchantPaymInfo: merchantPaymInfo{
			Reference:   fmt.Sprintf("lot-%d-offer-%d-%s", lot.PublicID, offer.ID, uuid.NewString()),
			Destination: fmt.Sprintf("Lot #%d: %s", lot.PublicID, lot.Title),
		},
		RedirectURL: c.cfg.RedirectURL,
		WebHookURL:  webhookURL,
	}
	if !offer.HoldUntil.IsZero() {
		if validity := time.Until(offer.HoldUntil); validity > 0 {
			req.Validity = int64(validity.Seconds())
		}
	}

	var resp invoiceResponse
	if err := c.post(ctx, "/api/merchant/invoice/create", req, &resp); err != nil {
		return "", "", err
	}
	if resp.InvoiceID == "" || resp.PageURL == "" {
		return "", "", fmt.Errorf("gateway returned incomplete invoice response")
	}

	slog.Info("Invoice created",
		slog.String("type", "pay"),
		slog.Int64("offer_id", offer.ID),
		slog.String("invoice_id", resp.InvoiceID))
	return resp.InvoiceID, resp.PageURL, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	endpoint, err := url.JoinPath(c.cfg.APIBaseURL, path)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("X-Token", c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.ErrText != "" {
			return fmt.Errorf("gateway rejected request: %s (%s)", apiErr.ErrText, apiErr.ErrCode)
		}
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}
