package payments

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const pubKeyCacheKey = "webhook-pubkey"
const pubKeyTTL = 1 * time.Hour

type cachedKey struct {
	key       *ecdsa.PublicKey
	fetchedAt time.Time
}

// VerifyWebhookSignature checks the gateway's ECDSA signature over the raw
// webhook body. On a mismatch the key is refetched once before failing, so a
// rotated merchant key does not drop payments for the cache TTL.
func (c *Client) VerifyWebhookSignature(ctx context.Context, body []byte, signature string) bool {
	sig, err := decodeBase64(signature)
	if err != nil {
		slog.Warn("Webhook signature is not valid base64",
			slog.String("type", "pay"),
			slog.Any("error", err))
		return false
	}
	digest := sha256.Sum256(body)

	key, err := c.publicKey(ctx, false)
	if err != nil {
		slog.Error("Failed to obtain webhook public key",
			slog.String("type", "pay"),
			slog.Any("error", err))
		return false
	}
	if ecdsa.VerifyASN1(key, digest[:], sig) {
		return true
	}

	key, err = c.publicKey(ctx, true)
	if err != nil {
		return false
	}
	return ecdsa.VerifyASN1(key, digest[:], sig)
}

func (c *Client) publicKey(ctx context.Context, force bool) (*ecdsa.PublicKey, error) {
	if !force {
		if entry, ok := c.pubKeys.Get(pubKeyCacheKey); ok {
			cached := entry.(cachedKey)
			if time.Since(cached.fetchedAt) < pubKeyTTL {
				return cached.key, nil
			}
		}
	}

	key, err := c.fetchPublicKey(ctx)
	if err != nil {
		// Serve a stale cached key rather than reject outright.
		if entry, ok := c.pubKeys.Get(pubKeyCacheKey); ok && !force {
			return entry.(cachedKey).key, nil
		}
		return nil, err
	}

	c.pubKeys.Add(pubKeyCacheKey, cachedKey{key: key, fetchedAt: time.Now()})
	return key, nil
}

func (c *Client) fetchPublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	endpoint, err := url.JoinPath(c.cfg.APIBaseURL, "/api/merchant/pubkey")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Token", c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pubkey request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pubkey request returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode pubkey response: %w", err)
	}
	return ParsePublicKey(payload.Key)
}

// ParsePublicKey decodes the gateway's base64-wrapped PEM public key.
func ParsePublicKey(encoded string) (*ecdsa.PublicKey, error) {
	pemBytes, err := decodeBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("pubkey is not valid base64: %w", err)
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("pubkey is not PEM encoded")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pubkey: %w", err)
	}

	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("pubkey is %T, want *ecdsa.PublicKey", parsed)
	}
	return key, nil
}

func decodeBase64(s string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// SetPublicKey pins a pre-parsed key, bypassing the fetch. Used when the
// merchant key is supplied via configuration and in tests.
func (c *Client) SetPublicKey(key *ecdsa.PublicKey) {
	c.pubKeys.Add(pubKeyCacheKey, cachedKey{key: key, fetchedAt: time.Now()})
}
