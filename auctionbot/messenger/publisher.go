package messenger

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
)

// PublishRequest carries one lot and its photo URLs for publication.
type PublishRequest struct {
	Lot       *models.Lot
	PhotoURLs []string
}

// RateLimiter is a token bucket refilled at a fixed rate. Channel publishes
// go through it so a publish-all burst stays under the REST rate limits.
type RateLimiter struct {
	tokens chan struct{}
	stop   chan struct{}
}

func NewRateLimiter(refill time.Duration, burst int) *RateLimiter {
	r := &RateLimiter{
		tokens: make(chan struct{}, burst),
		stop:   make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		r.tokens <- struct{}{}
	}

	go func() {
		ticker := time.NewTicker(refill)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case r.tokens <- struct{}{}:
				default:
				}
			case <-r.stop:
				return
			}
		}
	}()
	return r
}

func (r *RateLimiter) Wait(ctx context.Context) error {
	select {
	case <-r.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RateLimiter) Close() {
	close(r.stop)
}

// PublishResult reports a single lot's outcome in a batch publish.
type PublishResult struct {
	LotPublicID int64
	MessageID   string
	Err         error
}

// Publisher serializes listing publications through the rate limiter.
type Publisher struct {
	messenger *Discord
	limiter   *RateLimiter
}

func NewPublisher(messenger *Discord, limiter *RateLimiter) *Publisher {
	return &Publisher{messenger: messenger, limiter: limiter}
}

// Publish posts one listing, waiting for a rate limit token first.
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) PublishResult {
	if err := p.limiter.Wait(ctx); err != nil {
		return PublishResult{LotPublicID: req.Lot.PublicID, Err: err}
	}
	messageID, err := p.messenger.PublishLot(ctx, req.Lot, req.PhotoURLs)
	return PublishResult{LotPublicID: req.Lot.PublicID, MessageID: messageID, Err: err}
}

// PublishBatch posts every listing in order. Failures are reported per lot
// and do not abort the rest of the batch.
func (p *Publisher) PublishBatch(ctx context.Context, reqs []PublishRequest) []PublishResult {
	results := make([]PublishResult, 0, len(reqs))
	for _, req := range reqs {
		result := p.Publish(ctx, req)
		if result.Err != nil {
			slog.Warn("Batch publish item failed",
				slog.Int64("lot_public_id", result.LotPublicID),
				slog.Any("error", result.Err))
		}
		results = append(results, result)
	}
	return results
}
