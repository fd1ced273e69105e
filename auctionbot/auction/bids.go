package auction

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
	"github.com/kirillLeo1/Auction/auctionbot/metrics"
	"github.com/uptrace/bun/driver/pgdriver"
)

const maxBidAttempts = 3

// BidResult reports an accepted bid.
type BidResult struct {
	Lot        *models.Lot
	MinAllowed int64
}

// PlaceBid validates and records a bid on an auction-mode lot. The price
// check-and-set runs under the lot row lock, so concurrent bids serialize
// per lot; transient conflicts are retried before surfacing ErrBidConflict.
func (m *Manager) PlaceBid(ctx context.Context, lotPublicID int64, userID, username string, amount int64) (*BidResult, error) {
	var result *BidResult
	var err error
	for attempt := 0; attempt < maxBidAttempts; attempt++ {
		result, err = m.tryPlaceBid(ctx, lotPublicID, userID, username, amount)
		if err == nil || !isRetryableConflict(err) {
			break
		}
		slog.Warn("Bid raced a concurrent update, retrying",
			slog.Int64("lot_public_id", lotPublicID),
			slog.Int("attempt", attempt+1))
	}
	if err != nil {
		if isRetryableConflict(err) {
			metrics.BidsTotal.WithLabelValues("conflict").Inc()
			return nil, ErrBidConflict
		}
		metrics.BidsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	metrics.BidsTotal.WithLabelValues("accepted").Inc()
	return result, nil
}

func (m *Manager) tryPlaceBid(ctx context.Context, lotPublicID int64, userID, username string, amount int64) (*BidResult, error) {
	lot, err := m.lots.GetByPublicID(ctx, lotPublicID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, ErrLotNotFound
	}

	var previousLeader string
	var updated *models.Lot

	err = m.lots.WithLotLock(ctx, lot.ID, func(ctx context.Context, locked *models.Lot) error {
		if locked == nil {
			return ErrLotNotFound
		}
		if locked.Status != models.LotStatusActive {
			return ErrLotNotActive
		}
		if locked.IsSale() {
			return ErrNotAuction
		}
		if amount < locked.MinAllowedBid() {
			return BidTooLowError{Min: locked.MinAllowedBid()}
		}

		if err := m.bids.Create(ctx, &models.Bid{
			LotID:    locked.ID,
			UserID:   userID,
			Username: username,
			Amount:   amount,
		}); err != nil {
			return err
		}

		previousLeader = locked.CurrentWinnerID
		locked.CurrentPrice = amount

		ranking, err := m.bids.Ranking(ctx, locked.ID)
		if err != nil {
			return err
		}
		if len(ranking) > 0 {
			locked.CurrentWinnerID = ranking[0].UserID
		} else {
			locked.CurrentWinnerID = userID
		}

		if err := m.lots.Update(ctx, locked); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Notifications happen outside the transaction and never fail the bid.
	if err := m.notifier.LotDisplayUpdate(ctx, updated); err != nil {
		slog.Warn("Failed to refresh listing after bid",
			slog.Int64("lot_id", updated.ID),
			slog.Any("error", err))
	}
	if previousLeader != "" && previousLeader != userID {
		if err := m.notifier.Outbid(ctx, updated, previousLeader); err != nil {
			slog.Warn("Failed to notify outbid user",
				slog.Int64("lot_id", updated.ID),
				slog.String("user_id", previousLeader),
				slog.Any("error", err))
		}
	}

	return &BidResult{Lot: updated, MinAllowed: updated.MinAllowedBid()}, nil
}

func isRetryableConflict(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		code := pgErr.Field('C')
		// serialization_failure / deadlock_detected
		return code == "40001" || code == "40P01"
	}
	return false
}
