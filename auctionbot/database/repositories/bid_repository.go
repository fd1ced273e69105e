package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
	"github.com/uptrace/bun"
)

type BidRepository interface {
	Create(ctx context.Context, bid *models.Bid) error
	CountForLot(ctx context.Context, lotID int64) (int, error)
	Ranking(ctx context.Context, lotID int64) ([]models.RankedBidder, error)
}

type bidRepository struct {
	db *bun.DB
}

func NewBidRepository(db *bun.DB) BidRepository {
	return &bidRepository{db: db}
}

func (r *bidRepository) Create(ctx context.Context, bid *models.Bid) error {
	bid.CreatedAt = time.Now()
	if _, err := idb(ctx, r.db).NewInsert().Model(bid).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record bid: %w", err)
	}
	return nil
}

func (r *bidRepository) CountForLot(ctx context.Context, lotID int64) (int, error) {
	count, err := idb(ctx, r.db).NewSelect().
		Model((*models.Bid)(nil)).
		Where("lot_id = ?", lotID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", err)
	}
	return count, nil
}

// Ranking returns one row per distinct bidder ordered by best amount
// descending. Ties are broken by the earliest bid that reached the amount,
// then by user id, so the order never depends on physical row order.
func (r *bidRepository) Ranking(ctx context.Context, lotID int64) ([]models.RankedBidder, error) {
	var ranked []models.RankedBidder
	err := idb(ctx, r.db).NewRaw(`
		WITH best AS (
			SELECT user_id, MAX(amount) AS amount
			FROM bids
			WHERE lot_id = ?
			GROUP BY user_id
		)
		SELECT best.user_id AS user_id, best.amount AS amount
		FROM best
		JOIN bids b ON b.lot_id = ? AND b.user_id = best.user_id AND b.amount = best.amount
		GROUP BY best.user_id, best.amount
		ORDER BY best.amount DESC, MIN(b.created_at) ASC, best.user_id ASC`,
		lotID, lotID,
	).Scan(ctx, &ranked)
	if err != nil {
		return nil, fmt.Errorf("failed to compute ranking: %w", err)
	}
	return ranked, nil
}
