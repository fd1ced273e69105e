package auction

import (
	"context"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
)

// Ranking returns the lot's distinct bidders ordered by their best amount
// descending. An empty bid set produces an empty ranking, not an error.
// No side effects.
func (m *Manager) Ranking(ctx context.Context, lotID int64) ([]models.RankedBidder, error) {
	return m.bids.Ranking(ctx, lotID)
}
