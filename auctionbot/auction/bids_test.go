package auction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
)

func TestPlaceBidEnforcesMinimumStep(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 1, 50, 15)

	first, err := env.manager.PlaceBid(context.Background(), lot.PublicID, "a", "a", 100)
	require.NoError(t, err)
	require.Equal(t, int64(100), first.Lot.CurrentPrice)
	require.Equal(t, int64(115), first.MinAllowed)

	second, err := env.manager.PlaceBid(context.Background(), lot.PublicID, "b", "b", 150)
	require.NoError(t, err)
	require.Equal(t, int64(150), second.Lot.CurrentPrice)
	require.Equal(t, int64(165), second.MinAllowed)

	_, err = env.manager.PlaceBid(context.Background(), lot.PublicID, "a", "a", 120)
	var tooLow BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	require.Equal(t, int64(165), tooLow.Min)

	// The rejected bid leaves no trace: price, leader and bid count stand.
	stored, err := env.lots.GetByID(context.Background(), lot.ID)
	require.NoError(t, err)
	require.Equal(t, int64(150), stored.CurrentPrice)
	require.Equal(t, "b", stored.CurrentWinnerID)

	count, err := env.bids.CountForLot(context.Background(), lot.ID)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestPlaceBidRejectsSales(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createSale(t, 1, 500)

	_, err := env.manager.PlaceBid(context.Background(), lot.PublicID, "a", "a", 600)
	require.ErrorIs(t, err, ErrNotAuction)
}

func TestPlaceBidRejectsInactiveLots(t *testing.T) {
	env := newTestEnv(t)

	draft := &models.Lot{
		Title:        "Unpublished print",
		StartPrice:   100,
		CurrentPrice: 100,
		MinStep:      50,
		Quantity:     1,
		Status:       models.LotStatusDraft,
	}
	require.NoError(t, env.lots.Create(context.Background(), draft, nil))

	_, err := env.manager.PlaceBid(context.Background(), draft.PublicID, "a", "a", 150)
	require.ErrorIs(t, err, ErrLotNotActive)

	_, err = env.manager.PlaceBid(context.Background(), 9999, "a", "a", 150)
	require.ErrorIs(t, err, ErrLotNotFound)
}

func TestPlaceBidNotifiesPreviousLeader(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 1, 100, 50)

	env.placeBid(t, lot, "a", 150)
	require.Empty(t, env.notifier.outbid)

	env.placeBid(t, lot, "b", 250)
	require.Equal(t, []string{"a"}, env.notifier.outbid)

	// The leader raising their own bid is not an outbid.
	env.placeBid(t, lot, "b", 350)
	require.Equal(t, []string{"a"}, env.notifier.outbid)

	env.placeBid(t, lot, "a", 500)
	require.Equal(t, []string{"a", "b"}, env.notifier.outbid)

	// Every accepted bid refreshes the public listing.
	require.Len(t, env.notifier.updates, 4)
	stored, err := env.lots.GetByID(context.Background(), lot.ID)
	require.NoError(t, err)
	require.Equal(t, "a", stored.CurrentWinnerID)
	require.Equal(t, int64(500), stored.CurrentPrice)
}
