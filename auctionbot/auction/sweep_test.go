package auction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
)

func TestSweepExpiresAndPromotesNextCandidate(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 1, 100, 50)
	env.placeBid(t, lot, "alice", 150)
	env.placeBid(t, lot, "bob", 200)
	require.NoError(t, env.manager.StartCascade(context.Background(), lot.ID))

	winner := env.offersByStatus(t, lot.ID, models.OfferStatusOffered)[0]
	require.Equal(t, "bob", winner.UserID)
	reserve := env.offersByStatus(t, lot.ID, models.OfferStatusCanceled)[0]
	require.Equal(t, "alice", reserve.UserID)

	env.clock.Advance(testHold + time.Minute)
	require.NoError(t, env.manager.AdvanceCascade(context.Background()))

	expired, err := env.offers.GetByID(context.Background(), winner.ID)
	require.NoError(t, err)
	require.Equal(t, models.OfferStatusExpired, expired.Status)

	promoted, err := env.offers.GetByID(context.Background(), reserve.ID)
	require.NoError(t, err)
	require.Equal(t, models.OfferStatusOffered, promoted.Status)
	require.Equal(t, env.clock.Now().Add(testHold), promoted.HoldUntil)
	require.False(t, promoted.ReminderSent)
	require.NotEmpty(t, promoted.InvoiceID)
	require.Contains(t, env.notifier.granted, reserve.ID)
}

func TestSweepIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 1, 100, 50)
	env.placeBid(t, lot, "alice", 150)
	env.placeBid(t, lot, "bob", 200)
	require.NoError(t, env.manager.StartCascade(context.Background(), lot.ID))

	env.clock.Advance(testHold + time.Minute)
	require.NoError(t, env.manager.AdvanceCascade(context.Background()))
	grantedAfterFirst := len(env.notifier.granted)

	require.NoError(t, env.manager.AdvanceCascade(context.Background()))
	require.Len(t, env.notifier.granted, grantedAfterFirst)

	active := env.offersByStatus(t, lot.ID, models.OfferStatusOffered, models.OfferStatusPostponed)
	require.Len(t, active, 1)
}

func TestSweepPromotesAfterDecline(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 1, 100, 50)
	env.placeBid(t, lot, "alice", 150)
	env.placeBid(t, lot, "bob", 200)
	require.NoError(t, env.manager.StartCascade(context.Background(), lot.ID))

	winner := env.offersByStatus(t, lot.ID, models.OfferStatusOffered)[0]
	require.NoError(t, env.manager.Decline(context.Background(), winner.ID, winner.UserID))

	require.NoError(t, env.manager.AdvanceCascade(context.Background()))

	offered := env.offersByStatus(t, lot.ID, models.OfferStatusOffered)
	require.Len(t, offered, 1)
	require.Equal(t, "alice", offered[0].UserID)
}

func TestSweepPromotesAdjacentRanksForMultiUnitLots(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 2, 100, 50)
	env.placeBid(t, lot, "a", 150)
	env.placeBid(t, lot, "b", 200)
	env.placeBid(t, lot, "c", 250)
	env.placeBid(t, lot, "d", 300)
	require.NoError(t, env.manager.StartCascade(context.Background(), lot.ID))

	offered := env.offersByStatus(t, lot.ID, models.OfferStatusOffered)
	require.Len(t, offered, 2)
	require.Equal(t, "d", offered[0].UserID)
	require.Equal(t, "c", offered[1].UserID)

	// Both granted offers lapse in the same hold window.
	env.clock.Advance(testHold + time.Minute)
	require.NoError(t, env.manager.AdvanceCascade(context.Background()))

	offered = env.offersByStatus(t, lot.ID, models.OfferStatusOffered)
	require.Len(t, offered, 2)
	require.Equal(t, "b", offered[0].UserID)
	require.Equal(t, 3, offered[0].Rank)
	require.Equal(t, "a", offered[1].UserID)
	require.Equal(t, 4, offered[1].Rank)
	for _, offer := range offered {
		require.Equal(t, env.clock.Now().Add(testHold), offer.HoldUntil)
		require.NotEmpty(t, offer.InvoiceID)
	}

	expired := env.offersByStatus(t, lot.ID, models.OfferStatusExpired)
	require.Len(t, expired, 2)
	require.Empty(t, env.offersByStatus(t, lot.ID, models.OfferStatusCanceled))
}

func TestSweepRespectsPostponedHolds(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 1, 100, 50)
	env.placeBid(t, lot, "alice", 150)
	env.placeBid(t, lot, "bob", 200)
	require.NoError(t, env.manager.StartCascade(context.Background(), lot.ID))

	winner := env.offersByStatus(t, lot.ID, models.OfferStatusOffered)[0]
	require.NoError(t, env.manager.Postpone(context.Background(), winner.ID, winner.UserID))

	// Before the deadline the postponed claim still holds the unit.
	require.NoError(t, env.manager.AdvanceCascade(context.Background()))
	require.Empty(t, env.offersByStatus(t, lot.ID, models.OfferStatusOffered))

	// Past the deadline it expires like any other active claim.
	env.clock.Advance(testHold + time.Minute)
	require.NoError(t, env.manager.AdvanceCascade(context.Background()))

	expired, err := env.offers.GetByID(context.Background(), winner.ID)
	require.NoError(t, err)
	require.Equal(t, models.OfferStatusExpired, expired.Status)
	require.Len(t, env.offersByStatus(t, lot.ID, models.OfferStatusOffered), 1)
}

func TestSweepSendsReminderOnce(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 1, 100, 50)
	env.placeBid(t, lot, "alice", 150)
	require.NoError(t, env.manager.StartCascade(context.Background(), lot.ID))

	// Outside the reminder window: nothing goes out.
	require.NoError(t, env.manager.AdvanceCascade(context.Background()))
	require.Empty(t, env.notifier.reminders)

	env.clock.Advance(testHold - testLead + time.Minute)
	require.NoError(t, env.manager.AdvanceCascade(context.Background()))
	require.Len(t, env.notifier.reminders, 1)

	require.NoError(t, env.manager.AdvanceCascade(context.Background()))
	require.Len(t, env.notifier.reminders, 1)
}

func TestSweepRetriesMissingInvoices(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 1, 100, 50)
	env.placeBid(t, lot, "alice", 150)

	env.invoicer.setFail(true)
	require.NoError(t, env.manager.StartCascade(context.Background(), lot.ID))

	offer := env.offersByStatus(t, lot.ID, models.OfferStatusOffered)[0]
	require.Empty(t, offer.InvoiceID)
	require.Len(t, env.notifier.granted, 1)

	// Gateway still down: no invoice and no repeated notification.
	require.NoError(t, env.manager.AdvanceCascade(context.Background()))
	require.Len(t, env.notifier.granted, 1)

	env.invoicer.setFail(false)
	require.NoError(t, env.manager.AdvanceCascade(context.Background()))

	refreshed, err := env.offers.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.InvoiceID)
	require.NotEmpty(t, refreshed.InvoiceURL)
	require.Len(t, env.notifier.granted, 2)
}

func TestSweepNeverExceedsCapacity(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 2, 100, 50)
	env.placeBid(t, lot, "alice", 150)
	env.placeBid(t, lot, "bob", 200)
	env.placeBid(t, lot, "carol", 250)
	env.placeBid(t, lot, "dave", 300)
	require.NoError(t, env.manager.StartCascade(context.Background(), lot.ID))

	for i := 0; i < 3; i++ {
		require.NoError(t, env.manager.AdvanceCascade(context.Background()))
		holding := env.offersByStatus(t, lot.ID, models.HoldingOfferStatuses...)
		require.LessOrEqual(t, len(holding), lot.Quantity)
	}
}
