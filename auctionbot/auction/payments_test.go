package auction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
)

func TestPaymentMarksOfferPaid(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 1, 100, 50)
	env.placeBid(t, lot, "alice", 150)
	require.NoError(t, env.manager.StartCascade(context.Background(), lot.ID))

	offer := env.offersByStatus(t, lot.ID, models.OfferStatusOffered)[0]

	require.NoError(t, env.manager.OnPaymentConfirmed(context.Background(),
		offer.ID, offer.InvoiceID, offer.Price, testCurrency))

	paid, err := env.offers.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	require.Equal(t, models.OfferStatusPaid, paid.Status)
	require.Equal(t, env.clock.Now(), paid.PaidAt)
	require.Equal(t, []int64{offer.ID}, env.notifier.payments)

	// Quantity 1 and one payment: the listing comes down once.
	require.Equal(t, []int64{lot.ID}, env.notifier.removals)
	stored, err := env.lots.GetByID(context.Background(), lot.ID)
	require.NoError(t, err)
	require.Empty(t, stored.MessageID)
}

func TestPaymentDuplicateCallbackIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 1, 100, 50)
	env.placeBid(t, lot, "alice", 150)
	require.NoError(t, env.manager.StartCascade(context.Background(), lot.ID))

	offer := env.offersByStatus(t, lot.ID, models.OfferStatusOffered)[0]
	require.NoError(t, env.manager.OnPaymentConfirmed(context.Background(),
		offer.ID, offer.InvoiceID, offer.Price, testCurrency))
	require.NoError(t, env.manager.OnPaymentConfirmed(context.Background(),
		offer.ID, offer.InvoiceID, offer.Price, testCurrency))

	require.Len(t, env.notifier.payments, 1)
	require.Len(t, env.notifier.removals, 1)
}

func TestPaymentValidationFailuresAreAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 1, 100, 50)
	env.placeBid(t, lot, "alice", 150)
	require.NoError(t, env.manager.StartCascade(context.Background(), lot.ID))

	offer := env.offersByStatus(t, lot.ID, models.OfferStatusOffered)[0]

	// Unknown offer, wrong invoice, wrong amount and wrong currency are all
	// swallowed: the gateway must not redeliver them.
	require.NoError(t, env.manager.OnPaymentConfirmed(context.Background(),
		9999, "inv-x", 150, testCurrency))
	require.NoError(t, env.manager.OnPaymentConfirmed(context.Background(),
		offer.ID, "inv-other", offer.Price, testCurrency))
	require.NoError(t, env.manager.OnPaymentConfirmed(context.Background(),
		offer.ID, offer.InvoiceID, offer.Price-1, testCurrency))
	require.NoError(t, env.manager.OnPaymentConfirmed(context.Background(),
		offer.ID, offer.InvoiceID, offer.Price, "USD"))

	stored, err := env.offers.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	require.Equal(t, models.OfferStatusOffered, stored.Status)
	require.Empty(t, env.notifier.payments)
}

func TestLatePaymentAfterExpiryWins(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createAuction(t, 1, 100, 50)
	env.placeBid(t, lot, "alice", 150)
	env.placeBid(t, lot, "bob", 200)
	require.NoError(t, env.manager.StartCascade(context.Background(), lot.ID))

	winner := env.offersByStatus(t, lot.ID, models.OfferStatusOffered)[0]
	require.Equal(t, "bob", winner.UserID)

	// Bob misses the deadline and alice is promoted.
	env.clock.Advance(testHold + time.Minute)
	require.NoError(t, env.manager.AdvanceCascade(context.Background()))
	promoted := env.offersByStatus(t, lot.ID, models.OfferStatusOffered)[0]
	require.Equal(t, "alice", promoted.UserID)

	// Bob pays anyway: the money settles his expired claim and the lot is
	// sold out, so alice's fresh offer is withdrawn as CANCELED.
	require.NoError(t, env.manager.OnPaymentConfirmed(context.Background(),
		winner.ID, winner.InvoiceID, winner.Price, testCurrency))

	paid, err := env.offers.GetByID(context.Background(), winner.ID)
	require.NoError(t, err)
	require.Equal(t, models.OfferStatusPaid, paid.Status)

	withdrawn, err := env.offers.GetByID(context.Background(), promoted.ID)
	require.NoError(t, err)
	require.Equal(t, models.OfferStatusCanceled, withdrawn.Status)

	// The next sweep finds nothing to promote: no capacity remains.
	require.NoError(t, env.manager.AdvanceCascade(context.Background()))
	require.Empty(t, env.offersByStatus(t, lot.ID, models.OfferStatusOffered))
}

func TestPaymentFinishesSoldOutSale(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createSale(t, 1, 500)

	offer, err := env.manager.Buy(context.Background(), lot.PublicID, "alice")
	require.NoError(t, err)

	require.NoError(t, env.manager.OnPaymentConfirmed(context.Background(),
		offer.ID, offer.InvoiceID, offer.Price, testCurrency))

	stored, err := env.lots.GetByID(context.Background(), lot.ID)
	require.NoError(t, err)
	require.Equal(t, models.LotStatusFinished, stored.Status)
	require.Equal(t, []int64{lot.ID}, env.notifier.removals)
}
