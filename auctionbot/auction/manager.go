package auction

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillLeo1/Auction/auctionbot/clock"
	"github.com/kirillLeo1/Auction/auctionbot/database/models"
	"github.com/kirillLeo1/Auction/auctionbot/database/repositories"
)

// Notifier is the Messenger collaborator as seen by the cascade. Every method
// is best-effort: failures are logged by the caller and never roll back the
// state change that triggered them.
type Notifier interface {
	OfferGranted(ctx context.Context, lot *models.Lot, offer *models.Offer) error
	OfferReminder(ctx context.Context, lot *models.Lot, offer *models.Offer) error
	Outbid(ctx context.Context, lot *models.Lot, previousLeaderID string) error
	LotDisplayUpdate(ctx context.Context, lot *models.Lot) error
	LotDisplayRemove(ctx context.Context, lot *models.Lot) error
	PaymentReceived(ctx context.Context, lot *models.Lot, offer *models.Offer) error
	ContactDetailsReceived(ctx context.Context, lot *models.Lot, offer *models.Offer) error
}

// Invoicer is the Payment Gateway collaborator.
type Invoicer interface {
	CreateInvoice(ctx context.Context, lot *models.Lot, offer *models.Offer) (invoiceID string, pageURL string, err error)
}

type Config struct {
	// HoldDuration is the time-box for a granted offer.
	HoldDuration time.Duration
	// ReminderLeadTime is how long before the deadline the one-time reminder
	// goes out. Must be shorter than HoldDuration.
	ReminderLeadTime time.Duration
	// Currency is the single supported currency code for payment validation.
	Currency string
}

// Manager owns the cascade/offer state machine: it grants time-boxed purchase
// rights to ranked candidates, tracks payment and hands reclaimed units to the
// next candidate in rank order.
type Manager struct {
	lots     repositories.LotRepository
	bids     repositories.BidRepository
	offers   repositories.OfferRepository
	notifier Notifier
	invoicer Invoicer
	clock    clock.Clock
	cfg      Config
}

func NewManager(
	lots repositories.LotRepository,
	bids repositories.BidRepository,
	offers repositories.OfferRepository,
	notifier Notifier,
	invoicer Invoicer,
	clk clock.Clock,
	cfg Config,
) *Manager {
	return &Manager{
		lots:     lots,
		bids:     bids,
		offers:   offers,
		notifier: notifier,
		invoicer: invoicer,
		clock:    clk,
		cfg:      cfg,
	}
}

// issueInvoiceAndNotify performs the external half of an offer grant, after
// the offer row is already committed. An invoice failure leaves the offer
// OFFERED with an empty invoice reference; the sweep retries it later.
func (m *Manager) issueInvoiceAndNotify(ctx context.Context, lot *models.Lot, offer *models.Offer) {
	invoiceID, pageURL, err := m.invoicer.CreateInvoice(ctx, lot, offer)
	if err != nil {
		slog.Warn("Invoice creation failed, leaving offer for sweep retry",
			slog.Int64("offer_id", offer.ID),
			slog.Int64("lot_id", lot.ID),
			slog.Any("error", err))
	} else {
		offer.InvoiceID = invoiceID
		offer.InvoiceURL = pageURL
		if err := m.offers.Update(ctx, offer); err != nil {
			slog.Error("Failed to store invoice reference",
				slog.Int64("offer_id", offer.ID),
				slog.Any("error", err))
		}
	}

	if err := m.notifier.OfferGranted(ctx, lot, offer); err != nil {
		slog.Warn("Offer notification failed",
			slog.Int64("offer_id", offer.ID),
			slog.String("user_id", offer.UserID),
			slog.Any("error", err))
	}
}
