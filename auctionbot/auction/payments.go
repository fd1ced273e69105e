package auction

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
	"github.com/kirillLeo1/Auction/auctionbot/metrics"
)

// OnPaymentConfirmed consumes a verified "payment succeeded" event from the
// gateway. It is idempotent: a duplicate callback for an already PAID offer is
// acknowledged without side effects. Validation failures (unknown offer,
// invoice mismatch, wrong amount or currency) are logged and swallowed —
// the provider retries on non-2xx, so the boundary must always ack. A non-nil
// error here means the store itself failed.
func (m *Manager) OnPaymentConfirmed(ctx context.Context, offerID int64, invoiceID string, amount int64, currency string) error {
	offer, err := m.offers.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if offer == nil {
		slog.Warn("Payment for unknown offer ignored",
			slog.Int64("offer_id", offerID),
			slog.String("invoice_id", invoiceID))
		metrics.PaymentsTotal.WithLabelValues("unknown_offer").Inc()
		return nil
	}
	if offer.Status == models.OfferStatusPaid {
		metrics.PaymentsTotal.WithLabelValues("duplicate").Inc()
		return nil
	}
	if offer.InvoiceID != "" && offer.InvoiceID != invoiceID {
		slog.Warn("Payment with mismatched invoice reference ignored",
			slog.Int64("offer_id", offerID),
			slog.String("expected", offer.InvoiceID),
			slog.String("got", invoiceID))
		metrics.PaymentsTotal.WithLabelValues("invoice_mismatch").Inc()
		return nil
	}
	if amount != offer.Price || !strings.EqualFold(currency, m.cfg.Currency) {
		slog.Warn("Payment with mismatched amount or currency ignored",
			slog.Int64("offer_id", offerID),
			slog.Int64("expected_amount", offer.Price),
			slog.Int64("got_amount", amount),
			slog.String("currency", currency))
		metrics.PaymentsTotal.WithLabelValues("amount_mismatch").Inc()
		return nil
	}

	var lot *models.Lot
	var soldOut bool

	err = m.lots.WithLotLock(ctx, offer.LotID, func(ctx context.Context, locked *models.Lot) error {
		if locked == nil {
			slog.Error("Paid offer references missing lot",
				slog.Int64("offer_id", offerID),
				slog.Int64("lot_id", offer.LotID))
			return nil
		}
		lot = locked

		// The user paid, even if the hold lapsed in the meantime; accept from
		// any non-terminal-paid status. Re-check under the lock for the
		// duplicate-callback race.
		ok, err := m.offers.TransitionStatus(ctx, offer.ID,
			[]models.OfferStatus{
				models.OfferStatusOffered,
				models.OfferStatusPostponed,
				models.OfferStatusExpired,
				models.OfferStatusCanceled,
				models.OfferStatusDeclined,
			},
			models.OfferStatusPaid)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		offer.Status = models.OfferStatusPaid
		offer.PaidAt = m.clock.Now()
		if offer.InvoiceID == "" {
			offer.InvoiceID = invoiceID
		}
		if err := m.offers.Update(ctx, offer); err != nil {
			return err
		}

		// Same remaining-vs-paid computation the sweep uses, inside the same
		// kind of lot transaction, so the two can never double-promote.
		paid, err := m.offers.CountByStatus(ctx, locked.ID, models.OfferStatusPaid)
		if err != nil {
			return err
		}
		if paid >= locked.Quantity {
			soldOut = true
			active, err := m.offers.ListByLotAndStatus(ctx, locked.ID, models.ActiveOfferStatuses...)
			if err != nil {
				return err
			}
			for _, other := range active {
				// CANCELED, not DECLINED: these users never got their chance.
				if _, err := m.offers.TransitionStatus(ctx, other.ID, models.ActiveOfferStatuses, models.OfferStatusCanceled); err != nil {
					return err
				}
				metrics.OfferTransitions.WithLabelValues(string(models.OfferStatusCanceled)).Inc()
			}
			// A sold-out fixed-price sale is done; auctions are FINISHED
			// already by StartCascade.
			if locked.Status == models.LotStatusActive {
				locked.Status = models.LotStatusFinished
				if err := m.lots.Update(ctx, locked); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if lot == nil {
		return nil
	}

	metrics.PaymentsTotal.WithLabelValues("ok").Inc()
	metrics.OfferTransitions.WithLabelValues(string(models.OfferStatusPaid)).Inc()
	slog.Info("Payment recorded",
		slog.Int64("offer_id", offer.ID),
		slog.Int64("lot_id", lot.ID),
		slog.String("invoice_id", offer.InvoiceID),
		slog.Bool("sold_out", soldOut))

	if err := m.notifier.PaymentReceived(ctx, lot, offer); err != nil {
		slog.Warn("Failed to prompt for delivery details",
			slog.Int64("offer_id", offer.ID),
			slog.Any("error", err))
	}
	if soldOut {
		m.removeListing(ctx, lot)
	}
	return nil
}

// removeListing takes the lot off public display once, clearing the stored
// message reference so repeated sweeps don't re-delete.
func (m *Manager) removeListing(ctx context.Context, lot *models.Lot) {
	if lot.MessageID == "" {
		return
	}
	if err := m.notifier.LotDisplayRemove(ctx, lot); err != nil {
		slog.Warn("Failed to remove sold-out listing",
			slog.Int64("lot_id", lot.ID),
			slog.Any("error", err))
		return
	}
	lot.MessageID = ""
	if err := m.lots.Update(ctx, lot); err != nil {
		slog.Error("Failed to clear listing message reference",
			slog.Int64("lot_id", lot.ID),
			slog.Any("error", err))
	}
}
