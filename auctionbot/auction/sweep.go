package auction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
	"github.com/kirillLeo1/Auction/auctionbot/metrics"
)

// AdvanceCascade is the reconciliation entry point and the only place that
// promotes CANCELED offers back to OFFERED. One pass runs, in order: the
// reminder pass, the expiry pass, the per-lot promotion pass and the invoice
// retry pass. Running it again with no intervening state change is a no-op.
func (m *Manager) AdvanceCascade(ctx context.Context) error {
	start := time.Now()
	metrics.SweepRuns.Inc()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	now := m.clock.Now()
	return errors.Join(
		m.remindDueOffers(ctx, now),
		m.expireOverdueOffers(ctx, now),
		m.reconcileLots(ctx, now),
		m.retryMissingInvoices(ctx),
	)
}

// remindDueOffers sends the one-time deadline reminder for active offers
// entering the reminder window. The reminder_sent flip is a conditional
// update, so the reminder goes out at most once per hold window even if two
// sweep passes overlap.
func (m *Manager) remindDueOffers(ctx context.Context, now time.Time) error {
	due, err := m.offers.ListDueReminders(ctx, now.Add(m.cfg.ReminderLeadTime))
	if err != nil {
		return err
	}

	for _, offer := range due {
		claimed, err := m.offers.ClaimReminder(ctx, offer.ID)
		if err != nil {
			slog.Error("Failed to claim reminder",
				slog.Int64("offer_id", offer.ID),
				slog.Any("error", err))
			continue
		}
		if !claimed {
			continue
		}

		lot, err := m.lots.GetByID(ctx, offer.LotID)
		if err != nil || lot == nil {
			slog.Error("Reminder claimed but lot lookup failed",
				slog.Int64("offer_id", offer.ID),
				slog.Any("error", err))
			continue
		}
		if err := m.notifier.OfferReminder(ctx, lot, offer); err != nil {
			slog.Warn("Failed to send deadline reminder",
				slog.Int64("offer_id", offer.ID),
				slog.String("user_id", offer.UserID),
				slog.Any("error", err))
			continue
		}
		metrics.RemindersSent.Inc()
	}
	return nil
}

// expireOverdueOffers moves active offers past their hold deadline to
// EXPIRED. The freed units are handed out by the promotion pass that follows.
func (m *Manager) expireOverdueOffers(ctx context.Context, now time.Time) error {
	overdue, err := m.offers.ListExpired(ctx, now)
	if err != nil {
		return err
	}

	for _, offer := range overdue {
		ok, err := m.offers.TransitionStatus(ctx, offer.ID, models.ActiveOfferStatuses, models.OfferStatusExpired)
		if err != nil {
			slog.Error("Failed to expire offer",
				slog.Int64("offer_id", offer.ID),
				slog.Any("error", err))
			continue
		}
		if !ok {
			// Paid or declined between listing and here.
			continue
		}
		metrics.OfferTransitions.WithLabelValues(string(models.OfferStatusExpired)).Inc()
		slog.Info("Offer expired",
			slog.Int64("offer_id", offer.ID),
			slog.Int64("lot_id", offer.LotID),
			slog.Int("rank", offer.Rank))
	}
	return nil
}

// reconcileLots tops up every cascade-relevant lot: while the count of active
// offers is below the remaining (unpaid) quantity, the lowest-ranked CANCELED
// offers are promoted to OFFERED with a fresh deadline and a new invoice.
// Sold-out lots get their public listing removed as a safety net in case the
// payment path failed to.
func (m *Manager) reconcileLots(ctx context.Context, now time.Time) error {
	lots, err := m.lots.ListByStatus(ctx, models.LotStatusFinished)
	if err != nil {
		return err
	}

	var errs []error
	for _, lot := range lots {
		promoted, soldOut, err := m.promoteNextCandidates(ctx, lot.ID, now)
		if err != nil {
			slog.Error("Promotion pass failed",
				slog.Int64("lot_id", lot.ID),
				slog.Any("error", err))
			errs = append(errs, err)
			continue
		}

		for _, offer := range promoted {
			metrics.OffersGranted.WithLabelValues("promotion").Inc()
			slog.Info("Offer promoted",
				slog.Int64("offer_id", offer.ID),
				slog.Int64("lot_id", lot.ID),
				slog.Int("rank", offer.Rank))
			m.issueInvoiceAndNotify(ctx, lot, offer)
		}
		if soldOut {
			m.removeListing(ctx, lot)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) promoteNextCandidates(ctx context.Context, lotID int64, now time.Time) (promoted []*models.Offer, soldOut bool, err error) {
	err = m.lots.WithLotLock(ctx, lotID, func(ctx context.Context, lot *models.Lot) error {
		if lot == nil {
			return ErrLotNotFound
		}

		paid, err := m.offers.CountByStatus(ctx, lot.ID, models.OfferStatusPaid)
		if err != nil {
			return err
		}
		if paid > lot.Quantity {
			// The capacity invariant never allows this; don't "fix" it.
			slog.Error("Integrity violation: more paid offers than quantity",
				slog.Int64("lot_id", lot.ID),
				slog.Int("paid", paid),
				slog.Int("quantity", lot.Quantity))
			return nil
		}

		remaining := lot.Quantity - paid
		if remaining <= 0 {
			soldOut = true
			return nil
		}

		active, err := m.offers.CountByStatus(ctx, lot.ID, models.ActiveOfferStatuses...)
		if err != nil {
			return err
		}
		if remaining <= active {
			return nil
		}

		candidates, err := m.offers.NextCanceled(ctx, lot.ID, remaining-active)
		if err != nil {
			return err
		}

		for _, offer := range candidates {
			ok, err := m.offers.TransitionStatus(ctx, offer.ID,
				[]models.OfferStatus{models.OfferStatusCanceled}, models.OfferStatusOffered)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			offer.Status = models.OfferStatusOffered
			offer.HoldUntil = now.Add(m.cfg.HoldDuration)
			offer.ReminderSent = false
			offer.InvoiceID = ""
			offer.InvoiceURL = ""
			if err := m.offers.Update(ctx, offer); err != nil {
				return err
			}
			promoted = append(promoted, offer)
		}
		return nil
	})
	return promoted, soldOut, err
}

// retryMissingInvoices re-requests invoices for active offers whose original
// invoice creation failed during a grant. The user is re-notified because the
// original notification carried no payment link.
func (m *Manager) retryMissingInvoices(ctx context.Context) error {
	missing, err := m.offers.ListMissingInvoice(ctx)
	if err != nil {
		return err
	}

	for _, offer := range missing {
		lot, err := m.lots.GetByID(ctx, offer.LotID)
		if err != nil || lot == nil {
			slog.Error("Invoice retry skipped, lot lookup failed",
				slog.Int64("offer_id", offer.ID),
				slog.Any("error", err))
			continue
		}

		invoiceID, pageURL, err := m.invoicer.CreateInvoice(ctx, lot, offer)
		if err != nil {
			// Still down; the next pass tries again without spamming the user.
			slog.Warn("Invoice retry failed",
				slog.Int64("offer_id", offer.ID),
				slog.Any("error", err))
			continue
		}
		offer.InvoiceID = invoiceID
		offer.InvoiceURL = pageURL
		if err := m.offers.Update(ctx, offer); err != nil {
			slog.Error("Failed to store retried invoice reference",
				slog.Int64("offer_id", offer.ID),
				slog.Any("error", err))
			continue
		}
		if err := m.notifier.OfferGranted(ctx, lot, offer); err != nil {
			slog.Warn("Offer notification failed after invoice retry",
				slog.Int64("offer_id", offer.ID),
				slog.Any("error", err))
		}
	}
	return nil
}
