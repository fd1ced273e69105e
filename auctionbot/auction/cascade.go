package auction

import (
	"context"
	"log/slog"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
	"github.com/kirillLeo1/Auction/auctionbot/metrics"
)

// StartCascade closes an auction and grants time-boxed purchase rights to the
// top-quantity ranked bidders. Every distinct bidder gets an offer row: ranks
// within quantity start OFFERED with a hold deadline, the rest start CANCELED
// as latent reserve candidates. Invoices and notifications are issued after
// the offer rows are committed, so a gateway failure never corrupts the
// cascade; the sweep retries missing invoices.
//
// Fixed-price lots are only transitioned to FINISHED, no cascade is started.
func (m *Manager) StartCascade(ctx context.Context, lotID int64) error {
	var granted []*models.Offer
	var closedLot *models.Lot
	var convertedLot *models.Lot

	err := m.lots.WithLotLock(ctx, lotID, func(ctx context.Context, lot *models.Lot) error {
		if lot == nil {
			return ErrLotNotFound
		}
		if lot.Status == models.LotStatusFinished {
			// Already cascaded; finishing twice must not grant twice.
			return nil
		}
		if lot.Status != models.LotStatusActive {
			return ErrLotNotActive
		}

		var ranking []models.RankedBidder
		if !lot.IsSale() {
			var err error
			ranking, err = m.bids.Ranking(ctx, lot.ID)
			if err != nil {
				return err
			}
			if len(ranking) == 0 {
				// Nobody bid. The lot is relisted as a fixed-price sale
				// at its current price instead of closing empty-handed.
				lot.MinStep = 0
				convertedLot = lot
				return m.lots.Update(ctx, lot)
			}
		}

		lot.Status = models.LotStatusFinished
		if err := m.lots.Update(ctx, lot); err != nil {
			return err
		}
		closedLot = lot

		if lot.IsSale() {
			return nil
		}

		now := m.clock.Now()
		for i, bidder := range ranking {
			rank := i + 1
			offer := &models.Offer{
				LotID:  lot.ID,
				UserID: bidder.UserID,
				Price:  bidder.Amount,
				Rank:   rank,
				Status: models.OfferStatusCanceled,
			}
			if rank <= lot.Quantity {
				offer.Status = models.OfferStatusOffered
				offer.HoldUntil = now.Add(m.cfg.HoldDuration)
			}
			if err := m.offers.Create(ctx, offer); err != nil {
				return err
			}
			if offer.Status == models.OfferStatusOffered {
				granted = append(granted, offer)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if convertedLot != nil {
		if err := m.notifier.LotDisplayUpdate(ctx, convertedLot); err != nil {
			slog.Error("Failed to refresh relisted lot",
				slog.Int64("lot_id", lotID),
				slog.Any("error", err))
		}
		slog.Info("Bid-less auction relisted as sale",
			slog.Int64("lot_id", lotID),
			slog.Int64("price", convertedLot.CurrentPrice))
		return nil
	}

	for _, offer := range granted {
		metrics.OffersGranted.WithLabelValues("cascade").Inc()
		m.issueInvoiceAndNotify(ctx, closedLot, offer)
	}

	slog.Info("Cascade started",
		slog.Int64("lot_id", lotID),
		slog.Int("granted", len(granted)))
	return nil
}

// Decline turns down an active offer. The freed unit is handed to the next
// candidate by the reconciliation sweep, not here: promotion needs a
// lot-wide view of remaining-vs-claimed and lives in exactly one place.
func (m *Manager) Decline(ctx context.Context, offerID int64, userID string) error {
	offer, err := m.offers.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if offer == nil {
		return ErrOfferNotFound
	}
	if offer.UserID != userID {
		return ErrNotOfferOwner
	}

	ok, err := m.offers.TransitionStatus(ctx, offerID, models.ActiveOfferStatuses, models.OfferStatusDeclined)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOfferNotActive
	}

	metrics.OfferTransitions.WithLabelValues(string(models.OfferStatusDeclined)).Inc()
	slog.Info("Offer declined",
		slog.Int64("offer_id", offerID),
		slog.String("user_id", userID))
	return nil
}

// Postpone marks an active offer as explicitly deferred by the user. The hold
// deadline is unchanged if already set; a missing deadline gets a fresh one.
// POSTPONED follows the same expiry and promotion rules as OFFERED.
func (m *Manager) Postpone(ctx context.Context, offerID int64, userID string) error {
	offer, err := m.offers.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if offer == nil {
		return ErrOfferNotFound
	}
	if offer.UserID != userID {
		return ErrNotOfferOwner
	}

	ok, err := m.offers.TransitionStatus(ctx, offerID, models.ActiveOfferStatuses, models.OfferStatusPostponed)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOfferNotActive
	}

	if offer.HoldUntil.IsZero() {
		if err := m.offers.SetHoldUntil(ctx, offerID, m.clock.Now().Add(m.cfg.HoldDuration)); err != nil {
			return err
		}
	}

	metrics.OfferTransitions.WithLabelValues(string(models.OfferStatusPostponed)).Inc()
	return nil
}

// Buy is the fixed-price purchase intent. It grants an OFFERED offer with an
// invoice right away when the lot still has uncommitted units, enforcing both
// the capacity invariant and the single-active-claim rule under the lot lock.
func (m *Manager) Buy(ctx context.Context, lotPublicID int64, userID string) (*models.Offer, error) {
	lot, err := m.lots.GetByPublicID(ctx, lotPublicID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, ErrLotNotFound
	}

	var created *models.Offer
	err = m.lots.WithLotLock(ctx, lot.ID, func(ctx context.Context, locked *models.Lot) error {
		if locked == nil {
			return ErrLotNotFound
		}
		if locked.Status != models.LotStatusActive {
			return ErrLotNotActive
		}
		if !locked.IsSale() {
			return ErrNotSale
		}

		holding, err := m.offers.CountByStatus(ctx, locked.ID, models.HoldingOfferStatuses...)
		if err != nil {
			return err
		}
		if holding >= locked.Quantity {
			return ErrSoldOut
		}

		existing, err := m.offers.ActiveForUser(ctx, locked.ID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyClaimed
		}

		maxRank, err := m.offers.MaxRank(ctx, locked.ID)
		if err != nil {
			return err
		}

		created = &models.Offer{
			LotID:     locked.ID,
			UserID:    userID,
			Price:     locked.CurrentPrice,
			Rank:      maxRank + 1,
			Status:    models.OfferStatusOffered,
			HoldUntil: m.clock.Now().Add(m.cfg.HoldDuration),
		}
		return m.offers.Create(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	metrics.OffersGranted.WithLabelValues("sale").Inc()
	m.issueInvoiceAndNotify(ctx, lot, created)
	return created, nil
}

// ContactDetails carries the delivery form filled in after payment (or on
// postpone).
type ContactDetails struct {
	FullName   string
	Phone      string
	CityRegion string
	Delivery   string
	Address    string
	Comment    string
}

// SetContactDetails stores delivery details on the user's offer and forwards
// a summary to the operators.
func (m *Manager) SetContactDetails(ctx context.Context, offerID int64, userID string, details ContactDetails) error {
	offer, err := m.offers.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if offer == nil {
		return ErrOfferNotFound
	}
	if offer.UserID != userID {
		return ErrNotOfferOwner
	}

	offer.ContactFullName = details.FullName
	offer.ContactPhone = details.Phone
	offer.ContactCityRegion = details.CityRegion
	offer.ContactDelivery = details.Delivery
	offer.ContactAddress = details.Address
	offer.ContactComment = details.Comment
	if err := m.offers.Update(ctx, offer); err != nil {
		return err
	}

	lot, err := m.lots.GetByID(ctx, offer.LotID)
	if err != nil || lot == nil {
		slog.Warn("Contact details stored but lot lookup failed",
			slog.Int64("offer_id", offerID),
			slog.Any("error", err))
		return nil
	}
	if err := m.notifier.ContactDetailsReceived(ctx, lot, offer); err != nil {
		slog.Warn("Failed to forward contact details to operators",
			slog.Int64("offer_id", offerID),
			slog.Any("error", err))
	}
	return nil
}
