package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
	"github.com/uptrace/bun"
)

type OfferRepository interface {
	Create(ctx context.Context, offer *models.Offer) error
	GetByID(ctx context.Context, id int64) (*models.Offer, error)
	Update(ctx context.Context, offer *models.Offer) error
	// TransitionStatus moves an offer from any of the given statuses to the
	// target status. Returns false when the offer was no longer in one of
	// them, making transitions exactly-once under concurrent triggers.
	TransitionStatus(ctx context.Context, offerID int64, from []models.OfferStatus, to models.OfferStatus) (bool, error)
	// SetHoldUntil writes only the hold deadline, leaving concurrently
	// updated columns (reminder_sent in particular) untouched.
	SetHoldUntil(ctx context.Context, offerID int64, holdUntil time.Time) error
	ActiveForUser(ctx context.Context, lotID int64, userID string) (*models.Offer, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Offer, error)
	CountByStatus(ctx context.Context, lotID int64, statuses ...models.OfferStatus) (int, error)
	ListByLotAndStatus(ctx context.Context, lotID int64, statuses ...models.OfferStatus) ([]*models.Offer, error)
	// NextCanceled returns up to limit CANCELED offers for the lot, lowest
	// rank first. These are the latent reserve candidates for promotion.
	NextCanceled(ctx context.Context, lotID int64, limit int) ([]*models.Offer, error)
	MaxRank(ctx context.Context, lotID int64) (int, error)
	ListDueReminders(ctx context.Context, cutoff time.Time) ([]*models.Offer, error)
	// ClaimReminder flips reminder_sent for an offer and reports whether this
	// caller won the flip, so a reminder goes out at most once per hold window.
	ClaimReminder(ctx context.Context, offerID int64) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]*models.Offer, error)
	ListMissingInvoice(ctx context.Context) ([]*models.Offer, error)
}

type offerRepository struct {
	db *bun.DB
}

func NewOfferRepository(db *bun.DB) OfferRepository {
	return &offerRepository{db: db}
}

func (r *offerRepository) Create(ctx context.Context, offer *models.Offer) error {
	offer.CreatedAt = time.Now()
	offer.UpdatedAt = time.Now()
	if _, err := idb(ctx, r.db).NewInsert().Model(offer).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	return nil
}

func (r *offerRepository) GetByID(ctx context.Context, id int64) (*models.Offer, error) {
	offer := new(models.Offer)
	err := idb(ctx, r.db).NewSelect().
		Model(offer).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return offer, nil
}

func (r *offerRepository) Update(ctx context.Context, offer *models.Offer) error {
	offer.UpdatedAt = time.Now()
	_, err := idb(ctx, r.db).NewUpdate().
		Model(offer).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update offer: %w", err)
	}
	return nil
}

func (r *offerRepository) TransitionStatus(ctx context.Context, offerID int64, from []models.OfferStatus, to models.OfferStatus) (bool, error) {
	res, err := idb(ctx, r.db).NewUpdate().
		Model((*models.Offer)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", offerID).
		Where("status IN (?)", bun.In(from)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to transition offer status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *offerRepository) SetHoldUntil(ctx context.Context, offerID int64, holdUntil time.Time) error {
	_, err := idb(ctx, r.db).NewUpdate().
		Model((*models.Offer)(nil)).
		Set("hold_until = ?", holdUntil).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", offerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set offer hold deadline: %w", err)
	}
	return nil
}

func (r *offerRepository) ActiveForUser(ctx context.Context, lotID int64, userID string) (*models.Offer, error) {
	offer := new(models.Offer)
	err := idb(ctx, r.db).NewSelect().
		Model(offer).
		Where("lot_id = ?", lotID).
		Where("user_id = ?", userID).
		Where("status IN (?)", bun.In(models.ActiveOfferStatuses)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active offer: %w", err)
	}
	return offer, nil
}

func (r *offerRepository) ListForUser(ctx context.Context, userID string) ([]*models.Offer, error) {
	var offers []*models.Offer
	err := idb(ctx, r.db).NewSelect().
		Model(&offers).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers for user: %w", err)
	}
	return offers, nil
}

func (r *offerRepository) CountByStatus(ctx context.Context, lotID int64, statuses ...models.OfferStatus) (int, error) {
	count, err := idb(ctx, r.db).NewSelect().
		Model((*models.Offer)(nil)).
		Where("lot_id = ?", lotID).
		Where("status IN (?)", bun.In(statuses)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count offers: %w", err)
	}
	return count, nil
}

func (r *offerRepository) ListByLotAndStatus(ctx context.Context, lotID int64, statuses ...models.OfferStatus) ([]*models.Offer, error) {
	var offers []*models.Offer
	err := idb(ctx, r.db).NewSelect().
		Model(&offers).
		Where("lot_id = ?", lotID).
		Where("status IN (?)", bun.In(statuses)).
		Order("rank_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	return offers, nil
}

func (r *offerRepository) NextCanceled(ctx context.Context, lotID int64, limit int) ([]*models.Offer, error) {
	var offers []*models.Offer
	err := idb(ctx, r.db).NewSelect().
		Model(&offers).
		Where("lot_id = ?", lotID).
		Where("status = ?", models.OfferStatusCanceled).
		Order("rank_index ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotion candidates: %w", err)
	}
	return offers, nil
}

func (r *offerRepository) MaxRank(ctx context.Context, lotID int64) (int, error) {
	var maxRank int
	err := idb(ctx, r.db).NewSelect().
		Model((*models.Offer)(nil)).
		ColumnExpr("COALESCE(MAX(rank_index), 0)").
		Where("lot_id = ?", lotID).
		Scan(ctx, &maxRank)
	if err != nil {
		return 0, fmt.Errorf("failed to get max rank: %w", err)
	}
	return maxRank, nil
}

func (r *offerRepository) ListDueReminders(ctx context.Context, cutoff time.Time) ([]*models.Offer, error) {
	var offers []*models.Offer
	err := idb(ctx, r.db).NewSelect().
		Model(&offers).
		Where("status IN (?)", bun.In(models.ActiveOfferStatuses)).
		Where("reminder_sent = FALSE").
		Where("hold_until IS NOT NULL").
		Where("hold_until <= ?", cutoff).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}
	return offers, nil
}

func (r *offerRepository) ClaimReminder(ctx context.Context, offerID int64) (bool, error) {
	res, err := idb(ctx, r.db).NewUpdate().
		Model((*models.Offer)(nil)).
		Set("reminder_sent = TRUE").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", offerID).
		Where("reminder_sent = FALSE").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *offerRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.Offer, error) {
	var offers []*models.Offer
	err := idb(ctx, r.db).NewSelect().
		Model(&offers).
		Where("status IN (?)", bun.In(models.ActiveOfferStatuses)).
		Where("hold_until IS NOT NULL").
		Where("hold_until < ?", now).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired offers: %w", err)
	}
	return offers, nil
}

func (r *offerRepository) ListMissingInvoice(ctx context.Context) ([]*models.Offer, error) {
	var offers []*models.Offer
	err := idb(ctx, r.db).NewSelect().
		Model(&offers).
		Where("status IN (?)", bun.In(models.ActiveOfferStatuses)).
		Where("invoice_id = ''").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers without invoices: %w", err)
	}
	return offers, nil
}
