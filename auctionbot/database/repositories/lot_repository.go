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

type LotRepository interface {
	Create(ctx context.Context, lot *models.Lot, photos []*models.LotPhoto) error
	GetByID(ctx context.Context, id int64) (*models.Lot, error)
	GetByPublicID(ctx context.Context, publicID int64) (*models.Lot, error)
	ListByStatus(ctx context.Context, status models.LotStatus) ([]*models.Lot, error)
	Update(ctx context.Context, lot *models.Lot) error
	Photos(ctx context.Context, lotID int64) ([]*models.LotPhoto, error)
	// WithLotLock runs fn inside a transaction holding a row lock on the lot.
	// Repository calls made with the ctx passed to fn join that transaction,
	// which serializes all mutations per lot id.
	WithLotLock(ctx context.Context, lotID int64, fn func(ctx context.Context, lot *models.Lot) error) error
}

type lotRepository struct {
	db *bun.DB
}

func NewLotRepository(db *bun.DB) LotRepository {
	return &lotRepository{db: db}
}

func (r *lotRepository) Create(ctx context.Context, lot *models.Lot, photos []*models.LotPhoto) error {
	return withTx(ctx, r.db, func(ctx context.Context) error {
		var maxPublicID int64
		err := idb(ctx, r.db).NewSelect().
			Model((*models.Lot)(nil)).
			ColumnExpr("COALESCE(MAX(public_id), 0)").
			Scan(ctx, &maxPublicID)
		if err != nil {
			return fmt.Errorf("failed to allocate public id: %w", err)
		}

		lot.PublicID = maxPublicID + 1
		lot.CreatedAt = time.Now()
		lot.UpdatedAt = time.Now()
		if lot.Status == "" {
			lot.Status = models.LotStatusDraft
		}

		if _, err := idb(ctx, r.db).NewInsert().Model(lot).Exec(ctx); err != nil {
			return fmt.Errorf("failed to create lot: %w", err)
		}

		for _, photo := range photos {
			photo.LotID = lot.ID
		}
		if len(photos) > 0 {
			if _, err := idb(ctx, r.db).NewInsert().Model(&photos).Exec(ctx); err != nil {
				return fmt.Errorf("failed to attach lot photos: %w", err)
			}
		}
		return nil
	})
}

func (r *lotRepository) GetByID(ctx context.Context, id int64) (*models.Lot, error) {
	lot := new(models.Lot)
	err := idb(ctx, r.db).NewSelect().
		Model(lot).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return lot, nil
}

func (r *lotRepository) GetByPublicID(ctx context.Context, publicID int64) (*models.Lot, error) {
	lot := new(models.Lot)
	err := idb(ctx, r.db).NewSelect().
		Model(lot).
		Where("public_id = ?", publicID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lot by public id: %w", err)
	}
	return lot, nil
}

func (r *lotRepository) ListByStatus(ctx context.Context, status models.LotStatus) ([]*models.Lot, error) {
	var lots []*models.Lot
	err := idb(ctx, r.db).NewSelect().
		Model(&lots).
		Where("status = ?", status).
		Order("public_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	return lots, nil
}

func (r *lotRepository) Update(ctx context.Context, lot *models.Lot) error {
	lot.UpdatedAt = time.Now()
	_, err := idb(ctx, r.db).NewUpdate().
		Model(lot).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update lot: %w", err)
	}
	return nil
}

func (r *lotRepository) Photos(ctx context.Context, lotID int64) ([]*models.LotPhoto, error) {
	var photos []*models.LotPhoto
	err := idb(ctx, r.db).NewSelect().
		Model(&photos).
		Where("lot_id = ?", lotID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lot photos: %w", err)
	}
	return photos, nil
}

func (r *lotRepository) WithLotLock(ctx context.Context, lotID int64, fn func(ctx context.Context, lot *models.Lot) error) error {
	return withTx(ctx, r.db, func(ctx context.Context) error {
		lot := new(models.Lot)
		err := idb(ctx, r.db).NewSelect().
			Model(lot).
			Where("id = ?", lotID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fn(ctx, nil)
			}
			return fmt.Errorf("failed to lock lot: %w", err)
		}
		return fn(ctx, lot)
	})
}
