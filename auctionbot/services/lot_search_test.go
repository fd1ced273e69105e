package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
)

type stubLots struct {
	byStatus map[models.LotStatus][]*models.Lot
}

func (s *stubLots) Create(_ context.Context, _ *models.Lot, _ []*models.LotPhoto) error {
	return nil
}

func (s *stubLots) GetByID(_ context.Context, _ int64) (*models.Lot, error) { return nil, nil }

func (s *stubLots) GetByPublicID(_ context.Context, _ int64) (*models.Lot, error) { return nil, nil }

func (s *stubLots) ListByStatus(_ context.Context, status models.LotStatus) ([]*models.Lot, error) {
	return s.byStatus[status], nil
}

func (s *stubLots) Update(_ context.Context, _ *models.Lot) error { return nil }

func (s *stubLots) Photos(_ context.Context, _ int64) ([]*models.LotPhoto, error) { return nil, nil }

func (s *stubLots) WithLotLock(_ context.Context, _ int64, _ func(ctx context.Context, lot *models.Lot) error) error {
	return nil
}

func TestLotSearchRanksFuzzyMatches(t *testing.T) {
	lots := &stubLots{byStatus: map[models.LotStatus][]*models.Lot{
		models.LotStatusActive: {
			{ID: 1, Title: "Signed vinyl record"},
			{ID: 2, Title: "Vintage camera"},
			{ID: 3, Title: "Concert poster"},
		},
	}}
	search := NewLotSearch(lots)

	results, err := search.Search(context.Background(), "vinyl", models.LotStatusActive)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int64(1), results[0].ID)
}

func TestLotSearchEmptyQueryReturnsPool(t *testing.T) {
	lots := &stubLots{byStatus: map[models.LotStatus][]*models.Lot{
		models.LotStatusActive: {
			{ID: 1, Title: "Signed vinyl record"},
		},
		models.LotStatusDraft: {
			{ID: 2, Title: "Vintage camera"},
		},
	}}
	search := NewLotSearch(lots)

	results, err := search.Search(context.Background(), "  ", models.LotStatusActive, models.LotStatusDraft)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestLotSearchIsCaseInsensitive(t *testing.T) {
	lots := &stubLots{byStatus: map[models.LotStatus][]*models.Lot{
		models.LotStatusFinished: {
			{ID: 7, Title: "CAMERA lens kit"},
		},
	}}
	search := NewLotSearch(lots)

	results, err := search.Search(context.Background(), "Camera", models.LotStatusFinished)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int64(7), results[0].ID)
}
