package services

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
	"github.com/kirillLeo1/Auction/auctionbot/database/repositories"
)

// lotSource implements fuzzy.Source over lot titles.
type lotSource []*models.Lot

func (s lotSource) String(i int) string {
	return strings.ToLower(s[i].Title)
}

func (s lotSource) Len() int {
	return len(s)
}

// LotSearch answers free-text lot lookups for the search command and the
// admin tooling.
type LotSearch struct {
	lots repositories.LotRepository
}

func NewLotSearch(lots repositories.LotRepository) *LotSearch {
	return &LotSearch{lots: lots}
}

// Search fuzzy-matches the query against titles of lots in the given
// statuses, best match first. An empty query returns everything as-is.
func (s *LotSearch) Search(ctx context.Context, query string, statuses ...models.LotStatus) ([]*models.Lot, error) {
	var pool []*models.Lot
	for _, status := range statuses {
		lots, err := s.lots.ListByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		pool = append(pool, lots...)
	}

	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return pool, nil
	}

	matches := fuzzy.FindFrom(query, lotSource(pool))
	results := make([]*models.Lot, 0, len(matches))
	for _, match := range matches {
		results = append(results, pool[match.Index])
	}
	return results, nil
}
