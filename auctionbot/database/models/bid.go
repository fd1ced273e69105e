package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Bid is append-only. Rows are never updated or deleted; ranking and leader
// are always derived from the full bid history of a lot.
type Bid struct {
	bun.BaseModel `bun:"table:bids,alias:b"`

	ID        int64     `bun:"id,pk,autoincrement"`
	LotID     int64     `bun:"lot_id,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	Username  string    `bun:"username"`
	Amount    int64     `bun:"amount,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// RankedBidder is one row of a lot's ranking: a distinct bidder with their
// best amount, ordered best-first.
type RankedBidder struct {
	UserID string `bun:"user_id"`
	Amount int64  `bun:"amount"`
}
