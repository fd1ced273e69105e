package models

import (
	"time"

	"github.com/uptrace/bun"
)

type LotStatus string

const (
	LotStatusDraft    LotStatus = "draft"
	LotStatusActive   LotStatus = "active"
	LotStatusFinished LotStatus = "finished"
)

// Lot is one sellable listing. MinStep == 0 means fixed-price sale mode,
// MinStep > 0 means ranked-auction mode.
type Lot struct {
	bun.BaseModel `bun:"table:lots,alias:l"`

	ID              int64     `bun:"id,pk,autoincrement"`
	PublicID        int64     `bun:"public_id,notnull,unique"`
	Title           string    `bun:"title,notnull"`
	Description     string    `bun:"description"`
	StartPrice      int64     `bun:"start_price,notnull"`
	MinStep         int64     `bun:"min_step,notnull"`
	Quantity        int       `bun:"quantity,notnull"`
	Status          LotStatus `bun:"status,notnull"`
	CurrentPrice    int64     `bun:"current_price,notnull"`
	CurrentWinnerID string    `bun:"current_winner_id"`
	ChannelID       string    `bun:"channel_id"`
	MessageID       string    `bun:"message_id"`
	CreatedBy       string    `bun:"created_by"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (l *Lot) IsSale() bool {
	return l.MinStep == 0
}

// MinAllowedBid is the lowest amount the next bid must reach.
func (l *Lot) MinAllowedBid() int64 {
	return l.CurrentPrice + l.MinStep
}

type LotPhoto struct {
	bun.BaseModel `bun:"table:lot_photos,alias:lp"`

	ID    int64  `bun:"id,pk,autoincrement"`
	LotID int64  `bun:"lot_id,notnull"`
	Key   string `bun:"key,notnull"`
	URL   string `bun:"url,notnull"`
}
