package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OfferStatus string

const (
	OfferStatusOffered   OfferStatus = "offered"
	OfferStatusPostponed OfferStatus = "postponed"
	OfferStatusPaid      OfferStatus = "paid"
	OfferStatusDeclined  OfferStatus = "declined"
	OfferStatusExpired   OfferStatus = "expired"
	OfferStatusCanceled  OfferStatus = "canceled"
)

// ActiveOfferStatuses are the statuses that hold a unit and carry a deadline.
// POSTPONED follows the exact same deadline rules as OFFERED.
var ActiveOfferStatuses = []OfferStatus{OfferStatusOffered, OfferStatusPostponed}

// HoldingOfferStatuses count against lot quantity.
var HoldingOfferStatuses = []OfferStatus{OfferStatusOffered, OfferStatusPostponed, OfferStatusPaid}

func (s OfferStatus) Active() bool {
	return s == OfferStatusOffered || s == OfferStatusPostponed
}

// Offer is a time-boxed purchase right for one (lot, user) pair. Offers are
// never deleted; terminal rows stay behind as the audit trail of the cascade.
type Offer struct {
	bun.BaseModel `bun:"table:offers,alias:o"`

	ID           int64       `bun:"id,pk,autoincrement"`
	LotID        int64       `bun:"lot_id,notnull"`
	UserID       string      `bun:"user_id,notnull"`
	Price        int64       `bun:"offered_price,notnull"`
	Rank         int         `bun:"rank_index,notnull"`
	Status       OfferStatus `bun:"status,notnull"`
	HoldUntil    time.Time   `bun:"hold_until,nullzero"`
	InvoiceID    string      `bun:"invoice_id"`
	InvoiceURL   string      `bun:"invoice_url"`
	PaidAt       time.Time   `bun:"paid_at,nullzero"`
	ReminderSent bool        `bun:"reminder_sent,notnull,default:false"`

	// Delivery details, collected after payment (or on postpone).
	ContactFullName   string `bun:"contact_fullname"`
	ContactPhone      string `bun:"contact_phone"`
	ContactCityRegion string `bun:"contact_city_region"`
	ContactDelivery   string `bun:"contact_delivery"`
	ContactAddress    string `bun:"contact_address"`
	ContactComment    string `bun:"contact_comment"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
