package auction

import (
	"errors"
	"fmt"
)

var (
	ErrLotNotFound    = errors.New("lot not found")
	ErrLotNotActive   = errors.New("lot is not active")
	ErrNotAuction     = errors.New("lot is a fixed-price sale, bids are not accepted")
	ErrNotSale        = errors.New("lot is an auction, use bids instead of direct purchase")
	ErrSoldOut        = errors.New("lot is sold out")
	ErrAlreadyClaimed = errors.New("user already holds an active offer for this lot")
	ErrOfferNotFound  = errors.New("offer not found")
	ErrNotOfferOwner  = errors.New("offer belongs to another user")
	ErrOfferNotActive = errors.New("offer is no longer active")
	// ErrBidConflict surfaces when concurrent bids exhausted the retry budget.
	ErrBidConflict = errors.New("bid is no longer sufficient, please retry")
)

// BidTooLowError reports the minimum acceptable amount so the caller can show
// an actionable message.
type BidTooLowError struct {
	Min int64
}

func (e BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low, minimum acceptable amount is %d", e.Min)
}
