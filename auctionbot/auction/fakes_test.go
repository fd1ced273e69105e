package auction

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillLeo1/Auction/auctionbot/database/models"
)

// stubClock is a settable clock for driving deadlines in tests.
type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time {
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fakeLots struct {
	mu     sync.Mutex
	lots   map[int64]*models.Lot
	photos map[int64][]*models.LotPhoto
	nextID int64
}

func newFakeLots() *fakeLots {
	return &fakeLots{
		lots:   make(map[int64]*models.Lot),
		photos: make(map[int64][]*models.LotPhoto),
	}
}

func copyLot(lot *models.Lot) *models.Lot {
	if lot == nil {
		return nil
	}
	c := *lot
	return &c
}

func (f *fakeLots) Create(_ context.Context, lot *models.Lot, photos []*models.LotPhoto) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	lot.ID = f.nextID
	lot.PublicID = f.nextID
	f.lots[lot.ID] = copyLot(lot)
	f.photos[lot.ID] = photos
	return nil
}

func (f *fakeLots) GetByID(_ context.Context, id int64) (*models.Lot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyLot(f.lots[id]), nil
}

func (f *fakeLots) GetByPublicID(_ context.Context, publicID int64) (*models.Lot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, lot := range f.lots {
		if lot.PublicID == publicID {
			return copyLot(lot), nil
		}
	}
	return nil, nil
}

func (f *fakeLots) ListByStatus(_ context.Context, status models.LotStatus) ([]*models.Lot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Lot
	for _, lot := range f.lots {
		if lot.Status == status {
			out = append(out, copyLot(lot))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeLots) Update(_ context.Context, lot *models.Lot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lots[lot.ID]; !ok {
		return fmt.Errorf("lot %d does not exist", lot.ID)
	}
	f.lots[lot.ID] = copyLot(lot)
	return nil
}

func (f *fakeLots) Photos(_ context.Context, lotID int64) ([]*models.LotPhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.photos[lotID], nil
}

func (f *fakeLots) WithLotLock(ctx context.Context, lotID int64, fn func(ctx context.Context, lot *models.Lot) error) error {
	f.mu.Lock()
	lot := copyLot(f.lots[lotID])
	f.mu.Unlock()
	return fn(ctx, lot)
}

type fakeBids struct {
	mu   sync.Mutex
	bids []*models.Bid
}

func newFakeBids() *fakeBids {
	return &fakeBids{}
}

func (f *fakeBids) Create(_ context.Context, bid *models.Bid) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = time.Now()
	}
	c := *bid
	f.bids = append(f.bids, &c)
	return nil
}

func (f *fakeBids) CountForLot(_ context.Context, lotID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, bid := range f.bids {
		if bid.LotID == lotID {
			count++
		}
	}
	return count, nil
}

func (f *fakeBids) Ranking(_ context.Context, lotID int64) ([]models.RankedBidder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	best := make(map[string]int64)
	firstAt := make(map[string]time.Time)
	for _, bid := range f.bids {
		if bid.LotID != lotID {
			continue
		}
		if bid.Amount > best[bid.UserID] {
			best[bid.UserID] = bid.Amount
			firstAt[bid.UserID] = bid.CreatedAt
		} else if bid.Amount == best[bid.UserID] && bid.CreatedAt.Before(firstAt[bid.UserID]) {
			firstAt[bid.UserID] = bid.CreatedAt
		}
	}

	ranked := make([]models.RankedBidder, 0, len(best))
	for userID, amount := range best {
		ranked = append(ranked, models.RankedBidder{UserID: userID, Amount: amount})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Amount != ranked[j].Amount {
			return ranked[i].Amount > ranked[j].Amount
		}
		ti, tj := firstAt[ranked[i].UserID], firstAt[ranked[j].UserID]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ranked[i].UserID < ranked[j].UserID
	})
	return ranked, nil
}

type fakeOffers struct {
	mu     sync.Mutex
	offers map[int64]*models.Offer
	nextID int64
}

func newFakeOffers() *fakeOffers {
	return &fakeOffers{offers: make(map[int64]*models.Offer)}
}

func copyOffer(offer *models.Offer) *models.Offer {
	if offer == nil {
		return nil
	}
	c := *offer
	return &c
}

func statusIn(status models.OfferStatus, set []models.OfferStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func (f *fakeOffers) Create(_ context.Context, offer *models.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	offer.ID = f.nextID
	f.offers[offer.ID] = copyOffer(offer)
	return nil
}

func (f *fakeOffers) GetByID(_ context.Context, id int64) (*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyOffer(f.offers[id]), nil
}

func (f *fakeOffers) Update(_ context.Context, offer *models.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.offers[offer.ID]; !ok {
		return fmt.Errorf("offer %d does not exist", offer.ID)
	}
	f.offers[offer.ID] = copyOffer(offer)
	return nil
}

func (f *fakeOffers) TransitionStatus(_ context.Context, offerID int64, from []models.OfferStatus, to models.OfferStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	offer, ok := f.offers[offerID]
	if !ok || !statusIn(offer.Status, from) {
		return false, nil
	}
	offer.Status = to
	return true, nil
}

func (f *fakeOffers) SetHoldUntil(_ context.Context, offerID int64, holdUntil time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	offer, ok := f.offers[offerID]
	if !ok {
		return fmt.Errorf("offer %d does not exist", offerID)
	}
	offer.HoldUntil = holdUntil
	return nil
}

func (f *fakeOffers) ActiveForUser(_ context.Context, lotID int64, userID string) (*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, offer := range f.offers {
		if offer.LotID == lotID && offer.UserID == userID && offer.Status.Active() {
			return copyOffer(offer), nil
		}
	}
	return nil, nil
}

func (f *fakeOffers) ListForUser(_ context.Context, userID string) ([]*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Offer
	for _, offer := range f.offers {
		if offer.UserID == userID {
			out = append(out, copyOffer(offer))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeOffers) CountByStatus(_ context.Context, lotID int64, statuses ...models.OfferStatus) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, offer := range f.offers {
		if offer.LotID == lotID && statusIn(offer.Status, statuses) {
			count++
		}
	}
	return count, nil
}

func (f *fakeOffers) ListByLotAndStatus(_ context.Context, lotID int64, statuses ...models.OfferStatus) ([]*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Offer
	for _, offer := range f.offers {
		if offer.LotID == lotID && statusIn(offer.Status, statuses) {
			out = append(out, copyOffer(offer))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (f *fakeOffers) NextCanceled(_ context.Context, lotID int64, limit int) ([]*models.Offer, error) {
	out, _ := f.ListByLotAndStatus(context.Background(), lotID, models.OfferStatusCanceled)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOffers) MaxRank(_ context.Context, lotID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	maxRank := 0
	for _, offer := range f.offers {
		if offer.LotID == lotID && offer.Rank > maxRank {
			maxRank = offer.Rank
		}
	}
	return maxRank, nil
}

func (f *fakeOffers) ListDueReminders(_ context.Context, cutoff time.Time) ([]*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Offer
	for _, offer := range f.offers {
		if offer.Status.Active() && !offer.ReminderSent && !offer.HoldUntil.IsZero() && !offer.HoldUntil.After(cutoff) {
			out = append(out, copyOffer(offer))
		}
	}
	return out, nil
}

func (f *fakeOffers) ClaimReminder(_ context.Context, offerID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	offer, ok := f.offers[offerID]
	if !ok || offer.ReminderSent {
		return false, nil
	}
	offer.ReminderSent = true
	return true, nil
}

func (f *fakeOffers) ListExpired(_ context.Context, now time.Time) ([]*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Offer
	for _, offer := range f.offers {
		if offer.Status.Active() && !offer.HoldUntil.IsZero() && offer.HoldUntil.Before(now) {
			out = append(out, copyOffer(offer))
		}
	}
	return out, nil
}

func (f *fakeOffers) ListMissingInvoice(_ context.Context) ([]*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Offer
	for _, offer := range f.offers {
		if offer.Status.Active() && offer.InvoiceID == "" {
			out = append(out, copyOffer(offer))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeNotifier struct {
	mu          sync.Mutex
	granted     []int64
	reminders   []int64
	outbid      []string
	updates     []int64
	removals    []int64
	payments    []int64
	contactSent []int64
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{}
}

func (f *fakeNotifier) OfferGranted(_ context.Context, _ *models.Lot, offer *models.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = append(f.granted, offer.ID)
	return nil
}

func (f *fakeNotifier) OfferReminder(_ context.Context, _ *models.Lot, offer *models.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, offer.ID)
	return nil
}

func (f *fakeNotifier) Outbid(_ context.Context, _ *models.Lot, previousLeaderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outbid = append(f.outbid, previousLeaderID)
	return nil
}

func (f *fakeNotifier) LotDisplayUpdate(_ context.Context, lot *models.Lot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, lot.ID)
	return nil
}

func (f *fakeNotifier) LotDisplayRemove(_ context.Context, lot *models.Lot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removals = append(f.removals, lot.ID)
	return nil
}

func (f *fakeNotifier) PaymentReceived(_ context.Context, _ *models.Lot, offer *models.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, offer.ID)
	return nil
}

func (f *fakeNotifier) ContactDetailsReceived(_ context.Context, _ *models.Lot, offer *models.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contactSent = append(f.contactSent, offer.ID)
	return nil
}

type fakeInvoicer struct {
	mu      sync.Mutex
	fail    bool
	created int
}

func newFakeInvoicer() *fakeInvoicer {
	return &fakeInvoicer{}
}

func (f *fakeInvoicer) CreateInvoice(_ context.Context, _ *models.Lot, offer *models.Offer) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", "", fmt.Errorf("gateway unavailable")
	}
	f.created++
	invoiceID := fmt.Sprintf("inv-%d-%d", offer.ID, f.created)
	return invoiceID, "https://pay.example.com/" + invoiceID, nil
}

func (f *fakeInvoicer) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}
