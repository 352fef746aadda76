package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"

	"github.com/shopspring/decimal"
)

// BidRepository - реализация repository.BidRepository в памяти.
type BidRepository struct {
	store *Store
}

var _ repository.BidRepository = (*BidRepository)(nil)

func bidNotFound(bidId string) error {
	return fmt.Errorf("bid %s: %w", bidId, repository.ErrNotFound)
}

func activeBid(data *state, bidId string) (models.Bid, bool) {
	bid, ok := data.bids[bidId]
	if !ok || bid.Presence.IsDeleted() {
		return models.Bid{}, false
	}
	return bid, true
}

// collectBids возвращает подходящие предложения с копиями их позиций.
func collectBids(data *state, keep func(models.Bid) bool) []models.Bid {
	var bids []models.Bid
	for _, bid := range data.bids {
		if keep(bid) {
			bid.Items = slices.Clone(data.items[bid.ID])
			bids = append(bids, bid)
		}
	}
	byCreation(bids,
		func(b models.Bid) int64 { return b.CreatedAt.UnixNano() },
		func(b models.Bid) string { return b.ID })
	return bids
}

func (r *BidRepository) CreateBid(ctx context.Context, bid models.Bid) (*models.Bid, error) {
	err := r.store.write(ctx, func(data *state) error {
		rfq, ok := activeRFQ(data, bid.RFQID)
		if !ok {
			return rfqNotFound(bid.RFQID)
		}
		if rfq.State != models.OpenedRFQ {
			return fmt.Errorf("rfq %s: %w", bid.RFQID, repository.ErrStateConflict)
		}
		if _, ok := data.bids[bid.ID]; ok {
			return fmt.Errorf("bid %s: %w", bid.ID, repository.ErrDuplicate)
		}
		bid.Items, bid.RFQ, bid.Presence = nil, nil, models.Active()
		data.bids[bid.ID] = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *BidRepository) CreateBidItems(ctx context.Context, bidId string, items []models.BidItem) ([]models.BidItem, error) {
	created := make([]models.BidItem, 0, len(items))
	err := r.store.write(ctx, func(data *state) error {
		if _, ok := data.bids[bidId]; !ok {
			return bidNotFound(bidId)
		}
		for _, item := range items {
			item.BidID = bidId
			created = append(created, item)
		}
		data.items[bidId] = append(slices.Clone(data.items[bidId]), created...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *BidRepository) DeleteBidItems(ctx context.Context, bidId string) error {
	return r.store.write(ctx, func(data *state) error {
		delete(data.items, bidId)
		return nil
	})
}

func (r *BidRepository) GetBidById(ctx context.Context, bidId string, withRelations bool) (*models.Bid, error) {
	var found models.Bid
	err := r.store.read(ctx, func(data *state) error {
		bid, ok := activeBid(data, bidId)
		if !ok {
			return bidNotFound(bidId)
		}
		if withRelations {
			bid.Items = slices.Clone(data.items[bidId])
			if rfq, ok := data.rfqs[bid.RFQID]; ok {
				bid.RFQ = &rfq
			}
		}
		found = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (r *BidRepository) GetRFQBids(ctx context.Context, rfqId string) ([]models.Bid, error) {
	var bids []models.Bid
	_ = r.store.read(ctx, func(data *state) error {
		bids = collectBids(data, func(b models.Bid) bool {
			return b.RFQID == rfqId && !b.Presence.IsDeleted()
		})
		return nil
	})
	return bids, nil
}

func (r *BidRepository) GetSellerBids(ctx context.Context, sellerId string) ([]models.Bid, error) {
	var bids []models.Bid
	_ = r.store.read(ctx, func(data *state) error {
		bids = collectBids(data, func(b models.Bid) bool {
			return b.SellerID == sellerId && !b.Presence.IsDeleted()
		})
		return nil
	})
	return bids, nil
}

func (r *BidRepository) UpdateBid(ctx context.Context, bidId string, totalPrice decimal.Decimal, document string) (*models.Bid, error) {
	var updated models.Bid
	err := r.store.write(ctx, func(data *state) error {
		bid, ok := activeBid(data, bidId)
		if !ok {
			return bidNotFound(bidId)
		}
		if bid.State != models.OpenedBid {
			return fmt.Errorf("bid %s: %w", bidId, repository.ErrStateConflict)
		}
		bid.TotalPrice = totalPrice
		bid.Document = document
		data.bids[bidId] = bid
		updated = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *BidRepository) UpdateState(ctx context.Context, bidId string, newState models.BidState, from ...models.BidState) (*models.Bid, error) {
	var updated models.Bid
	err := r.store.write(ctx, func(data *state) error {
		bid, ok := activeBid(data, bidId)
		if !ok {
			return bidNotFound(bidId)
		}
		if len(from) > 0 && !slices.Contains(from, bid.State) {
			return fmt.Errorf("bid %s: %w", bidId, repository.ErrStateConflict)
		}
		bid.State = newState
		data.bids[bidId] = bid
		updated = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// moveOpen переводит открытые предложения запроса в newState.
func (r *BidRepository) moveOpen(ctx context.Context, rfqId, exceptBidId string, newState models.BidState) (int64, error) {
	var affected int64
	err := r.store.write(ctx, func(data *state) error {
		for id, bid := range data.bids {
			if bid.RFQID != rfqId || id == exceptBidId || bid.State != models.OpenedBid {
				continue
			}
			bid.State = newState
			data.bids[id] = bid
			affected++
		}
		return nil
	})
	return affected, err
}

func (r *BidRepository) CloseOpenBids(ctx context.Context, rfqId string) (int64, error) {
	return r.moveOpen(ctx, rfqId, "", models.ClosedBid)
}

func (r *BidRepository) RejectSiblings(ctx context.Context, rfqId, exceptBidId string) (int64, error) {
	return r.moveOpen(ctx, rfqId, exceptBidId, models.RejectedBid)
}

func (r *BidRepository) CountStates(ctx context.Context, sellerId string) (models.BidStateCount, error) {
	counts := models.BidStateCount{}
	_ = r.store.read(ctx, func(data *state) error {
		for _, bid := range data.bids {
			if bid.SellerID == sellerId && !bid.Presence.IsDeleted() {
				counts[bid.State]++
			}
		}
		return nil
	})
	return counts, nil
}

func (r *BidRepository) SoftDelete(ctx context.Context, bidId string, at time.Time) (*models.Bid, error) {
	var deleted models.Bid
	err := r.store.write(ctx, func(data *state) error {
		bid, ok := activeBid(data, bidId)
		if !ok {
			return bidNotFound(bidId)
		}
		bid.Presence = models.Deleted(at)
		data.bids[bidId] = bid
		deleted = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}
