package memory

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"
)

var purchaseNumberPattern = regexp.MustCompile(`^PN-([0-9]+)$`)

// RFQRepository - реализация repository.RFQRepository в памяти.
type RFQRepository struct {
	store *Store
}

var _ repository.RFQRepository = (*RFQRepository)(nil)

func rfqNotFound(rfqId string) error {
	return fmt.Errorf("rfq %s: %w", rfqId, repository.ErrNotFound)
}

func activeRFQ(data *state, rfqId string) (models.RFQ, bool) {
	rfq, ok := data.rfqs[rfqId]
	if !ok || rfq.Presence.IsDeleted() {
		return models.RFQ{}, false
	}
	return rfq, true
}

func sortRFQs(rfqs []models.RFQ) {
	byCreation(rfqs,
		func(r models.RFQ) int64 { return r.CreatedAt.UnixNano() },
		func(r models.RFQ) string { return r.ID })
}

func byDeadline(rfqs []models.RFQ) {
	slices.SortStableFunc(rfqs, func(a, b models.RFQ) int { return a.Deadline.Compare(b.Deadline) })
}

func (r *RFQRepository) CreateRFQ(ctx context.Context, rfq models.RFQ) (*models.RFQ, error) {
	err := r.store.write(ctx, func(data *state) error {
		if _, ok := data.rfqs[rfq.ID]; ok {
			return fmt.Errorf("rfq %s: %w", rfq.ID, repository.ErrDuplicate)
		}
		for _, existing := range data.rfqs {
			if existing.BuyerID == rfq.BuyerID && existing.PurchaseNumber == rfq.PurchaseNumber {
				return fmt.Errorf("purchase number %s: %w", rfq.PurchaseNumber, repository.ErrDuplicate)
			}
		}
		rfq.Bids = nil
		data.rfqs[rfq.ID] = rfq
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rfq, nil
}

func (r *RFQRepository) GetRFQById(ctx context.Context, rfqId string, withBids bool) (*models.RFQ, error) {
	var found models.RFQ
	err := r.store.read(ctx, func(data *state) error {
		rfq, ok := activeRFQ(data, rfqId)
		if !ok {
			return rfqNotFound(rfqId)
		}
		if withBids {
			rfq.Bids = collectBids(data, func(b models.Bid) bool {
				return b.RFQID == rfqId && !b.Presence.IsDeleted()
			})
		}
		found = rfq
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (r *RFQRepository) FindByPurchaseNumber(ctx context.Context, buyerId, purchaseNumber string) (*models.RFQ, error) {
	var found *models.RFQ
	_ = r.store.read(ctx, func(data *state) error {
		for _, rfq := range data.rfqs {
			if rfq.BuyerID == buyerId && rfq.PurchaseNumber == purchaseNumber {
				found = &rfq
				return nil
			}
		}
		return nil
	})
	return found, nil
}

func (r *RFQRepository) MaxPurchaseSequence(ctx context.Context, buyerId string) (int, error) {
	var max int
	_ = r.store.read(ctx, func(data *state) error {
		for _, rfq := range data.rfqs {
			if rfq.BuyerID != buyerId {
				continue
			}
			m := purchaseNumberPattern.FindStringSubmatch(rfq.PurchaseNumber)
			if m == nil {
				continue
			}
			if n, err := strconv.Atoi(m[1]); err == nil && n > max {
				max = n
			}
		}
		return nil
	})
	return max, nil
}

func (r *RFQRepository) FindOpenExpired(ctx context.Context, now time.Time) ([]models.RFQ, error) {
	rfqs := r.filter(ctx, func(rfq models.RFQ) bool {
		return rfq.State == models.OpenedRFQ && rfq.Deadline.Before(now)
	}, -1, 0)
	byDeadline(rfqs)
	return rfqs, nil
}

func (r *RFQRepository) GetBuyerRFQs(ctx context.Context, buyerId string, limit, offset int) ([]models.RFQ, error) {
	rfqs := r.filter(ctx, func(rfq models.RFQ) bool { return rfq.BuyerID == buyerId }, -1, 0)
	slices.Reverse(rfqs)
	return page(rfqs, limit, offset), nil
}

func (r *RFQRepository) GetOpenRFQs(ctx context.Context, now time.Time, limit, offset int) ([]models.RFQ, error) {
	rfqs := r.filter(ctx, func(rfq models.RFQ) bool {
		return rfq.State == models.OpenedRFQ && rfq.Deadline.After(now)
	}, -1, 0)
	byDeadline(rfqs)
	return page(rfqs, limit, offset), nil
}

func (r *RFQRepository) filter(ctx context.Context, keep func(models.RFQ) bool, limit, offset int) []models.RFQ {
	var rfqs []models.RFQ
	_ = r.store.read(ctx, func(data *state) error {
		for _, rfq := range data.rfqs {
			if !rfq.Presence.IsDeleted() && keep(rfq) {
				rfqs = append(rfqs, rfq)
			}
		}
		return nil
	})
	sortRFQs(rfqs)
	return page(rfqs, limit, offset)
}

func (r *RFQRepository) UpdateRFQ(ctx context.Context, rfq models.RFQ) (*models.RFQ, error) {
	var updated models.RFQ
	err := r.store.write(ctx, func(data *state) error {
		current, ok := activeRFQ(data, rfq.ID)
		if !ok {
			return rfqNotFound(rfq.ID)
		}
		if current.State != models.OpenedRFQ {
			return fmt.Errorf("rfq %s: %w", rfq.ID, repository.ErrStateConflict)
		}
		current.Title = rfq.Title
		current.ProjectName = rfq.ProjectName
		current.Category = rfq.Category
		current.Quantity = rfq.Quantity
		current.Detail = rfq.Detail
		current.AuctionDoc = rfq.AuctionDoc
		current.GuidelineDoc = rfq.GuidelineDoc
		current.Deadline = rfq.Deadline
		data.rfqs[rfq.ID] = current
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *RFQRepository) UpdateState(ctx context.Context, rfqId string, newState models.RFQState, from ...models.RFQState) (*models.RFQ, error) {
	var updated models.RFQ
	err := r.store.write(ctx, func(data *state) error {
		rfq, ok := activeRFQ(data, rfqId)
		if !ok {
			return rfqNotFound(rfqId)
		}
		if len(from) > 0 && !slices.Contains(from, rfq.State) {
			return fmt.Errorf("rfq %s: %w", rfqId, repository.ErrStateConflict)
		}
		rfq.State = newState
		data.rfqs[rfqId] = rfq
		updated = rfq
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *RFQRepository) SoftDelete(ctx context.Context, rfqId string, at time.Time) (*models.RFQ, error) {
	var deleted models.RFQ
	err := r.store.write(ctx, func(data *state) error {
		rfq, ok := activeRFQ(data, rfqId)
		if !ok {
			return rfqNotFound(rfqId)
		}
		rfq.Presence = models.Deleted(at)
		data.rfqs[rfqId] = rfq
		deleted = rfq
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}
