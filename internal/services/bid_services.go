package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/pricing"
	"github.com/senyabanana/procurement-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BidService struct {
	RFQs   repository.RFQRepository
	Bids   repository.BidRepository
	Users  repository.UserRepository
	Tx     repository.Transactor
	Docs   DocumentStore
	Award  *AwardCoordinator
	Now    Clock
	logger *zap.Logger
}

// NewBidService создает новый экземпляр BidService.
func NewBidService(rfqs repository.RFQRepository, bids repository.BidRepository, users repository.UserRepository,
	tx repository.Transactor, docs DocumentStore, award *AwardCoordinator, logger *zap.Logger) *BidService {
	return &BidService{
		RFQs:   rfqs,
		Bids:   bids,
		Users:  users,
		Tx:     tx,
		Docs:   docs,
		Award:  award,
		Now:    utcNow,
		logger: logger.With(zap.String("service", "bid")),
	}
}

func newBidItems(items []models.BidItemRequest) []models.BidItem {
	created := make([]models.BidItem, len(items))
	for i, item := range items {
		created[i] = models.BidItem{
			ID:           uuid.New().String(),
			Item:         item.Item,
			Quantity:     item.Quantity,
			Unit:         item.Unit,
			SinglePrice:  item.SinglePrice,
			TransportFee: item.TransportFee,
			Taxes:        item.Taxes,
			TotalPrice:   item.TotalPrice,
		}
	}
	return created
}

// CreateBid создает предложение продавца по открытому запросу котировок.
// Если позиции не удалось сохранить, предложение откатывается, а документ удаляется.
func (s *BidService) CreateBid(ctx context.Context, sellerId string, bidReq models.BidRequest, doc *models.Document) (*models.Bid, error) {
	if _, err := s.Users.GetUserById(ctx, sellerId); err != nil {
		return nil, repoError(err, "user")
	}
	rfq, err := s.RFQs.GetRFQById(ctx, bidReq.RFQID, false)
	if err != nil {
		return nil, repoError(err, "rfq")
	}
	if rfq.State != models.OpenedRFQ {
		return nil, models.NewErrorResponse(models.InvalidState, fmt.Sprintf("rfq is %s and does not accept bids", rfq.State))
	}
	if !rfq.Deadline.After(s.Now()) {
		return nil, models.NewErrorResponse(models.InvalidState, "rfq deadline has passed")
	}
	if err := pricing.ValidateBid(bidReq.TotalPrice, bidReq.Items); err != nil {
		return nil, err
	}
	if !hasContent(doc) {
		return nil, models.NewErrorResponse(models.InvalidInput, "bidFiles is required")
	}

	bid := models.Bid{
		ID:         uuid.New().String(),
		RFQID:      rfq.ID,
		SellerID:   sellerId,
		TotalPrice: bidReq.TotalPrice,
		State:      models.OpenedBid,
		CreatedAt:  s.Now(),
		Presence:   models.Active(),
	}
	if bid.Document, err = s.Docs.Store(ctx, *doc, models.BidDocument, bid.ID); err != nil {
		return nil, err
	}

	var created *models.Bid
	err = s.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if created, err = s.Bids.CreateBid(ctx, bid); err != nil {
			return err
		}
		created.Items, err = s.Bids.CreateBidItems(ctx, bid.ID, newBidItems(bidReq.Items))
		return err
	})
	if err != nil {
		discard(ctx, s.Docs, s.logger, bid.Document)
		switch {
		case errors.Is(err, repository.ErrStateConflict):
			return nil, models.NewErrorResponse(models.InvalidState, "rfq no longer accepts bids")
		case errors.Is(err, repository.ErrNotFound):
			return nil, repoError(err, "rfq")
		}
		return nil, repoError(err, "bid")
	}

	s.logger.Info("bid created", zap.String("bid_id", created.ID), zap.String("rfq_id", created.RFQID))
	return created, nil
}

// EditBid меняет сумму, позиции и документ открытого предложения.
// items == nil оставляет позиции; иначе набор заменяется целиком.
// Старый документ удаляется только после фиксации изменений.
func (s *BidService) EditBid(ctx context.Context, bidId string, update models.BidUpdate, doc *models.Document) (*models.Bid, error) {
	bid, err := s.Bids.GetBidById(ctx, bidId, true)
	if err != nil {
		return nil, repoError(err, "bid")
	}
	if bid.State != models.OpenedBid {
		return nil, models.NewErrorResponse(models.InvalidState, fmt.Sprintf("bid is %s and can no longer be edited", bid.State))
	}

	totalPrice := bid.TotalPrice
	if update.TotalPrice != nil {
		totalPrice = *update.TotalPrice
	}
	switch {
	case update.Items != nil:
		if err := pricing.ValidateBid(totalPrice, update.Items); err != nil {
			return nil, err
		}
	case !totalPrice.Equal(pricing.SumItems(bid.Items)):
		return nil, models.NewErrorResponse(models.InvalidInput,
			fmt.Sprintf("totalPrice %s does not match the sum of bid items %s", totalPrice, pricing.SumItems(bid.Items)))
	}

	document := bid.Document
	if doc != nil {
		if document, err = s.Docs.Store(ctx, *doc, models.BidDocument, bid.ID); err != nil {
			return nil, err
		}
	}

	var updated *models.Bid
	err = s.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if updated, err = s.Bids.UpdateBid(ctx, bidId, totalPrice, document); err != nil {
			return err
		}
		if update.Items == nil {
			updated.Items = bid.Items
			return nil
		}
		if err = s.Bids.DeleteBidItems(ctx, bidId); err != nil {
			return err
		}
		updated.Items, err = s.Bids.CreateBidItems(ctx, bidId, newBidItems(update.Items))
		return err
	})
	if err != nil {
		if doc != nil {
			discard(ctx, s.Docs, s.logger, document)
		}
		return nil, repoError(err, "bid")
	}

	if doc != nil {
		discard(ctx, s.Docs, s.logger, bid.Document)
	}
	return updated, nil
}

// AwardBid присуждает предложение.
func (s *BidService) AwardBid(ctx context.Context, bidId string) (*models.Bid, error) {
	return s.Award.Award(ctx, bidId)
}

// RejectBid отклоняет открытое предложение, не меняя запрос котировок.
// Повторное отклонение не ошибка; присужденное или закрытое предложение отклонить нельзя.
func (s *BidService) RejectBid(ctx context.Context, bidId string) (*models.Bid, error) {
	bid, err := s.Bids.GetBidById(ctx, bidId, false)
	if err != nil {
		return nil, repoError(err, "bid")
	}
	if bid.State == models.RejectedBid {
		return bid, nil
	}
	if !canMoveBid(bid.State, models.RejectedBid) {
		return nil, models.NewErrorResponse(models.InvalidState, fmt.Sprintf("bid is %s and cannot be rejected", bid.State))
	}

	rejected, err := s.Bids.UpdateState(ctx, bidId, models.RejectedBid, bidSources(models.RejectedBid)...)
	if err == nil {
		return rejected, nil
	}
	if !errors.Is(err, repository.ErrStateConflict) {
		return nil, repoError(err, "bid")
	}

	// статус сменился между чтением и записью
	current, getErr := s.Bids.GetBidById(ctx, bidId, false)
	if getErr != nil {
		return nil, repoError(getErr, "bid")
	}
	if current.State == models.RejectedBid {
		return current, nil
	}
	return nil, models.NewErrorResponse(models.InvalidState, fmt.Sprintf("bid is %s and cannot be rejected", current.State))
}

// GetBid возвращает предложение с позициями и запросом котировок.
func (s *BidService) GetBid(ctx context.Context, bidId string) (*models.Bid, error) {
	bid, err := s.Bids.GetBidById(ctx, bidId, true)
	if err != nil {
		return nil, repoError(err, "bid")
	}
	return bid, nil
}

// GetRFQBids возвращает предложения по запросу котировок.
func (s *BidService) GetRFQBids(ctx context.Context, rfqId string) ([]models.Bid, error) {
	if _, err := s.RFQs.GetRFQById(ctx, rfqId, false); err != nil {
		return nil, repoError(err, "rfq")
	}
	bids, err := s.Bids.GetRFQBids(ctx, rfqId)
	if err != nil {
		return nil, repoError(err, "bid")
	}
	return bids, nil
}

// GetSellerBids возвращает предложения продавца.
func (s *BidService) GetSellerBids(ctx context.Context, sellerId string) ([]models.Bid, error) {
	if _, err := s.Users.GetUserById(ctx, sellerId); err != nil {
		return nil, repoError(err, "user")
	}
	bids, err := s.Bids.GetSellerBids(ctx, sellerId)
	if err != nil {
		return nil, repoError(err, "bid")
	}
	return bids, nil
}

// BidStateCounts возвращает число предложений продавца в каждом статусе.
func (s *BidService) BidStateCounts(ctx context.Context, sellerId string) (models.BidStateCount, error) {
	if _, err := s.Users.GetUserById(ctx, sellerId); err != nil {
		return nil, repoError(err, "user")
	}
	counts, err := s.Bids.CountStates(ctx, sellerId)
	if err != nil {
		return nil, repoError(err, "bid")
	}
	for _, state := range []models.BidState{models.OpenedBid, models.AwardedBid, models.RejectedBid, models.ClosedBid} {
		if _, ok := counts[state]; !ok {
			counts[state] = 0
		}
	}
	return counts, nil
}

// DeleteBid помечает предложение удаленным.
func (s *BidService) DeleteBid(ctx context.Context, bidId string) (*models.Bid, error) {
	bid, err := s.Bids.SoftDelete(ctx, bidId, s.Now())
	if err != nil {
		return nil, repoError(err, "bid")
	}
	return bid, nil
}
