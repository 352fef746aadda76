package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"

	"go.uber.org/zap"
)

// AwardCoordinator присуждает предложение: победитель AWARDED, запрос AWARDED,
// остальные открытые предложения REJECTED. Все три записи - одна транзакция.
type AwardCoordinator struct {
	RFQs     repository.RFQRepository
	Bids     repository.BidRepository
	Tx       repository.Transactor
	Listener AwardListener
	logger   *zap.Logger
}

// NewAwardCoordinator создаёт новый экземпляр AwardCoordinator.
func NewAwardCoordinator(rfqs repository.RFQRepository, bids repository.BidRepository, tx repository.Transactor,
	listener AwardListener, logger *zap.Logger) *AwardCoordinator {
	return &AwardCoordinator{
		RFQs:     rfqs,
		Bids:     bids,
		Tx:       tx,
		Listener: listener,
		logger:   logger.With(zap.String("service", "award")),
	}
}

func notAwardable(rfqState models.RFQState) error {
	return models.NewErrorResponse(models.InvalidState, fmt.Sprintf("rfq is %s and cannot be awarded", rfqState))
}

// Award присуждает предложение bidId.
// Слушатель уведомляется только после фиксации транзакции; его ошибка не отменяет присуждение.
func (c *AwardCoordinator) Award(ctx context.Context, bidId string) (*models.Bid, error) {
	var awarded *models.Bid
	var rejected int64
	err := c.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		bid, err := c.Bids.GetBidById(ctx, bidId, true)
		if err != nil {
			return repoError(err, "bid")
		}
		if bid.RFQ == nil || bid.RFQ.Presence.IsDeleted() {
			return models.NewErrorResponse(models.NotFound, "rfq not found")
		}
		if !canMoveRFQ(bid.RFQ.State, models.AwardedRFQ) {
			return notAwardable(bid.RFQ.State)
		}
		if !canMoveBid(bid.State, models.AwardedBid) {
			return models.NewErrorResponse(models.InvalidState, fmt.Sprintf("bid is %s and cannot be awarded", bid.State))
		}

		// Условные записи: проигравший в гонке с параллельным присуждением
		// или закрытием по сроку получает ErrStateConflict, и транзакция откатывается.
		rfq, err := c.RFQs.UpdateState(ctx, bid.RFQID, models.AwardedRFQ, rfqSources(models.AwardedRFQ)...)
		if err != nil {
			if errors.Is(err, repository.ErrStateConflict) {
				return c.currentRFQConflict(ctx, bid.RFQID)
			}
			return repoError(err, "rfq")
		}
		awarded, err = c.Bids.UpdateState(ctx, bidId, models.AwardedBid, bidSources(models.AwardedBid)...)
		if err != nil {
			if errors.Is(err, repository.ErrStateConflict) {
				return models.NewErrorResponse(models.InvalidState, "bid is no longer open")
			}
			return repoError(err, "bid")
		}
		if rejected, err = c.Bids.RejectSiblings(ctx, bid.RFQID, bidId); err != nil {
			return repoError(err, "bid")
		}
		awarded.Items = bid.Items
		awarded.RFQ = rfq
		return nil
	})
	if err != nil {
		return nil, repoError(err, "bid")
	}

	c.logger.Info("bid awarded",
		zap.String("bid_id", bidId),
		zap.String("rfq_id", awarded.RFQID),
		zap.Int64("rejected_bids", rejected))

	if c.Listener != nil {
		if err := c.Listener.OnBidAwarded(context.WithoutCancel(ctx), bidId); err != nil {
			c.logger.Error("award listener failed", zap.String("bid_id", bidId), zap.Error(err))
		}
	}
	return awarded, nil
}

// currentRFQConflict сообщает, в каком статусе оказался запрос после проигранной гонки.
func (c *AwardCoordinator) currentRFQConflict(ctx context.Context, rfqId string) error {
	rfq, err := c.RFQs.GetRFQById(ctx, rfqId, false)
	if err != nil {
		return repoError(err, "rfq")
	}
	return notAwardable(rfq.State)
}
