package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransactionService ведет платежные операции по присужденным предложениям.
type TransactionService struct {
	Repo   repository.TransactionRepository
	Bids   repository.BidRepository
	Users  repository.UserRepository
	Now    Clock
	logger *zap.Logger
}

var _ AwardListener = (*TransactionService)(nil)

// NewTransactionService создаёт новый экземпляр TransactionService.
func NewTransactionService(repo repository.TransactionRepository, bids repository.BidRepository,
	users repository.UserRepository, logger *zap.Logger) *TransactionService {
	return &TransactionService{
		Repo:   repo,
		Bids:   bids,
		Users:  users,
		Now:    utcNow,
		logger: logger.With(zap.String("service", "transaction")),
	}
}

// Число попыток выдать номер TR-NNN при параллельных присуждениях.
const transactionAttempts = 5

// OnBidAwarded заводит ожидающую операцию TR-NNN для покупателя присужденного предложения.
// Повторное уведомление по тому же предложению ничего не меняет.
func (s *TransactionService) OnBidAwarded(ctx context.Context, bidId string) error {
	bid, err := s.awardedBid(ctx, bidId)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		existing, err := s.Repo.GetTransactionByBid(ctx, bidId)
		if err != nil {
			return repoError(err, "transaction")
		}
		if existing != nil {
			return nil
		}

		sequence, err := s.Repo.MaxTransactionSequence(ctx, bid.RFQ.BuyerID)
		if err != nil {
			return repoError(err, "transaction")
		}
		transactionId := fmt.Sprintf("TR-%03d", sequence+1)
		_, err = s.Repo.CreateTransaction(ctx, s.newTransaction(bid.RFQ.BuyerID, bidId, transactionId))
		if err == nil {
			s.logger.Info("transaction recorded", zap.String("bid_id", bidId), zap.String("transaction_id", transactionId))
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) || attempt == transactionAttempts {
			return duplicateError(err, transactionId)
		}
	}
}

// RecordTransaction закрепляет за присужденным предложением идентификатор операции,
// выданный покупателем. Ожидающая операция, заведенная при присуждении, получает новый
// идентификатор; повтор того же идентификатора возвращает операцию без изменений.
func (s *TransactionService) RecordTransaction(ctx context.Context, buyerId, bidId, transactionId string) (*models.Transaction, error) {
	transactionId = strings.TrimSpace(transactionId)
	if transactionId == "" {
		return nil, models.NewErrorResponse(models.InvalidInput, "transactionId is required")
	}
	if _, err := s.Users.GetUserById(ctx, buyerId); err != nil {
		return nil, repoError(err, "user")
	}
	bid, err := s.awardedBid(ctx, bidId)
	if err != nil {
		return nil, err
	}
	if bid.RFQ.BuyerID != buyerId {
		return nil, models.NewErrorResponse(models.NotFound, "bid not found")
	}

	existing, err := s.Repo.GetTransactionByBid(ctx, bidId)
	if err != nil {
		return nil, repoError(err, "transaction")
	}
	if existing == nil {
		created, err := s.Repo.CreateTransaction(ctx, s.newTransaction(buyerId, bidId, transactionId))
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, repoError(err, "transaction")
		}
		// операцию по предложению мог завести слушатель присуждения
		if existing, err = s.Repo.GetTransactionByBid(ctx, bidId); err != nil {
			return nil, repoError(err, "transaction")
		}
		if existing == nil {
			return nil, duplicateError(repository.ErrDuplicate, transactionId)
		}
	}
	if existing.TransactionID == transactionId {
		return existing, nil
	}

	updated, err := s.Repo.UpdateTransactionId(ctx, existing.ID, transactionId)
	if err != nil {
		return nil, duplicateError(err, transactionId)
	}
	s.logger.Info("transaction id assigned", zap.String("bid_id", bidId), zap.String("transaction_id", transactionId))
	return updated, nil
}

// GetBuyerTransactions возвращает операции покупателя.
func (s *TransactionService) GetBuyerTransactions(ctx context.Context, buyerId string) ([]models.Transaction, error) {
	if _, err := s.Users.GetUserById(ctx, buyerId); err != nil {
		return nil, repoError(err, "user")
	}
	transactions, err := s.Repo.GetBuyerTransactions(ctx, buyerId)
	if err != nil {
		return nil, repoError(err, "transaction")
	}
	return transactions, nil
}

// GetSellerTransactions возвращает операции по предложениям продавца.
func (s *TransactionService) GetSellerTransactions(ctx context.Context, sellerId string) ([]models.Transaction, error) {
	if _, err := s.Users.GetUserById(ctx, sellerId); err != nil {
		return nil, repoError(err, "user")
	}
	transactions, err := s.Repo.GetSellerTransactions(ctx, sellerId)
	if err != nil {
		return nil, repoError(err, "transaction")
	}
	return transactions, nil
}

func (s *TransactionService) awardedBid(ctx context.Context, bidId string) (*models.Bid, error) {
	bid, err := s.Bids.GetBidById(ctx, bidId, true)
	if err != nil {
		return nil, repoError(err, "bid")
	}
	if bid.State != models.AwardedBid {
		return nil, models.NewErrorResponse(models.InvalidState, fmt.Sprintf("bid is %s, only awarded bids are paid", bid.State))
	}
	if bid.RFQ == nil {
		return nil, models.NewErrorResponse(models.NotFound, "rfq not found")
	}
	return bid, nil
}

func (s *TransactionService) newTransaction(buyerId, bidId, transactionId string) models.Transaction {
	return models.Transaction{
		ID:            uuid.New().String(),
		TransactionID: transactionId,
		BidID:         bidId,
		BuyerID:       buyerId,
		Status:        models.PendingTransaction,
		CreatedAt:     s.Now(),
	}
}

func duplicateError(err error, transactionId string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return models.NewErrorResponse(models.Conflict, fmt.Sprintf("transaction %s already exists", transactionId))
	}
	return repoError(err, "transaction")
}
