package repository

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrStateConflict = errors.New("record is not in the expected state")
	ErrDuplicate     = errors.New("duplicate record")
)

// Transactor выполняет группу операций репозиториев атомарно.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RFQRepository - интерфейс для работы с запросами котировок.
type RFQRepository interface {
	CreateRFQ(ctx context.Context, rfq models.RFQ) (*models.RFQ, error)
	GetRFQById(ctx context.Context, rfqId string, withBids bool) (*models.RFQ, error)
	FindByPurchaseNumber(ctx context.Context, buyerId, purchaseNumber string) (*models.RFQ, error)
	MaxPurchaseSequence(ctx context.Context, buyerId string) (int, error)
	FindOpenExpired(ctx context.Context, now time.Time) ([]models.RFQ, error)
	GetBuyerRFQs(ctx context.Context, buyerId string, limit, offset int) ([]models.RFQ, error)
	GetOpenRFQs(ctx context.Context, now time.Time, limit, offset int) ([]models.RFQ, error)
	UpdateRFQ(ctx context.Context, rfq models.RFQ) (*models.RFQ, error)
	UpdateState(ctx context.Context, rfqId string, state models.RFQState, from ...models.RFQState) (*models.RFQ, error)
	SoftDelete(ctx context.Context, rfqId string, at time.Time) (*models.RFQ, error)
}

// BidRepository - интерфейс для работы с предложениями и их позициями.
type BidRepository interface {
	CreateBid(ctx context.Context, bid models.Bid) (*models.Bid, error)
	CreateBidItems(ctx context.Context, bidId string, items []models.BidItem) ([]models.BidItem, error)
	DeleteBidItems(ctx context.Context, bidId string) error
	GetBidById(ctx context.Context, bidId string, withRelations bool) (*models.Bid, error)
	GetRFQBids(ctx context.Context, rfqId string) ([]models.Bid, error)
	GetSellerBids(ctx context.Context, sellerId string) ([]models.Bid, error)
	UpdateBid(ctx context.Context, bidId string, totalPrice decimal.Decimal, document string) (*models.Bid, error)
	UpdateState(ctx context.Context, bidId string, state models.BidState, from ...models.BidState) (*models.Bid, error)
	CloseOpenBids(ctx context.Context, rfqId string) (int64, error)
	RejectSiblings(ctx context.Context, rfqId, exceptBidId string) (int64, error)
	CountStates(ctx context.Context, sellerId string) (models.BidStateCount, error)
	SoftDelete(ctx context.Context, bidId string, at time.Time) (*models.Bid, error)
}

// UserRepository - справочник пользователей.
type UserRepository interface {
	GetUserById(ctx context.Context, userId string) (*models.User, error)
}

// TransactionRepository - интерфейс для работы с платежными операциями.
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, transaction models.Transaction) (*models.Transaction, error)
	GetTransactionByBid(ctx context.Context, bidId string) (*models.Transaction, error)
	MaxTransactionSequence(ctx context.Context, buyerId string) (int, error)
	GetBuyerTransactions(ctx context.Context, buyerId string) ([]models.Transaction, error)
	GetSellerTransactions(ctx context.Context, sellerId string) ([]models.Transaction, error)
	UpdateTransactionId(ctx context.Context, id, transactionId string) (*models.Transaction, error)
}
