package memory

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"
)

var transactionIdPattern = regexp.MustCompile(`^TR-([0-9]+)$`)

// TransactionRepository - реализация repository.TransactionRepository в памяти.
type TransactionRepository struct {
	store *Store
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

func (r *TransactionRepository) CreateTransaction(ctx context.Context, transaction models.Transaction) (*models.Transaction, error) {
	err := r.store.write(ctx, func(data *state) error {
		for _, existing := range data.transactions {
			if existing.ID == transaction.ID || existing.BidID == transaction.BidID ||
				(existing.BuyerID == transaction.BuyerID && existing.TransactionID == transaction.TransactionID) {
				return fmt.Errorf("transaction %s: %w", transaction.TransactionID, repository.ErrDuplicate)
			}
		}
		data.transactions[transaction.ID] = transaction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (r *TransactionRepository) GetTransactionByBid(ctx context.Context, bidId string) (*models.Transaction, error) {
	var found *models.Transaction
	_ = r.store.read(ctx, func(data *state) error {
		for _, t := range data.transactions {
			if t.BidID == bidId {
				found = &t
				return nil
			}
		}
		return nil
	})
	return found, nil
}

func (r *TransactionRepository) MaxTransactionSequence(ctx context.Context, buyerId string) (int, error) {
	var max int
	_ = r.store.read(ctx, func(data *state) error {
		for _, t := range data.transactions {
			if t.BuyerID != buyerId {
				continue
			}
			if m := transactionIdPattern.FindStringSubmatch(t.TransactionID); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n > max {
					max = n
				}
			}
		}
		return nil
	})
	return max, nil
}

func (r *TransactionRepository) GetBuyerTransactions(ctx context.Context, buyerId string) ([]models.Transaction, error) {
	return r.collect(ctx, func(data *state, t models.Transaction) bool { return t.BuyerID == buyerId }), nil
}

func (r *TransactionRepository) GetSellerTransactions(ctx context.Context, sellerId string) ([]models.Transaction, error) {
	return r.collect(ctx, func(data *state, t models.Transaction) bool {
		bid, ok := data.bids[t.BidID]
		return ok && bid.SellerID == sellerId
	}), nil
}

func (r *TransactionRepository) UpdateTransactionId(ctx context.Context, id, transactionId string) (*models.Transaction, error) {
	var updated models.Transaction
	err := r.store.write(ctx, func(data *state) error {
		t, ok := data.transactions[id]
		if !ok {
			return fmt.Errorf("transaction %s: %w", id, repository.ErrNotFound)
		}
		for _, existing := range data.transactions {
			if existing.ID != id && existing.BuyerID == t.BuyerID && existing.TransactionID == transactionId {
				return fmt.Errorf("transaction %s: %w", transactionId, repository.ErrDuplicate)
			}
		}
		t.TransactionID = transactionId
		data.transactions[id] = t
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// collect возвращает отобранные операции, новые первыми.
func (r *TransactionRepository) collect(ctx context.Context, keep func(data *state, t models.Transaction) bool) []models.Transaction {
	var transactions []models.Transaction
	_ = r.store.read(ctx, func(data *state) error {
		for _, t := range data.transactions {
			if keep(data, t) {
				transactions = append(transactions, t)
			}
		}
		return nil
	})
	byCreation(transactions,
		func(t models.Transaction) int64 { return t.CreatedAt.UnixNano() },
		func(t models.Transaction) string { return t.ID })
	slices.Reverse(transactions)
	return transactions
}
