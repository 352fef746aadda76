package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/senyabanana/procurement-service/internal/db"
	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id, transaction_id, bid_id, buyer_id, status, created_at`

// PostgresTransactionRepository - реализация TransactionRepository для базы данных.
type PostgresTransactionRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresTransactionRepository создает новый экземпляр PostgresTransactionRepository.
func NewPostgresTransactionRepository(db *pgxpool.Pool) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{DB: db}
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var t models.Transaction
	if err := row.Scan(&t.ID, &t.TransactionID, &t.BidID, &t.BuyerID, &t.Status, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTransaction сохраняет платежную операцию.
func (r *PostgresTransactionRepository) CreateTransaction(ctx context.Context, transaction models.Transaction) (*models.Transaction, error) {
	query := `INSERT INTO transaction (` + transactionColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING ` + transactionColumns
	created, err := scanTransaction(db.Conn(ctx, r.DB).QueryRow(
		ctx,
		query,
		transaction.ID,
		transaction.TransactionID,
		transaction.BidID,
		transaction.BuyerID,
		transaction.Status,
		transaction.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("transaction %s: %w", transaction.TransactionID, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return created, nil
}

// GetTransactionByBid возвращает операцию по предложению или nil, если ее нет.
func (r *PostgresTransactionRepository) GetTransactionByBid(ctx context.Context, bidId string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transaction WHERE bid_id = $1`
	t, err := scanTransaction(db.Conn(ctx, r.DB).QueryRow(ctx, query, bidId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// MaxTransactionSequence возвращает наибольший номер вида TR-NNN у покупателя.
func (r *PostgresTransactionRepository) MaxTransactionSequence(ctx context.Context, buyerId string) (int, error) {
	var sequence int
	query := `SELECT COALESCE(MAX(CAST(SUBSTRING(transaction_id FROM 4) AS INTEGER)), 0)
	          FROM transaction WHERE buyer_id = $1 AND transaction_id ~ '^TR-[0-9]+$'`
	err := db.Conn(ctx, r.DB).QueryRow(ctx, query, buyerId).Scan(&sequence)
	return sequence, err
}

// GetBuyerTransactions возвращает операции покупателя, новые первыми.
func (r *PostgresTransactionRepository) GetBuyerTransactions(ctx context.Context, buyerId string) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transaction WHERE buyer_id = $1 ORDER BY created_at DESC`
	return r.selectTransactions(ctx, query, buyerId)
}

// GetSellerTransactions возвращает операции по предложениям продавца, новые первыми.
func (r *PostgresTransactionRepository) GetSellerTransactions(ctx context.Context, sellerId string) ([]models.Transaction, error) {
	query := `SELECT t.id, t.transaction_id, t.bid_id, t.buyer_id, t.status, t.created_at
	          FROM transaction t
	          JOIN bid b ON b.id = t.bid_id
	          WHERE b.seller_id = $1
	          ORDER BY t.created_at DESC`
	return r.selectTransactions(ctx, query, sellerId)
}

// UpdateTransactionId заменяет идентификатор операции, выданный покупателю.
func (r *PostgresTransactionRepository) UpdateTransactionId(ctx context.Context, id, transactionId string) (*models.Transaction, error) {
	query := `UPDATE transaction SET transaction_id = $2 WHERE id = $1 RETURNING ` + transactionColumns
	updated, err := scanTransaction(db.Conn(ctx, r.DB).QueryRow(ctx, query, id, transactionId))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	case err != nil && isUniqueViolation(err):
		return nil, fmt.Errorf("transaction %s: %w", transactionId, ErrDuplicate)
	case err != nil:
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	return updated, nil
}

func (r *PostgresTransactionRepository) selectTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := db.Conn(ctx, r.DB).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}
