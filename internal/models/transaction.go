package models

import "time"

type TransactionStatus string

const (
	PendingTransaction TransactionStatus = "PENDING"
	PaidTransaction    TransactionStatus = "PAID"
)

// Transaction - платежная операция по выигравшему предложению.
type Transaction struct {
	ID            string            `json:"id"`
	TransactionID string            `json:"transactionId"`
	BidID         string            `json:"bidId"`
	BuyerID       string            `json:"buyerId"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
}
