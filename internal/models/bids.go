package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BidState string // Статус предложения

const (
	OpenedBid   BidState = "OPENED"   // Предложение подано
	AwardedBid  BidState = "AWARDED"  // Предложение выиграло
	RejectedBid BidState = "REJECTED" // Предложение отклонено
	ClosedBid   BidState = "CLOSED"   // Запрос закрыт по сроку
)

// Bid представляет модель предложения.
// Денежные суммы уходят в JSON строками, на входе принимаются и строки, и числа.
type Bid struct {
	ID         string          `json:"id"`
	RFQID      string          `json:"rfqId"`
	SellerID   string          `json:"sellerId"`
	Document   string          `json:"bidFiles"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	State      BidState        `json:"state"`
	CreatedAt  time.Time       `json:"createdAt"`
	Presence   Presence        `json:"deletedAt"`
	Items      []BidItem       `json:"bidItems,omitempty"`
	RFQ        *RFQ            `json:"rfq,omitempty"`
}

// BidItem представляет одну позицию предложения.
type BidItem struct {
	ID           string          `json:"id"`
	BidID        string          `json:"bidId"`
	Item         string          `json:"item"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	SinglePrice  decimal.Decimal `json:"singlePrice"`
	TransportFee decimal.Decimal `json:"transportFee"`
	Taxes        decimal.Decimal `json:"taxes"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
}

// BidItemRequest представляет позицию в запросе на создание или изменение предложения.
// Отсутствующие transportFee и taxes равны нулю.
type BidItemRequest struct {
	Item         string          `json:"item"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	SinglePrice  decimal.Decimal `json:"singlePrice"`
	TransportFee decimal.Decimal `json:"transportFee"`
	Taxes        decimal.Decimal `json:"taxes"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
}

// BidRequest представляет структуру запроса для создания предложения.
type BidRequest struct {
	RFQID      string           `json:"rfqId"`
	TotalPrice decimal.Decimal  `json:"totalPrice"`
	Items      []BidItemRequest `json:"bidItems"`
}

// BidUpdate представляет структуру запроса для изменения предложения.
// Items == nil оставляет позиции без изменений, иначе набор заменяется целиком.
type BidUpdate struct {
	TotalPrice *decimal.Decimal `json:"totalPrice"`
	Items      []BidItemRequest `json:"bidItems"`
}

// BidStateCount - число предложений продавца в каждом статусе.
type BidStateCount map[BidState]int
