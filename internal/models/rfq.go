package models

import "time"

type RFQState string // Статус запроса котировок

const (
	OpenedRFQ  RFQState = "OPENED"  // Запрос открыт для предложений
	ClosedRFQ  RFQState = "CLOSED"  // Запрос закрыт по сроку или вручную
	AwardedRFQ RFQState = "AWARDED" // По запросу выбран победитель
)

// RFQ представляет модель запроса котировок.
type RFQ struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	ProjectName    string    `json:"projectName"`
	PurchaseNumber string    `json:"purchaseNumber"`
	Category       string    `json:"category"`
	Quantity       int       `json:"quantity"`
	Detail         string    `json:"detail"`
	AuctionDoc     string    `json:"auctionDoc"`
	GuidelineDoc   string    `json:"guidelineDoc"`
	Deadline       time.Time `json:"deadline"`
	State          RFQState  `json:"state"`
	BuyerID        string    `json:"buyerId"`
	CreatedAt      time.Time `json:"createdAt"`
	Presence       Presence  `json:"deletedAt"`
	Bids           []Bid     `json:"bids,omitempty"`
}

// RFQRequest представляет структуру запроса для создания запроса котировок.
type RFQRequest struct {
	Title          string    `json:"title"`
	ProjectName    string    `json:"projectName"`
	PurchaseNumber string    `json:"purchaseNumber"`
	Category       string    `json:"category"`
	Quantity       int       `json:"quantity"`
	Detail         string    `json:"detail"`
	Deadline       time.Time `json:"deadline"`
}

// RFQUpdate содержит изменяемые поля; nil означает "не менять".
type RFQUpdate struct {
	Title       *string    `json:"title"`
	ProjectName *string    `json:"projectName"`
	Category    *string    `json:"category"`
	Quantity    *int       `json:"quantity"`
	Detail      *string    `json:"detail"`
	Deadline    *time.Time `json:"deadline"`
}

// RFQDocuments - обязательные документы запроса котировок.
type RFQDocuments struct {
	AuctionDoc   *Document
	GuidelineDoc *Document
}
