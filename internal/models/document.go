package models

type DocumentCategory string // Категория документа в хранилище

const (
	RFQDocument DocumentCategory = "rfq"
	BidDocument DocumentCategory = "bid"
)

// Document - загруженный файл до помещения в хранилище.
type Document struct {
	Name    string
	Content []byte
}
