package router

import (
	"net/http"

	"github.com/senyabanana/procurement-service/internal/handlers"

	"go.uber.org/zap"
)

func InitRoutes(rfqHandler *handlers.RFQHandler, bidHandler *handlers.BidHandler,
	transactionHandler *handlers.TransactionHandler, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ping", handlers.PingHandler(logger))
	mux.HandleFunc("/api/rfqs", rfqHandler.GetOpenRFQs)
	mux.HandleFunc("/api/documents", rfqHandler.FetchDocument)
	mux.HandleFunc("POST /api/buyers/{buyerId}/rfqs", rfqHandler.CreateRFQ)
	mux.HandleFunc("GET /api/buyers/{buyerId}/rfqs", rfqHandler.GetBuyerRFQs)
	mux.HandleFunc("GET /api/rfqs/{rfqId}", rfqHandler.GetRFQ)
	mux.HandleFunc("PATCH /api/rfqs/{rfqId}", rfqHandler.EditRFQ)
	mux.HandleFunc("DELETE /api/rfqs/{rfqId}", rfqHandler.DeleteRFQ)
	mux.HandleFunc("/api/rfqs/{rfqId}/close", rfqHandler.CloseRFQ)

	mux.HandleFunc("GET /api/rfqs/{rfqId}/bids", bidHandler.GetRFQBids)
	mux.HandleFunc("POST /api/sellers/{sellerId}/bids", bidHandler.CreateBid)
	mux.HandleFunc("GET /api/sellers/{sellerId}/bids", bidHandler.GetSellerBids)
	mux.HandleFunc("GET /api/sellers/{sellerId}/bids/stats", bidHandler.BidStateCounts)
	mux.HandleFunc("GET /api/bids/{bidId}", bidHandler.GetBid)
	mux.HandleFunc("PATCH /api/bids/{bidId}", bidHandler.EditBid)
	mux.HandleFunc("DELETE /api/bids/{bidId}", bidHandler.DeleteBid)
	mux.HandleFunc("/api/bids/{bidId}/award", bidHandler.AwardBid)
	mux.HandleFunc("/api/bids/{bidId}/reject", bidHandler.RejectBid)

	mux.HandleFunc("GET /api/buyers/{buyerId}/transactions", transactionHandler.GetBuyerTransactions)
	mux.HandleFunc("POST /api/buyers/{buyerId}/transactions", transactionHandler.RecordTransaction)
	mux.HandleFunc("GET /api/sellers/{sellerId}/transactions", transactionHandler.GetSellerTransactions)

	return mux
}
