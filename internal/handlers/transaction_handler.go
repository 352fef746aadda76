package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/services"
	"github.com/senyabanana/procurement-service/internal/utils"

	"go.uber.org/zap"
)

// TransactionHandler обрабатывает запросы к платежным операциям.
type TransactionHandler struct {
	Service *services.TransactionService
	Logger  *zap.Logger
	Timeout time.Duration
}

// NewTransactionHandler создает новый экземпляр TransactionHandler.
func NewTransactionHandler(service *services.TransactionService, logger *zap.Logger, timeout time.Duration) *TransactionHandler {
	return &TransactionHandler{
		Service: service,
		Logger:  logger.With(zap.String("handler", "transaction")),
		Timeout: timeout,
	}
}

type transactionRequest struct {
	BidID         string `json:"bidId"`
	TransactionID string `json:"transactionId"`
}

// RecordTransaction обрабатывает запросы для сохранения платежной операции.
func (h *TransactionHandler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendErrorResponse(w, h.Logger, models.NewErrorResponse(models.InvalidInput, "invalid request body"))
		return
	}

	transaction, err := h.Service.RecordTransaction(ctx, r.PathValue("buyerId"), req.BidID, req.TransactionID)
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, transaction)
}

// GetBuyerTransactions обрабатывает запросы для получения операций покупателя.
func (h *TransactionHandler) GetBuyerTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	transactions, err := h.Service.GetBuyerTransactions(ctx, r.PathValue("buyerId"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, transactions)
}

// GetSellerTransactions обрабатывает запросы для получения операций продавца.
func (h *TransactionHandler) GetSellerTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	transactions, err := h.Service.GetSellerTransactions(ctx, r.PathValue("sellerId"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, transactions)
}
