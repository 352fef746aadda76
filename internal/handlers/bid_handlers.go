package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/services"
	"github.com/senyabanana/procurement-service/internal/utils"

	"go.uber.org/zap"
)

// BidHandler - структура для обработки HTTP-запросов.
type BidHandler struct {
	Service         *services.BidService
	Logger          *zap.Logger
	Timeout         time.Duration
	MaxDocumentSize int64
}

// NewBidHandler создает новый экземпляр BidHandler.
func NewBidHandler(service *services.BidService, logger *zap.Logger, timeout time.Duration, maxDocumentSize int64) *BidHandler {
	return &BidHandler{
		Service:         service,
		Logger:          logger.With(zap.String("handler", "bid")),
		Timeout:         timeout,
		MaxDocumentSize: maxDocumentSize,
	}
}

// CreateBid обрабатывает запросы для создания предложения.
func (h *BidHandler) CreateBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var bidReq models.BidRequest
	docs, err := decodeForm(w, r, h.MaxDocumentSize, &bidReq, "bidFiles")
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}

	newBid, err := h.Service.CreateBid(ctx, r.PathValue("sellerId"), bidReq, docs["bidFiles"])
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, newBid)
}

// GetSellerBids обрабатывает запросы для получения списка предложений продавца.
func (h *BidHandler) GetSellerBids(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bids, err := h.Service.GetSellerBids(ctx, r.PathValue("sellerId"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, bids)
}

// BidStateCounts обрабатывает запросы для подсчета предложений продавца по статусам.
func (h *BidHandler) BidStateCounts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	counts, err := h.Service.BidStateCounts(ctx, r.PathValue("sellerId"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, counts)
}

// GetRFQBids обрабатывает запросы для получения предложений по запросу котировок.
func (h *BidHandler) GetRFQBids(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bids, err := h.Service.GetRFQBids(ctx, r.PathValue("rfqId"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, bids)
}

// GetBid обрабатывает запросы для получения предложения.
func (h *BidHandler) GetBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := h.Service.GetBid(ctx, r.PathValue("bidId"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, bid)
}

// EditBid обрабатывает запросы для редактирования предложения.
func (h *BidHandler) EditBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var update models.BidUpdate
	docs, err := decodeForm(w, r, h.MaxDocumentSize, &update, "bidFiles")
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}

	updatedBid, err := h.Service.EditBid(ctx, r.PathValue("bidId"), update, docs["bidFiles"])
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, updatedBid)
}

// AwardBid обрабатывает запросы для присуждения предложения.
func (h *BidHandler) AwardBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, h.Logger, models.NewErrorResponse(models.InvalidInput, "invalid method, only POST is allowed"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := h.Service.AwardBid(ctx, r.PathValue("bidId"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, bid)
}

// RejectBid обрабатывает запросы для отклонения предложения.
func (h *BidHandler) RejectBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, h.Logger, models.NewErrorResponse(models.InvalidInput, "invalid method, only POST is allowed"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := h.Service.RejectBid(ctx, r.PathValue("bidId"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, bid)
}

// DeleteBid обрабатывает запросы для удаления предложения.
func (h *BidHandler) DeleteBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := h.Service.DeleteBid(ctx, r.PathValue("bidId"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, bid)
}
