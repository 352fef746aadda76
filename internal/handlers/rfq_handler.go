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

// RFQHandler - структура для обработки HTTP-запросов к запросам котировок.
type RFQHandler struct {
	Service         *services.RFQService
	Logger          *zap.Logger
	Timeout         time.Duration
	MaxDocumentSize int64
}

// NewRFQHandler создаёт новый экземпляр RFQHandler.
func NewRFQHandler(service *services.RFQService, logger *zap.Logger, timeout time.Duration, maxDocumentSize int64) *RFQHandler {
	return &RFQHandler{
		Service:         service,
		Logger:          logger.With(zap.String("handler", "rfq")),
		Timeout:         timeout,
		MaxDocumentSize: maxDocumentSize,
	}
}

func rfqDocuments(docs map[string]*models.Document) models.RFQDocuments {
	return models.RFQDocuments{AuctionDoc: docs["auctionDoc"], GuidelineDoc: docs["guidelineDoc"]}
}

// CreateRFQ обрабатывает запросы для создания запроса котировок.
func (h *RFQHandler) CreateRFQ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var rfqReq models.RFQRequest
	docs, err := decodeForm(w, r, h.MaxDocumentSize, &rfqReq, "auctionDoc", "guidelineDoc")
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}

	rfq, err := h.Service.CreateRFQ(ctx, r.PathValue("buyerId"), rfqReq, rfqDocuments(docs))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, rfq)
}

// GetBuyerRFQs обрабатывает запросы для получения списка запросов покупателя.
func (h *RFQHandler) GetBuyerRFQs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	rfqs, err := h.Service.GetBuyerRFQs(ctx, r.PathValue("buyerId"), limitStr, offsetStr)
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, rfqs)
}

// GetOpenRFQs обрабатывает запросы для получения открытых запросов котировок.
func (h *RFQHandler) GetOpenRFQs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, h.Logger, models.NewErrorResponse(models.InvalidInput, "invalid method, only GET is allowed"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	rfqs, err := h.Service.GetOpenRFQs(ctx, r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, rfqs)
}

// GetRFQ обрабатывает запросы для получения запроса котировок с предложениями.
func (h *RFQHandler) GetRFQ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	rfq, err := h.Service.GetRFQ(ctx, r.PathValue("rfqId"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, rfq)
}

// EditRFQ обрабатывает запросы для изменения запроса котировок.
func (h *RFQHandler) EditRFQ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var update models.RFQUpdate
	docs, err := decodeForm(w, r, h.MaxDocumentSize, &update, "auctionDoc", "guidelineDoc")
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}

	rfq, err := h.Service.EditRFQ(ctx, r.PathValue("rfqId"), update, rfqDocuments(docs))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, rfq)
}

// CloseRFQ обрабатывает запросы для закрытия запроса котировок.
func (h *RFQHandler) CloseRFQ(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, h.Logger, models.NewErrorResponse(models.InvalidInput, "invalid method, only POST is allowed"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	rfq, err := h.Service.CloseRFQ(ctx, r.PathValue("rfqId"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, rfq)
}

// DeleteRFQ обрабатывает запросы для удаления запроса котировок.
func (h *RFQHandler) DeleteRFQ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	rfq, err := h.Service.DeleteRFQ(ctx, r.PathValue("rfqId"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, rfq)
}

// FetchDocument отдает содержимое документа по ссылке из параметра ref.
func (h *RFQHandler) FetchDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, h.Logger, models.NewErrorResponse(models.InvalidInput, "invalid method, only GET is allowed"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	content, err := h.Service.FetchDocument(ctx, r.URL.Query().Get("ref"))
	if err != nil {
		utils.SendErrorResponse(w, h.Logger, err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(content))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		h.Logger.Warn("failed to write document", zap.Error(err))
	}
}
