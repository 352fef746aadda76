package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"
	"github.com/senyabanana/procurement-service/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Число попыток создать запрос со сгенерированным номером закупки,
// если параллельный запрос успел занять тот же номер.
const purchaseNumberAttempts = 3

type RFQService struct {
	RFQs   repository.RFQRepository
	Bids   repository.BidRepository
	Users  repository.UserRepository
	Tx     repository.Transactor
	Docs   DocumentStore
	Now    Clock
	logger *zap.Logger
}

// NewRFQService создаёт новый экземпляр RFQService.
func NewRFQService(rfqs repository.RFQRepository, bids repository.BidRepository, users repository.UserRepository,
	tx repository.Transactor, docs DocumentStore, logger *zap.Logger) *RFQService {
	return &RFQService{
		RFQs:   rfqs,
		Bids:   bids,
		Users:  users,
		Tx:     tx,
		Docs:   docs,
		Now:    utcNow,
		logger: logger.With(zap.String("service", "rfq")),
	}
}

func validRFQFields(title, category string, quantity int) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(category) == "" {
		return models.NewErrorResponse(models.InvalidInput, "title and category are required")
	}
	if quantity <= 0 {
		return models.NewErrorResponse(models.InvalidInput, "quantity must be positive")
	}
	return nil
}

func hasContent(doc *models.Document) bool {
	return doc != nil && len(doc.Content) > 0
}

// NextPurchaseNumber возвращает следующий номер закупки покупателя вида PN-NNN.
func (s *RFQService) NextPurchaseNumber(ctx context.Context, buyerId string) (string, error) {
	sequence, err := s.RFQs.MaxPurchaseSequence(ctx, buyerId)
	if err != nil {
		return "", repoError(err, "rfq")
	}
	return fmt.Sprintf("PN-%03d", sequence+1), nil
}

// CreateRFQ создает запрос котировок в статусе OPENED.
func (s *RFQService) CreateRFQ(ctx context.Context, buyerId string, rfqReq models.RFQRequest, docs models.RFQDocuments) (*models.RFQ, error) {
	if _, err := s.Users.GetUserById(ctx, buyerId); err != nil {
		return nil, repoError(err, "user")
	}
	if err := validRFQFields(rfqReq.Title, rfqReq.Category, rfqReq.Quantity); err != nil {
		return nil, err
	}
	if rfqReq.Deadline.IsZero() || !rfqReq.Deadline.After(s.Now()) {
		return nil, models.NewErrorResponse(models.InvalidInput, "deadline must be in the future")
	}

	purchaseNumber := strings.TrimSpace(rfqReq.PurchaseNumber)
	generated := purchaseNumber == ""
	if !generated {
		existing, err := s.RFQs.FindByPurchaseNumber(ctx, buyerId, purchaseNumber)
		if err != nil {
			return nil, repoError(err, "rfq")
		}
		if existing != nil {
			return nil, models.NewErrorResponse(models.Conflict, fmt.Sprintf("purchase number %s is already used", purchaseNumber))
		}
	}
	if !hasContent(docs.AuctionDoc) || !hasContent(docs.GuidelineDoc) {
		return nil, models.NewErrorResponse(models.InvalidInput, "auctionDoc and guidelineDoc are required")
	}

	rfq := models.RFQ{
		ID:          uuid.New().String(),
		Title:       rfqReq.Title,
		ProjectName: rfqReq.ProjectName,
		Category:    rfqReq.Category,
		Quantity:    rfqReq.Quantity,
		Detail:      rfqReq.Detail,
		Deadline:    rfqReq.Deadline.UTC(),
		State:       models.OpenedRFQ,
		BuyerID:     buyerId,
		CreatedAt:   s.Now(),
		Presence:    models.Active(),
	}

	var err error
	if rfq.AuctionDoc, err = s.Docs.Store(ctx, *docs.AuctionDoc, models.RFQDocument, rfq.ID); err != nil {
		return nil, err
	}
	if rfq.GuidelineDoc, err = s.Docs.Store(ctx, *docs.GuidelineDoc, models.RFQDocument, rfq.ID); err != nil {
		discard(ctx, s.Docs, s.logger, rfq.AuctionDoc)
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		if generated {
			if rfq.PurchaseNumber, err = s.NextPurchaseNumber(ctx, buyerId); err != nil {
				break
			}
		} else {
			rfq.PurchaseNumber = purchaseNumber
		}

		var created *models.RFQ
		created, err = s.RFQs.CreateRFQ(ctx, rfq)
		if err == nil {
			s.logger.Info("rfq created", zap.String("rfq_id", created.ID), zap.String("purchase_number", created.PurchaseNumber))
			return created, nil
		}
		if !generated || !errors.Is(err, repository.ErrDuplicate) || attempt == purchaseNumberAttempts {
			break
		}
	}

	discard(ctx, s.Docs, s.logger, rfq.AuctionDoc, rfq.GuidelineDoc)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, models.NewErrorResponse(models.Conflict, fmt.Sprintf("purchase number %s is already used", rfq.PurchaseNumber))
	}
	return nil, repoError(err, "rfq")
}

// GetRFQ возвращает запрос котировок вместе с предложениями.
func (s *RFQService) GetRFQ(ctx context.Context, rfqId string) (*models.RFQ, error) {
	rfq, err := s.RFQs.GetRFQById(ctx, rfqId, true)
	if err != nil {
		return nil, repoError(err, "rfq")
	}
	return rfq, nil
}

// GetBuyerRFQs получает список запросов покупателя.
func (s *RFQService) GetBuyerRFQs(ctx context.Context, buyerId, limitStr, offsetStr string) ([]models.RFQ, error) {
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewErrorResponse(models.InvalidInput, err.Error())
	}
	if _, err := s.Users.GetUserById(ctx, buyerId); err != nil {
		return nil, repoError(err, "user")
	}
	rfqs, err := s.RFQs.GetBuyerRFQs(ctx, buyerId, limit, offset)
	if err != nil {
		return nil, repoError(err, "rfq")
	}
	return rfqs, nil
}

// GetOpenRFQs получает открытые запросы, по которым еще можно подать предложение.
func (s *RFQService) GetOpenRFQs(ctx context.Context, limitStr, offsetStr string) ([]models.RFQ, error) {
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewErrorResponse(models.InvalidInput, err.Error())
	}
	rfqs, err := s.RFQs.GetOpenRFQs(ctx, s.Now(), limit, offset)
	if err != nil {
		return nil, repoError(err, "rfq")
	}
	return rfqs, nil
}

// EditRFQ меняет поля и документы открытого запроса.
// Замененные документы удаляются только после сохранения новых ссылок.
func (s *RFQService) EditRFQ(ctx context.Context, rfqId string, update models.RFQUpdate, docs models.RFQDocuments) (*models.RFQ, error) {
	rfq, err := s.RFQs.GetRFQById(ctx, rfqId, false)
	if err != nil {
		return nil, repoError(err, "rfq")
	}
	if rfq.State != models.OpenedRFQ {
		return nil, models.NewErrorResponse(models.InvalidState, fmt.Sprintf("rfq is %s and can no longer be edited", rfq.State))
	}

	if update.Title != nil {
		rfq.Title = *update.Title
	}
	if update.ProjectName != nil {
		rfq.ProjectName = *update.ProjectName
	}
	if update.Category != nil {
		rfq.Category = *update.Category
	}
	if update.Quantity != nil {
		rfq.Quantity = *update.Quantity
	}
	if update.Detail != nil {
		rfq.Detail = *update.Detail
	}
	if update.Deadline != nil {
		if !update.Deadline.After(s.Now()) {
			return nil, models.NewErrorResponse(models.InvalidInput, "deadline must be in the future")
		}
		rfq.Deadline = update.Deadline.UTC()
	}
	if err := validRFQFields(rfq.Title, rfq.Category, rfq.Quantity); err != nil {
		return nil, err
	}

	var stored, replaced []string
	swap := func(doc *models.Document, ref *string) error {
		if doc == nil {
			return nil
		}
		newRef, err := s.Docs.Store(ctx, *doc, models.RFQDocument, rfq.ID)
		if err != nil {
			return err
		}
		stored = append(stored, newRef)
		replaced = append(replaced, *ref)
		*ref = newRef
		return nil
	}
	if err := swap(docs.AuctionDoc, &rfq.AuctionDoc); err != nil {
		discard(ctx, s.Docs, s.logger, stored...)
		return nil, err
	}
	if err := swap(docs.GuidelineDoc, &rfq.GuidelineDoc); err != nil {
		discard(ctx, s.Docs, s.logger, stored...)
		return nil, err
	}

	updated, err := s.RFQs.UpdateRFQ(ctx, *rfq)
	if err != nil {
		discard(ctx, s.Docs, s.logger, stored...)
		return nil, repoError(err, "rfq")
	}
	discard(ctx, s.Docs, s.logger, replaced...)
	return updated, nil
}

// CloseRFQ закрывает запрос по решению покупателя.
// Повторное закрытие не ошибка, закрыть присужденный запрос нельзя.
func (s *RFQService) CloseRFQ(ctx context.Context, rfqId string) (*models.RFQ, error) {
	rfq, _, err := s.closeRFQ(ctx, rfqId)
	if err != nil {
		return nil, err
	}
	return rfq, nil
}

// closeRFQ - общий путь ручного закрытия и закрытия по сроку.
// Переводит запрос в CLOSED и закрывает его открытые предложения в одной транзакции.
// changed == false означает, что запрос уже был закрыт.
func (s *RFQService) closeRFQ(ctx context.Context, rfqId string) (rfq *models.RFQ, changed bool, err error) {
	var closedBids int64
	err = s.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		rfq, err = s.RFQs.UpdateState(ctx, rfqId, models.ClosedRFQ, rfqSources(models.ClosedRFQ)...)
		if err != nil {
			return err
		}
		closedBids, err = s.Bids.CloseOpenBids(ctx, rfqId)
		return err
	})
	if err == nil {
		s.logger.Info("rfq closed", zap.String("rfq_id", rfqId), zap.Int64("closed_bids", closedBids))
		return rfq, true, nil
	}
	if !errors.Is(err, repository.ErrStateConflict) {
		return nil, false, repoError(err, "rfq")
	}

	current, getErr := s.RFQs.GetRFQById(ctx, rfqId, false)
	if getErr != nil {
		return nil, false, repoError(getErr, "rfq")
	}
	if current.State == models.ClosedRFQ {
		return current, false, nil
	}
	return nil, false, models.NewErrorResponse(models.InvalidState, fmt.Sprintf("rfq is %s and cannot be closed", current.State))
}

// DeleteRFQ помечает запрос удаленным.
func (s *RFQService) DeleteRFQ(ctx context.Context, rfqId string) (*models.RFQ, error) {
	rfq, err := s.RFQs.SoftDelete(ctx, rfqId, s.Now())
	if err != nil {
		return nil, repoError(err, "rfq")
	}
	return rfq, nil
}

// FetchDocument возвращает содержимое документа по ссылке.
func (s *RFQService) FetchDocument(ctx context.Context, ref string) ([]byte, error) {
	return s.Docs.Fetch(ctx, ref)
}

var skippable = []models.ErrorKind{models.InvalidState, models.NotFound}

// SweepResult - итог одного прохода закрытия по сроку.
type SweepResult struct {
	Closed  []string
	Skipped []string
	Failed  map[string]error
}

// CloseExpiredSweep закрывает все открытые запросы со сроком раньше now.
// Ошибка по одному запросу не прерывает проход.
func (s *RFQService) CloseExpiredSweep(ctx context.Context, now time.Time) (SweepResult, error) {
	result := SweepResult{Failed: map[string]error{}}
	expired, err := s.RFQs.FindOpenExpired(ctx, now)
	if err != nil {
		return result, repoError(err, "rfq")
	}

	for _, rfq := range expired {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		_, changed, err := s.closeRFQ(ctx, rfq.ID)
		switch {
		case err != nil && !utils.Contains(skippable, models.KindOf(err)):
			result.Failed[rfq.ID] = err
			s.logger.Warn("failed to close expired rfq", zap.String("rfq_id", rfq.ID), zap.Error(err))
		case err != nil || !changed:
			// присужден, закрыт или удален параллельно
			result.Skipped = append(result.Skipped, rfq.ID)
		default:
			result.Closed = append(result.Closed, rfq.ID)
		}
	}

	s.logger.Info("expiry sweep finished",
		zap.Time("now", now),
		zap.Int("closed", len(result.Closed)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}
