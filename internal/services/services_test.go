package services

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"
	"github.com/senyabanana/procurement-service/internal/repository/memory"
	"github.com/senyabanana/procurement-service/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	buyerId  = "buyer-1"
	sellerId = "seller-1"
)

type LifecycleSuite struct {
	suite.Suite
	ctx          context.Context
	now          time.Time
	store        *memory.Store
	docs         *storage.FileStore
	rfqs         *RFQService
	bids         *BidService
	award        *AwardCoordinator
	transactions *TransactionService
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	s.store = memory.NewStore()
	s.docs = storage.NewFileStore(afero.NewMemMapFs(), 1<<20, zap.NewNop())
	s.Require().NoError(s.store.AddUser(s.ctx, models.User{ID: buyerId, Role: models.Buyer}))
	s.Require().NoError(s.store.AddUser(s.ctx, models.User{ID: sellerId, Role: models.Seller}))
	s.Require().NoError(s.store.AddUser(s.ctx, models.User{ID: "buyer-2", Role: models.Buyer}))
	s.wire(s.store.Bids())
}

// wire собирает сервисы поверх bids, чтобы тесты могли подменить репозиторий предложений.
func (s *LifecycleSuite) wire(bids repository.BidRepository) {
	logger := zap.NewNop()
	clock := func() time.Time { return s.now }
	s.transactions = NewTransactionService(s.store.Transactions(), bids, s.store.Users(), logger)
	s.transactions.Now = clock
	s.award = NewAwardCoordinator(s.store.RFQs(), bids, s.store, s.transactions, logger)
	s.rfqs = NewRFQService(s.store.RFQs(), bids, s.store.Users(), s.store, s.docs, logger)
	s.rfqs.Now = clock
	s.bids = NewBidService(s.store.RFQs(), bids, s.store.Users(), s.store, s.docs, s.award, logger)
	s.bids.Now = clock
}

func pdf() *models.Document {
	return &models.Document{Name: "terms.pdf", Content: []byte("%PDF")}
}

func zip() *models.Document {
	return &models.Document{Name: "offer.zip", Content: []byte("PK")}
}

func item(name string, quantity, price int64) models.BidItemRequest {
	return models.BidItemRequest{
		Item:        name,
		Quantity:    decimal.NewFromInt(quantity),
		Unit:        "pcs",
		SinglePrice: decimal.NewFromInt(price),
		TotalPrice:  decimal.NewFromInt(quantity * price),
	}
}

func (s *LifecycleSuite) kind(err error) models.ErrorKind {
	s.T().Helper()
	s.Require().Error(err)
	return models.KindOf(err)
}

func (s *LifecycleSuite) files(dir string) []string {
	var names []string
	_ = afero.Walk(s.docs.Fs, dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			names = append(names, path)
		}
		return nil
	})
	return names
}

func (s *LifecycleSuite) openRFQ(deadline time.Time) *models.RFQ {
	rfq, err := s.rfqs.CreateRFQ(s.ctx, buyerId, models.RFQRequest{
		Title:    "Cement supply",
		Category: "construction",
		Quantity: 100,
		Deadline: deadline,
	}, models.RFQDocuments{AuctionDoc: pdf(), GuidelineDoc: pdf()})
	s.Require().NoError(err)
	return rfq
}

func (s *LifecycleSuite) openBid(rfqId string, items ...models.BidItemRequest) *models.Bid {
	total := decimal.Zero
	for _, i := range items {
		total = total.Add(i.TotalPrice)
	}
	bid, err := s.bids.CreateBid(s.ctx, sellerId, models.BidRequest{RFQID: rfqId, TotalPrice: total, Items: items}, zip())
	s.Require().NoError(err)
	return bid
}

func (s *LifecycleSuite) bidState(bidId string) models.BidState {
	bid, err := s.store.Bids().GetBidById(s.ctx, bidId, false)
	s.Require().NoError(err)
	return bid.State
}

func (s *LifecycleSuite) rfqState(rfqId string) models.RFQState {
	rfq, err := s.store.RFQs().GetRFQById(s.ctx, rfqId, false)
	s.Require().NoError(err)
	return rfq.State
}

func (s *LifecycleSuite) TestCreateRFQ() {
	first := s.openRFQ(s.now.Add(time.Hour))
	second := s.openRFQ(s.now.Add(time.Hour))
	s.Equal("PN-001", first.PurchaseNumber)
	s.Equal("PN-002", second.PurchaseNumber)
	s.Equal(models.OpenedRFQ, first.State)
	s.True(strings.HasPrefix(first.AuctionDoc, "/rfq/"+first.ID+"/"))

	req := models.RFQRequest{Title: "t", Category: "c", Quantity: 1, Deadline: s.now.Add(time.Hour), PurchaseNumber: "PN-001"}
	docs := models.RFQDocuments{AuctionDoc: pdf(), GuidelineDoc: pdf()}
	_, err := s.rfqs.CreateRFQ(s.ctx, buyerId, req, docs)
	s.Equal(models.Conflict, s.kind(err))

	// номер закупки уникален только в пределах покупателя
	other, err := s.rfqs.CreateRFQ(s.ctx, "buyer-2", req, docs)
	s.Require().NoError(err)
	s.Equal("PN-001", other.PurchaseNumber)

	req.PurchaseNumber = ""
	_, err = s.rfqs.CreateRFQ(s.ctx, buyerId, req, models.RFQDocuments{AuctionDoc: pdf()})
	s.Equal(models.InvalidInput, s.kind(err))

	_, err = s.rfqs.CreateRFQ(s.ctx, "ghost", req, docs)
	s.Equal(models.NotFound, s.kind(err))

	req.Deadline = s.now.Add(-time.Minute)
	_, err = s.rfqs.CreateRFQ(s.ctx, buyerId, req, docs)
	s.Equal(models.InvalidInput, s.kind(err))

	s.Len(s.files("/rfq"), 6)
}

func (s *LifecycleSuite) TestPurchaseNumberCountsDeletedRFQs() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	_, err := s.rfqs.DeleteRFQ(s.ctx, rfq.ID)
	s.Require().NoError(err)

	next, err := s.rfqs.NextPurchaseNumber(s.ctx, buyerId)
	s.Require().NoError(err)
	s.Equal("PN-002", next)

	_, err = s.rfqs.GetRFQ(s.ctx, rfq.ID)
	s.Equal(models.NotFound, s.kind(err))
}

func (s *LifecycleSuite) TestMismatchedItemPersistsNothing() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	bad := models.BidItemRequest{
		Item:        "cement",
		Quantity:    decimal.NewFromInt(2),
		Unit:        "bag",
		SinglePrice: decimal.NewFromInt(50),
		TotalPrice:  decimal.NewFromInt(110),
	}
	_, err := s.bids.CreateBid(s.ctx, sellerId, models.BidRequest{
		RFQID:      rfq.ID,
		TotalPrice: decimal.NewFromInt(110),
		Items:      []models.BidItemRequest{bad},
	}, zip())
	s.Equal(models.InvalidInput, s.kind(err))

	bids, err := s.bids.GetRFQBids(s.ctx, rfq.ID)
	s.Require().NoError(err)
	s.Empty(bids)
	s.Empty(s.files("/bid"))
}

func (s *LifecycleSuite) TestBidTotalMustMatchItems() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	_, err := s.bids.CreateBid(s.ctx, sellerId, models.BidRequest{
		RFQID:      rfq.ID,
		TotalPrice: decimal.NewFromInt(99),
		Items:      []models.BidItemRequest{item("cement", 2, 50)},
	}, zip())
	s.Equal(models.InvalidInput, s.kind(err))
}

func (s *LifecycleSuite) TestCreateBidPreconditions() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	req := models.BidRequest{RFQID: rfq.ID, TotalPrice: decimal.NewFromInt(100), Items: []models.BidItemRequest{item("cement", 2, 50)}}

	_, err := s.bids.CreateBid(s.ctx, sellerId, req, nil)
	s.Equal(models.InvalidInput, s.kind(err))

	_, err = s.bids.CreateBid(s.ctx, "ghost", req, zip())
	s.Equal(models.NotFound, s.kind(err))

	missing := req
	missing.RFQID = "missing"
	_, err = s.bids.CreateBid(s.ctx, sellerId, missing, zip())
	s.Equal(models.NotFound, s.kind(err))

	s.now = rfq.Deadline.Add(time.Second)
	_, err = s.bids.CreateBid(s.ctx, sellerId, req, zip())
	s.Equal(models.InvalidState, s.kind(err))

	s.Empty(s.files("/bid"))
}

func (s *LifecycleSuite) TestAwardRejectsSiblings() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	b1 := s.openBid(rfq.ID, item("cement", 3, 50))
	b2 := s.openBid(rfq.ID, item("cement", 4, 50))
	s.True(b1.TotalPrice.Equal(decimal.NewFromInt(150)))
	s.True(b2.TotalPrice.Equal(decimal.NewFromInt(200)))

	awarded, err := s.bids.AwardBid(s.ctx, b1.ID)
	s.Require().NoError(err)
	s.Equal(models.AwardedBid, awarded.State)
	s.Equal(models.AwardedRFQ, awarded.RFQ.State)

	s.Equal(models.AwardedBid, s.bidState(b1.ID))
	s.Equal(models.RejectedBid, s.bidState(b2.ID))
	s.Equal(models.AwardedRFQ, s.rfqState(rfq.ID))

	rejected, err := s.bids.RejectBid(s.ctx, b2.ID)
	s.Require().NoError(err)
	s.Equal(models.RejectedBid, rejected.State)

	transactions, err := s.transactions.GetBuyerTransactions(s.ctx, buyerId)
	s.Require().NoError(err)
	s.Require().Len(transactions, 1)
	s.Equal("TR-001", transactions[0].TransactionID)
	s.Equal(b1.ID, transactions[0].BidID)
	s.Equal(models.PendingTransaction, transactions[0].Status)

	_, err = s.bids.AwardBid(s.ctx, b2.ID)
	s.Equal(models.InvalidState, s.kind(err))
}

func (s *LifecycleSuite) TestSweepClosesExpiredRFQs() {
	deadline := s.now.Add(time.Hour)
	rfq := s.openRFQ(deadline)
	live := s.openRFQ(deadline.Add(time.Hour))
	b1 := s.openBid(rfq.ID, item("cement", 2, 50))
	b2 := s.openBid(live.ID, item("cement", 2, 50))

	s.now = deadline.Add(time.Minute)
	result, err := s.rfqs.CloseExpiredSweep(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal([]string{rfq.ID}, result.Closed)
	s.Empty(result.Failed)

	s.Equal(models.ClosedRFQ, s.rfqState(rfq.ID))
	s.Equal(models.ClosedBid, s.bidState(b1.ID))
	s.Equal(models.OpenedRFQ, s.rfqState(live.ID))
	s.Equal(models.OpenedBid, s.bidState(b2.ID))

	_, err = s.bids.AwardBid(s.ctx, b1.ID)
	s.Equal(models.InvalidState, s.kind(err))

	again, err := s.rfqs.CloseExpiredSweep(s.ctx, s.now)
	s.Require().NoError(err)
	s.Empty(again.Closed)
	s.Empty(again.Failed)
	s.Equal(models.ClosedRFQ, s.rfqState(rfq.ID))
	s.Equal(models.ClosedBid, s.bidState(b1.ID))
}

func (s *LifecycleSuite) TestSweepSkipsAwardedAndKeepsAwardedBid() {
	deadline := s.now.Add(time.Hour)
	rfq := s.openRFQ(deadline)
	b1 := s.openBid(rfq.ID, item("cement", 2, 50))
	_, err := s.bids.AwardBid(s.ctx, b1.ID)
	s.Require().NoError(err)

	result, err := s.rfqs.CloseExpiredSweep(s.ctx, deadline.Add(time.Minute))
	s.Require().NoError(err)
	s.Empty(result.Closed)
	s.Equal(models.AwardedRFQ, s.rfqState(rfq.ID))
	s.Equal(models.AwardedBid, s.bidState(b1.ID))
}

func (s *LifecycleSuite) TestSweepContinuesPastFailure() {
	deadline := s.now.Add(time.Hour)
	broken := s.openRFQ(deadline)
	healthy := s.openRFQ(deadline.Add(time.Minute))
	s.wire(&failingBids{BidRepository: s.store.Bids(), closeFor: broken.ID})

	result, err := s.rfqs.CloseExpiredSweep(s.ctx, deadline.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal([]string{healthy.ID}, result.Closed)
	s.Contains(result.Failed, broken.ID)

	// откат транзакции оставил запрос открытым
	s.Equal(models.OpenedRFQ, s.rfqState(broken.ID))
	s.Equal(models.ClosedRFQ, s.rfqState(healthy.ID))
}

func (s *LifecycleSuite) TestConcurrentAwardsHaveOneWinner() {
	for i := 0; i < 20; i++ {
		rfq := s.openRFQ(s.now.Add(time.Hour))
		b1 := s.openBid(rfq.ID, item("cement", 2, 50))
		b2 := s.openBid(rfq.ID, item("cement", 3, 50))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, id := range []string{b1.ID, b2.ID} {
			wg.Add(1)
			go func(j int, id string) {
				defer wg.Done()
				_, errs[j] = s.bids.AwardBid(s.ctx, id)
			}(j, id)
		}
		wg.Wait()

		s.True((errs[0] == nil) != (errs[1] == nil), "exactly one award must succeed: %v", errs)
		states := []models.BidState{s.bidState(b1.ID), s.bidState(b2.ID)}
		s.ElementsMatch([]models.BidState{models.AwardedBid, models.RejectedBid}, states)
		s.Equal(models.AwardedRFQ, s.rfqState(rfq.ID))
	}
}

func (s *LifecycleSuite) TestAwardAndSweepRace() {
	for i := 0; i < 20; i++ {
		deadline := s.now.Add(time.Hour)
		rfq := s.openRFQ(deadline)
		b1 := s.openBid(rfq.ID, item("cement", 2, 50))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.bids.AwardBid(s.ctx, b1.ID)
		}()
		go func() {
			defer wg.Done()
			_, _ = s.rfqs.CloseExpiredSweep(s.ctx, deadline.Add(time.Minute))
		}()
		wg.Wait()

		switch s.rfqState(rfq.ID) {
		case models.AwardedRFQ:
			s.Equal(models.AwardedBid, s.bidState(b1.ID))
		case models.ClosedRFQ:
			s.Equal(models.ClosedBid, s.bidState(b1.ID))
		default:
			s.Fail("rfq left open")
		}
	}
}

func (s *LifecycleSuite) TestRejectBid() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	b1 := s.openBid(rfq.ID, item("cement", 2, 50))
	b2 := s.openBid(rfq.ID, item("cement", 2, 50))

	rejected, err := s.bids.RejectBid(s.ctx, b2.ID)
	s.Require().NoError(err)
	s.Equal(models.RejectedBid, rejected.State)
	s.Equal(models.OpenedRFQ, s.rfqState(rfq.ID))

	_, err = s.bids.AwardBid(s.ctx, b1.ID)
	s.Require().NoError(err)
	_, err = s.bids.RejectBid(s.ctx, b1.ID)
	s.Equal(models.InvalidState, s.kind(err))

	_, err = s.bids.RejectBid(s.ctx, "missing")
	s.Equal(models.NotFound, s.kind(err))
}

func (s *LifecycleSuite) TestCloseRFQ() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	b1 := s.openBid(rfq.ID, item("cement", 2, 50))

	closed, err := s.rfqs.CloseRFQ(s.ctx, rfq.ID)
	s.Require().NoError(err)
	s.Equal(models.ClosedRFQ, closed.State)
	s.Equal(models.ClosedBid, s.bidState(b1.ID))

	again, err := s.rfqs.CloseRFQ(s.ctx, rfq.ID)
	s.Require().NoError(err)
	s.Equal(models.ClosedRFQ, again.State)

	_, err = s.bids.RejectBid(s.ctx, b1.ID)
	s.Equal(models.InvalidState, s.kind(err))

	awarded := s.openRFQ(s.now.Add(time.Hour))
	b2 := s.openBid(awarded.ID, item("cement", 2, 50))
	_, err = s.bids.AwardBid(s.ctx, b2.ID)
	s.Require().NoError(err)
	_, err = s.rfqs.CloseRFQ(s.ctx, awarded.ID)
	s.Equal(models.InvalidState, s.kind(err))
}

func (s *LifecycleSuite) TestFailedItemInsertRollsBackBid() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	s.wire(&failingBids{BidRepository: s.store.Bids(), failItems: true})

	_, err := s.bids.CreateBid(s.ctx, sellerId, models.BidRequest{
		RFQID:      rfq.ID,
		TotalPrice: decimal.NewFromInt(100),
		Items:      []models.BidItemRequest{item("cement", 2, 50)},
	}, zip())
	s.Equal(models.Internal, s.kind(err))

	bids, err := s.store.Bids().GetRFQBids(s.ctx, rfq.ID)
	s.Require().NoError(err)
	s.Empty(bids)
	s.Empty(s.files("/bid"))
}

func (s *LifecycleSuite) TestEditBid() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	bid := s.openBid(rfq.ID, item("cement", 2, 50))
	oldDoc := bid.Document

	total := decimal.NewFromInt(260)
	edited, err := s.bids.EditBid(s.ctx, bid.ID, models.BidUpdate{
		TotalPrice: &total,
		Items:      []models.BidItemRequest{item("cement", 4, 40), item("sand", 5, 20)},
	}, zip())
	s.Require().NoError(err)
	s.True(edited.TotalPrice.Equal(total))
	s.Len(edited.Items, 2)
	s.NotEqual(oldDoc, edited.Document)
	s.Equal([]string{edited.Document}, s.files("/bid"))

	stored, err := s.bids.GetBid(s.ctx, bid.ID)
	s.Require().NoError(err)
	s.Len(stored.Items, 2)

	wrong := decimal.NewFromInt(1)
	_, err = s.bids.EditBid(s.ctx, bid.ID, models.BidUpdate{TotalPrice: &wrong}, nil)
	s.Equal(models.InvalidInput, s.kind(err))

	_, err = s.bids.EditBid(s.ctx, bid.ID, models.BidUpdate{Items: []models.BidItemRequest{item("cement", 1, 1)}}, nil)
	s.Equal(models.InvalidInput, s.kind(err))

	stored, err = s.bids.GetBid(s.ctx, bid.ID)
	s.Require().NoError(err)
	s.True(stored.TotalPrice.Equal(total))
	s.Len(stored.Items, 2)

	_, err = s.bids.RejectBid(s.ctx, bid.ID)
	s.Require().NoError(err)
	_, err = s.bids.EditBid(s.ctx, bid.ID, models.BidUpdate{TotalPrice: &total}, nil)
	s.Equal(models.InvalidState, s.kind(err))
}

func (s *LifecycleSuite) TestEditBidKeepsOldDocumentOnFailure() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	bid := s.openBid(rfq.ID, item("cement", 2, 50))
	s.wire(&failingBids{BidRepository: s.store.Bids(), failItems: true})

	_, err := s.bids.EditBid(s.ctx, bid.ID, models.BidUpdate{
		Items: []models.BidItemRequest{item("cement", 1, 100)},
	}, zip())
	s.Equal(models.Internal, s.kind(err))

	s.Equal([]string{bid.Document}, s.files("/bid"))
	stored, err := s.store.Bids().GetBidById(s.ctx, bid.ID, true)
	s.Require().NoError(err)
	s.Equal(bid.Document, stored.Document)
	s.Len(stored.Items, 1)
	s.True(stored.Items[0].Quantity.Equal(decimal.NewFromInt(2)))
}

func (s *LifecycleSuite) TestEditRFQ() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	title := "Cement and sand"
	deadline := s.now.Add(48 * time.Hour)

	edited, err := s.rfqs.EditRFQ(s.ctx, rfq.ID, models.RFQUpdate{Title: &title, Deadline: &deadline},
		models.RFQDocuments{AuctionDoc: &models.Document{Name: "auction.xlsx", Content: []byte("xl")}})
	s.Require().NoError(err)
	s.Equal(title, edited.Title)
	s.True(deadline.Equal(edited.Deadline))
	s.NotEqual(rfq.AuctionDoc, edited.AuctionDoc)
	s.Equal(rfq.GuidelineDoc, edited.GuidelineDoc)
	s.ElementsMatch([]string{edited.AuctionDoc, edited.GuidelineDoc}, s.files("/rfq/"+rfq.ID))

	past := s.now.Add(-time.Hour)
	_, err = s.rfqs.EditRFQ(s.ctx, rfq.ID, models.RFQUpdate{Deadline: &past}, models.RFQDocuments{})
	s.Equal(models.InvalidInput, s.kind(err))

	_, err = s.rfqs.CloseRFQ(s.ctx, rfq.ID)
	s.Require().NoError(err)
	_, err = s.rfqs.EditRFQ(s.ctx, rfq.ID, models.RFQUpdate{Title: &title}, models.RFQDocuments{})
	s.Equal(models.InvalidState, s.kind(err))
}

func (s *LifecycleSuite) TestFetchDocument() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	content, err := s.rfqs.FetchDocument(s.ctx, rfq.GuidelineDoc)
	s.Require().NoError(err)
	s.Equal([]byte("%PDF"), content)
}

func (s *LifecycleSuite) TestRecordTransaction() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	b1 := s.openBid(rfq.ID, item("cement", 2, 50))
	b2 := s.openBid(rfq.ID, item("cement", 2, 50))

	_, err := s.transactions.RecordTransaction(s.ctx, buyerId, b1.ID, "INV-7")
	s.Equal(models.InvalidState, s.kind(err))

	_, err = s.bids.AwardBid(s.ctx, b1.ID)
	s.Require().NoError(err)

	// присуждение завело TR-001, покупатель заменяет идентификатор своим
	recorded, err := s.transactions.RecordTransaction(s.ctx, buyerId, b1.ID, "INV-7")
	s.Require().NoError(err)
	s.Equal("INV-7", recorded.TransactionID)
	s.Equal(b1.ID, recorded.BidID)
	s.Equal(models.PendingTransaction, recorded.Status)

	again, err := s.transactions.RecordTransaction(s.ctx, buyerId, b1.ID, "INV-7")
	s.Require().NoError(err)
	s.Equal(recorded.ID, again.ID)

	_, err = s.transactions.RecordTransaction(s.ctx, "buyer-2", b1.ID, "INV-7")
	s.Equal(models.NotFound, s.kind(err))

	_, err = s.transactions.RecordTransaction(s.ctx, buyerId, b2.ID, "INV-7")
	s.Equal(models.InvalidState, s.kind(err))

	_, err = s.transactions.RecordTransaction(s.ctx, buyerId, b1.ID, " ")
	s.Equal(models.InvalidInput, s.kind(err))

	s.Require().NoError(s.transactions.OnBidAwarded(s.ctx, b1.ID))
	transactions, err := s.transactions.GetBuyerTransactions(s.ctx, buyerId)
	s.Require().NoError(err)
	s.Require().Len(transactions, 1)
	s.Equal("INV-7", transactions[0].TransactionID)
}

func (s *LifecycleSuite) TestRecordTransactionRejectsUsedId() {
	first := s.openRFQ(s.now.Add(time.Hour))
	second := s.openRFQ(s.now.Add(time.Hour))
	b1 := s.openBid(first.ID, item("cement", 2, 50))
	b2 := s.openBid(second.ID, item("cement", 2, 50))
	_, err := s.bids.AwardBid(s.ctx, b1.ID)
	s.Require().NoError(err)
	_, err = s.bids.AwardBid(s.ctx, b2.ID)
	s.Require().NoError(err)

	_, err = s.transactions.RecordTransaction(s.ctx, buyerId, b2.ID, "TR-001")
	s.Equal(models.Conflict, s.kind(err))

	transaction, err := s.store.Transactions().GetTransactionByBid(s.ctx, b2.ID)
	s.Require().NoError(err)
	s.Equal("TR-002", transaction.TransactionID)
}

func (s *LifecycleSuite) TestParallelAwardsGetDistinctTransactions() {
	first := s.openRFQ(s.now.Add(time.Hour))
	second := s.openRFQ(s.now.Add(time.Hour))
	b1 := s.openBid(first.ID, item("cement", 2, 50))
	b2 := s.openBid(second.ID, item("cement", 2, 50))
	s.transactions.Repo = &sequenceBarrier{TransactionRepository: s.store.Transactions(), release: make(chan struct{})}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for j, id := range []string{b1.ID, b2.ID} {
		wg.Add(1)
		go func(j int, id string) {
			defer wg.Done()
			_, errs[j] = s.bids.AwardBid(s.ctx, id)
		}(j, id)
	}
	wg.Wait()
	s.Require().NoError(errs[0])
	s.Require().NoError(errs[1])

	transactions, err := s.transactions.GetBuyerTransactions(s.ctx, buyerId)
	s.Require().NoError(err)
	s.Require().Len(transactions, 2)
	ids := []string{transactions[0].TransactionID, transactions[1].TransactionID}
	s.ElementsMatch([]string{"TR-001", "TR-002"}, ids)
}

func (s *LifecycleSuite) TestSellerTransactions() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	bid := s.openBid(rfq.ID, item("cement", 2, 50))
	_, err := s.bids.AwardBid(s.ctx, bid.ID)
	s.Require().NoError(err)

	transactions, err := s.transactions.GetSellerTransactions(s.ctx, sellerId)
	s.Require().NoError(err)
	s.Require().Len(transactions, 1)
	s.Equal(bid.ID, transactions[0].BidID)

	transactions, err = s.transactions.GetSellerTransactions(s.ctx, "buyer-2")
	s.Require().NoError(err)
	s.Empty(transactions)

	_, err = s.transactions.GetSellerTransactions(s.ctx, "unknown")
	s.Equal(models.NotFound, s.kind(err))
}

func (s *LifecycleSuite) TestAwardSurvivesListenerFailure() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	bid := s.openBid(rfq.ID, item("cement", 2, 50))
	s.award.Listener = listenerFunc(func(ctx context.Context, bidId string) error {
		s.Equal(models.AwardedBid, s.bidState(bidId))
		return errors.New("payment gateway unavailable")
	})

	_, err := s.bids.AwardBid(s.ctx, bid.ID)
	s.Require().NoError(err)
	s.Equal(models.AwardedBid, s.bidState(bid.ID))
	s.Equal(models.AwardedRFQ, s.rfqState(rfq.ID))
}

func (s *LifecycleSuite) TestBidQueries() {
	rfq := s.openRFQ(s.now.Add(time.Hour))
	b1 := s.openBid(rfq.ID, item("cement", 2, 50))
	b2 := s.openBid(rfq.ID, item("cement", 2, 50))
	b3 := s.openBid(rfq.ID, item("cement", 2, 50))
	_, err := s.bids.RejectBid(s.ctx, b2.ID)
	s.Require().NoError(err)
	_, err = s.bids.DeleteBid(s.ctx, b3.ID)
	s.Require().NoError(err)

	counts, err := s.bids.BidStateCounts(s.ctx, sellerId)
	s.Require().NoError(err)
	s.Equal(models.BidStateCount{
		models.OpenedBid:   1,
		models.RejectedBid: 1,
		models.AwardedBid:  0,
		models.ClosedBid:   0,
	}, counts)

	sellerBids, err := s.bids.GetSellerBids(s.ctx, sellerId)
	s.Require().NoError(err)
	s.Len(sellerBids, 2)

	loaded, err := s.rfqs.GetRFQ(s.ctx, rfq.ID)
	s.Require().NoError(err)
	s.Len(loaded.Bids, 2)

	_, err = s.bids.GetBid(s.ctx, b3.ID)
	s.Equal(models.NotFound, s.kind(err))

	_, err = s.bids.GetRFQBids(s.ctx, "missing")
	s.Equal(models.NotFound, s.kind(err))

	single, err := s.bids.GetBid(s.ctx, b1.ID)
	s.Require().NoError(err)
	s.Require().NotNil(single.RFQ)
	s.Equal(rfq.ID, single.RFQ.ID)
}

func (s *LifecycleSuite) TestRFQListings() {
	soon := s.openRFQ(s.now.Add(time.Hour))
	later := s.openRFQ(s.now.Add(2 * time.Hour))
	closed := s.openRFQ(s.now.Add(3 * time.Hour))
	_, err := s.rfqs.CloseRFQ(s.ctx, closed.ID)
	s.Require().NoError(err)

	open, err := s.rfqs.GetOpenRFQs(s.ctx, "", "")
	s.Require().NoError(err)
	s.Require().Len(open, 2)
	s.Equal(soon.ID, open[0].ID)
	s.Equal(later.ID, open[1].ID)

	mine, err := s.rfqs.GetBuyerRFQs(s.ctx, buyerId, "2", "0")
	s.Require().NoError(err)
	s.Len(mine, 2)

	_, err = s.rfqs.GetBuyerRFQs(s.ctx, buyerId, "100", "")
	s.Equal(models.InvalidInput, s.kind(err))
}

type listenerFunc func(ctx context.Context, bidId string) error

func (f listenerFunc) OnBidAwarded(ctx context.Context, bidId string) error {
	return f(ctx, bidId)
}

// failingBids ломает отдельные операции репозитория предложений.
type failingBids struct {
	repository.BidRepository
	failItems bool
	closeFor  string
}

func (f *failingBids) CreateBidItems(ctx context.Context, bidId string, items []models.BidItem) ([]models.BidItem, error) {
	if f.failItems {
		return nil, errors.New("disk full")
	}
	return f.BidRepository.CreateBidItems(ctx, bidId, items)
}

func (f *failingBids) CloseOpenBids(ctx context.Context, rfqId string) (int64, error) {
	if rfqId == f.closeFor {
		return 0, errors.New("lock timeout")
	}
	return f.BidRepository.CloseOpenBids(ctx, rfqId)
}

// sequenceBarrier задерживает первые два чтения номера операции, пока оба
// вызывающих не прочитают одно и то же значение.
type sequenceBarrier struct {
	repository.TransactionRepository
	mu      sync.Mutex
	readers int
	release chan struct{}
}

func (b *sequenceBarrier) MaxTransactionSequence(ctx context.Context, buyerId string) (int, error) {
	sequence, err := b.TransactionRepository.MaxTransactionSequence(ctx, buyerId)
	b.mu.Lock()
	b.readers++
	reader := b.readers
	if reader == 2 {
		close(b.release)
	}
	b.mu.Unlock()
	if reader <= 2 {
		<-b.release
	}
	return sequence, err
}
