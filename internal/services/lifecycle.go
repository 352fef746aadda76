package services

import (
	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/utils"
)

// Допустимые переходы статусов. CLOSED и AWARDED конечные.
var rfqTransitions = map[models.RFQState][]models.RFQState{
	models.OpenedRFQ: {models.ClosedRFQ, models.AwardedRFQ},
}

// У предложения конечные все статусы, кроме OPENED.
var bidTransitions = map[models.BidState][]models.BidState{
	models.OpenedBid: {models.AwardedBid, models.RejectedBid, models.ClosedBid},
}

func canMoveRFQ(from, to models.RFQState) bool {
	return utils.Contains(rfqTransitions[from], to)
}

func canMoveBid(from, to models.BidState) bool {
	return utils.Contains(bidTransitions[from], to)
}

// rfqSources возвращает статусы, из которых разрешен переход в to.
func rfqSources(to models.RFQState) []models.RFQState {
	var from []models.RFQState
	for state, targets := range rfqTransitions {
		if utils.Contains(targets, to) {
			from = append(from, state)
		}
	}
	return from
}

func bidSources(to models.BidState) []models.BidState {
	var from []models.BidState
	for state, targets := range bidTransitions {
		if utils.Contains(targets, to) {
			from = append(from, state)
		}
	}
	return from
}
