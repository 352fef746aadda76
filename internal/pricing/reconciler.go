// Package pricing сверяет итоговые суммы предложения с его позициями.
package pricing

import (
	"fmt"
	"strings"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/shopspring/decimal"
)

// ItemTotal вычисляет ожидаемую сумму позиции: quantity*singlePrice + transportFee + taxes.
func ItemTotal(item models.BidItemRequest) decimal.Decimal {
	return item.Quantity.Mul(item.SinglePrice).Add(item.TransportFee).Add(item.Taxes)
}

// ValidateBidItem проверяет поля позиции и точное совпадение ее суммы.
func ValidateBidItem(item models.BidItemRequest) error {
	switch {
	case strings.TrimSpace(item.Item) == "":
		return models.NewErrorResponse(models.InvalidInput, "item is required")
	case strings.TrimSpace(item.Unit) == "":
		return models.NewErrorResponse(models.InvalidInput, "unit is required")
	case !item.Quantity.IsPositive():
		return models.NewErrorResponse(models.InvalidInput, "quantity must be a positive number")
	case !item.SinglePrice.IsPositive():
		return models.NewErrorResponse(models.InvalidInput, "single price must be a positive number")
	case item.TransportFee.IsNegative():
		return models.NewErrorResponse(models.InvalidInput, "transport fee must not be negative")
	case item.Taxes.IsNegative():
		return models.NewErrorResponse(models.InvalidInput, "taxes must not be negative")
	}

	expected := ItemTotal(item)
	if !item.TotalPrice.Equal(expected) {
		return models.NewErrorResponse(models.InvalidInput,
			fmt.Sprintf("total price (%s) of item %q does not match calculated total (%s)", item.TotalPrice, item.Item, expected))
	}
	return nil
}

// ValidateBid проверяет каждую позицию и совпадение суммы предложения с суммой позиций.
func ValidateBid(totalPrice decimal.Decimal, items []models.BidItemRequest) error {
	if len(items) == 0 {
		return models.NewErrorResponse(models.InvalidInput, "bid must contain at least one item")
	}

	sum := decimal.Zero
	for _, item := range items {
		if err := ValidateBidItem(item); err != nil {
			return err
		}
		sum = sum.Add(item.TotalPrice)
	}

	if !totalPrice.Equal(sum) {
		return models.NewErrorResponse(models.InvalidInput,
			fmt.Sprintf("total price (%s) does not match sum of bid items (%s)", totalPrice, sum))
	}
	return nil
}

// SumItems возвращает сумму уже сохраненных позиций.
func SumItems(items []models.BidItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.TotalPrice)
	}
	return sum
}
