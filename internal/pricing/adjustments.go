package pricing

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"checkout-engine/internal/core/domain"
)

// TaxRate returns the percentage of the first tax adjustment, or zero.
func TaxRate(adjustments []domain.Adjustment) decimal.Decimal {
	for _, adj := range adjustments {
		if adj.Type == domain.AdjustmentTax {
			return adj.Percentage
		}
	}
	return decimal.Zero
}

// ItemLines converts order items to cart rows, preserving order.
func ItemLines(items []domain.OrderItem) []domain.LineItem {
	lines := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.LineItem{
			Reference: item.Title,
			Name:      item.Title,
			Quantity:  item.Quantity,
			UnitPrice: ToMinorUnits(item.UnitPrice.Number),
			TaxRate:   ToBasisRate(TaxRate(item.Adjustments)),
		})
	}
	return lines
}

// AggregationKey identifies the line item an adjustment contributes to.
// Adjustments without a source id get a positional key so they never merge.
func AggregationKey(adj domain.Adjustment, position int) string {
	if adj.SourceID == "" {
		return "#" + strconv.Itoa(position)
	}
	return string(adj.Type) + "_" + adj.SourceID
}

// AggregateAdjustments turns non-tax order adjustments into synthetic cart
// rows. Repeated keys accumulate unit_price on the first row. The result is
// stable-sorted by weight.
func AggregateAdjustments(adjustments []domain.Adjustment) []domain.LineItem {
	var lines []domain.LineItem
	index := make(map[string]int)

	for _, adj := range adjustments {
		if adj.Type == domain.AdjustmentTax {
			continue
		}
		key := AggregationKey(adj, len(lines))
		amount := ToMinorUnits(adj.Amount)

		if i, ok := index[key]; ok {
			lines[i].UnitPrice += amount
			continue
		}

		line := domain.LineItem{
			Reference: adj.Label,
			Name:      adj.Label,
			Quantity:  1,
			UnitPrice: amount,
			TaxRate:   0,
			Type:      lineItemType(adj.Type),
		}
		if adj.Weight != nil {
			line.Weight = *adj.Weight
		}
		index[key] = len(lines)
		lines = append(lines, line)
	}

	slices.SortStableFunc(lines, func(a, b domain.LineItem) int {
		return cmp.Compare(a.Weight, b.Weight)
	})
	return lines
}

// CartLines is the provider cart: plain items followed by sorted adjustment rows.
func CartLines(order *domain.Order) []domain.LineItem {
	return append(ItemLines(order.Items), AggregateAdjustments(order.Adjustments)...)
}

func lineItemType(t domain.AdjustmentType) string {
	switch t {
	case domain.AdjustmentPromotion:
		return domain.LineItemDiscount
	case domain.AdjustmentShipping:
		return domain.LineItemShippingFee
	default:
		return ""
	}
}
