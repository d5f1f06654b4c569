package domain

import "math"

// Totals are the derived amounts of an invoice. No intermediate rounding is
// applied; rounding happens only when an amount is formatted for display.
type Totals struct {
	Subtotal              float64 `json:"subtotal"`
	DiscountAmount        float64 `json:"discountAmount"`
	SubtotalAfterDiscount float64 `json:"subtotalAfterDiscount"`
	TaxAmount             float64 `json:"taxAmount"`
	Total                 float64 `json:"total"`
}

func ComputeTotals(inv Invoice) Totals {
	var t Totals
	for _, item := range inv.Items {
		t.Subtotal += item.Amount()
	}

	value := inv.Discount.Value.Float()
	if inv.Discount.Type == DiscountPercentage {
		t.DiscountAmount = t.Subtotal * value / 100
	} else {
		t.DiscountAmount = value
	}

	t.SubtotalAfterDiscount = math.Max(0, t.Subtotal-t.DiscountAmount)
	t.TaxAmount = t.SubtotalAfterDiscount * inv.TaxRate.Float() / 100
	t.Total = t.SubtotalAfterDiscount + t.TaxAmount
	return t
}
