package promo

// Aggregate folds accepted discounts into the final order pricing. Discounts
// are processed in resolver order; each contributes to either the goods total
// or the delivery total depending on its scope, and each contribution is
// clamped so the remaining base for its category never goes below zero.
func Aggregate(subtotal, deliveryFee, taxAmount Money, accepted []DiscountApplication) OrderPricing {
	if subtotal < 0 {
		subtotal = 0
	}
	if deliveryFee < 0 {
		deliveryFee = 0
	}
	if taxAmount < 0 {
		taxAmount = 0
	}

	var goodsDiscount, deliveryDiscount Money
	for _, d := range accepted {
		amount := d.Discount
		if amount <= 0 {
			continue
		}
		if d.Scope.AppliesToDelivery() {
			if remaining := deliveryFee - deliveryDiscount; amount > remaining {
				amount = remaining
			}
			if amount > 0 {
				deliveryDiscount += amount
			}
			continue
		}
		if remaining := subtotal - goodsDiscount; amount > remaining {
			amount = remaining
		}
		if amount > 0 {
			goodsDiscount += amount
		}
	}

	total := subtotal - goodsDiscount + deliveryFee - deliveryDiscount + taxAmount
	if total < 0 {
		total = 0
	}
	return OrderPricing{
		Subtotal:         subtotal,
		DiscountAmount:   goodsDiscount,
		DeliveryFee:      deliveryFee,
		DeliveryDiscount: deliveryDiscount,
		TaxAmount:        taxAmount,
		TotalAmount:      total,
	}
}
