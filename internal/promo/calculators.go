package promo

import (
	"math"
	"sort"
	"time"
)

// CalcResult is the output of a single discount calculator.
type CalcResult struct {
	Discount     Money
	AppliedItems []AppliedItem
}

// calculator computes one promotion's discount against the amounts still
// chargeable after earlier accepted promotions. Calculators are pure.
type calculator func(p Promotion, items []CartItem, remainingSubtotal, remainingDelivery Money, now time.Time) CalcResult

var calculators = map[PromotionType]calculator{
	TypePercentage:        calcPercentage,
	TypeFixedAmount:       calcFixedAmount,
	TypeBuyXGetY:          calcBuyXGetY,
	TypeFreeDelivery:      calcFreeDelivery,
	TypeHappyHour:         calcHappyHour,
	TypeFirstTimeCustomer: calcPercentage,
	TypeCategoryDiscount:  calcCategoryDiscount,
}

// calculatorFor returns the calculator for the promotion type, or nil for an
// unknown type. Callers treat nil as zero discount plus a logged warning.
func calculatorFor(t PromotionType) calculator {
	return calculators[t]
}

// applicableBase returns the portion of the remaining subtotal the promotion
// may discount: the full remainder for order-wide scopes, or the matching
// lines' share for category/item scopes.
func applicableBase(p Promotion, items []CartItem, remaining Money) Money {
	if p.Scope != ScopeCategory && p.Scope != ScopeItem {
		return remaining
	}
	var scoped Money
	for _, it := range EligibleItems(p, items) {
		scoped += it.LineTotal()
	}
	if scoped > remaining {
		scoped = remaining
	}
	return scoped
}

// capDiscount clamps a discount to its base and the promotion's declared cap.
func capDiscount(p Promotion, discount, base Money) Money {
	if discount > base {
		discount = base
	}
	if p.MaxDiscount != nil && discount > *p.MaxDiscount {
		discount = *p.MaxDiscount
	}
	if discount < 0 {
		return 0
	}
	return discount
}

func calcPercentage(p Promotion, items []CartItem, remaining, _ Money, _ time.Time) CalcResult {
	base := applicableBase(p, items, remaining)
	if base <= 0 {
		return CalcResult{}
	}
	discount := Money(math.Floor(float64(base) * p.Percentage / 100))
	return CalcResult{Discount: capDiscount(p, discount, base)}
}

func calcFixedAmount(p Promotion, items []CartItem, remaining, _ Money, _ time.Time) CalcResult {
	base := applicableBase(p, items, remaining)
	if base <= 0 {
		return CalcResult{}
	}
	return CalcResult{Discount: capDiscount(p, p.Amount, base)}
}

// calcBuyXGetY grants floor(totalQty/buy)*get discounted units, cheapest units
// first, at GetDiscountPct of each unit price (100% when unset).
func calcBuyXGetY(p Promotion, items []CartItem, remaining, _ Money, _ time.Time) CalcResult {
	eligible := EligibleItems(p, items)
	if len(eligible) == 0 || p.BuyQuantity <= 0 || p.GetQuantity <= 0 {
		return CalcResult{}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].UnitPrice < eligible[j].UnitPrice
	})
	var totalQty int
	for _, it := range eligible {
		totalQty += it.Quantity
	}
	freeUnits := (totalQty / p.BuyQuantity) * p.GetQuantity
	if freeUnits <= 0 {
		return CalcResult{}
	}
	pct := p.GetDiscountPct
	if pct <= 0 {
		pct = 100
	}

	var discount Money
	var applied []AppliedItem
	for _, it := range eligible {
		if freeUnits <= 0 {
			break
		}
		units := it.Quantity
		if units > freeUnits {
			units = freeUnits
		}
		lineDiscount := Money(math.Floor(float64(it.UnitPrice) * float64(units) * pct / 100))
		if lineDiscount <= 0 {
			freeUnits -= units
			continue
		}
		discount += lineDiscount
		applied = append(applied, AppliedItem{
			ItemID:   it.ItemID,
			Name:     it.Name,
			Quantity: units,
			Discount: lineDiscount,
		})
		freeUnits -= units
	}
	capped := capDiscount(p, discount, remaining)
	if capped < discount {
		applied = rescaleApplied(applied, capped, discount)
	}
	return CalcResult{Discount: capped, AppliedItems: applied}
}

// rescaleApplied proportionally shrinks the line breakdown when the total was
// capped, keeping the per-line sum equal to the capped discount.
func rescaleApplied(applied []AppliedItem, capped, original Money) []AppliedItem {
	if original <= 0 || len(applied) == 0 {
		return applied
	}
	var distributed Money
	for i := range applied {
		if i == len(applied)-1 {
			applied[i].Discount = capped - distributed
			break
		}
		share := Money(math.Floor(float64(applied[i].Discount) * float64(capped) / float64(original)))
		applied[i].Discount = share
		distributed += share
	}
	return applied
}

func calcFreeDelivery(p Promotion, _ []CartItem, _, remainingDelivery Money, _ time.Time) CalcResult {
	if p.Scope != ScopeDeliveryFee || remainingDelivery <= 0 {
		return CalcResult{}
	}
	discount := remainingDelivery
	if p.Amount > 0 && p.Amount < discount {
		discount = p.Amount
	}
	return CalcResult{Discount: capDiscount(p, discount, remainingDelivery)}
}

// calcHappyHour behaves as a percentage discount but re-checks the time window
// at calculation time, not only during the eligibility pass.
func calcHappyHour(p Promotion, items []CartItem, remaining, delivery Money, now time.Time) CalcResult {
	if !withinWindow(p, now) {
		return CalcResult{}
	}
	return calcPercentage(p, items, remaining, delivery, now)
}

func calcCategoryDiscount(p Promotion, items []CartItem, remaining, _ Money, _ time.Time) CalcResult {
	eligible := EligibleItems(p, items)
	var base Money
	var applied []AppliedItem
	for _, it := range eligible {
		base += it.LineTotal()
	}
	if base > remaining {
		base = remaining
	}
	if base <= 0 {
		return CalcResult{}
	}
	var discount Money
	if p.Percentage > 0 {
		discount = Money(math.Floor(float64(base) * p.Percentage / 100))
	} else {
		discount = p.Amount
	}
	discount = capDiscount(p, discount, base)
	if discount > 0 && len(eligible) > 0 {
		applied = distributeByLine(eligible, discount, base)
	}
	return CalcResult{Discount: discount, AppliedItems: applied}
}

// distributeByLine splits a discount across lines proportionally to line totals.
func distributeByLine(items []CartItem, discount, base Money) []AppliedItem {
	if base <= 0 {
		return nil
	}
	out := make([]AppliedItem, 0, len(items))
	var distributed Money
	for i, it := range items {
		var share Money
		if i == len(items)-1 {
			share = discount - distributed
		} else {
			share = Money(math.Floor(float64(it.LineTotal()) * float64(discount) / float64(base)))
			distributed += share
		}
		if share <= 0 {
			continue
		}
		out = append(out, AppliedItem{
			ItemID:   it.ItemID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Discount: share,
		})
	}
	return out
}
