package promo

import "sort"

// SortAndResolve orders eligible promotions by declared stack priority and
// resolves which of them may be combined in a single calculation.
//
// The ranking is a static heuristic: ties on priority are broken by the larger
// declared magnitude (percentage or fixed amount as written on the promotion),
// not by the discount each would actually produce against the cart. A greedy
// best-computed-discount-first order could yield a different accepted set; the
// declared ranking is kept for predictable, auditable behaviour.
//
// Stacking is an all-or-nothing gate: the first promotion is always accepted,
// and each further candidate joins only if it and every already-accepted
// promotion declare themselves stackable. One non-stackable acceptance blocks
// everything after it.
func SortAndResolve(promotions []Promotion) []Promotion {
	if len(promotions) == 0 {
		return nil
	}
	sorted := make([]Promotion, len(promotions))
	copy(sorted, promotions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StackPriority != sorted[j].StackPriority {
			return sorted[i].StackPriority > sorted[j].StackPriority
		}
		return declaredMagnitude(sorted[i]) > declaredMagnitude(sorted[j])
	})

	accepted := sorted[:1]
	stackOpen := sorted[0].Stackable
	for _, candidate := range sorted[1:] {
		if !stackOpen || !candidate.Stackable {
			continue
		}
		accepted = append(accepted, candidate)
	}
	return accepted
}

// declaredMagnitude ranks by the promotion's own declared fields. Percentages
// and fixed amounts are not commensurable; comparing the raw numbers mirrors
// how operators order competing promotions in practice.
func declaredMagnitude(p Promotion) float64 {
	switch p.Type {
	case TypeFixedAmount, TypeFreeDelivery:
		return float64(p.Amount)
	default:
		return p.Percentage
	}
}
