package promo

import "github.com/google/uuid"

// RuleKind tags the closed set of cart-line matching rules.
type RuleKind string

const (
	RuleCategoryInclude RuleKind = "category_include"
	RuleCategoryExclude RuleKind = "category_exclude"
	RuleItemInclude     RuleKind = "item_include"
	RuleItemExclude     RuleKind = "item_exclude"
)

// Rule restricts which cart lines a scoped promotion may discount.
type Rule struct {
	Kind    RuleKind    `json:"kind"`
	Targets []uuid.UUID `json:"targets"`
}

func (r Rule) matches(it CartItem) bool {
	for _, id := range r.Targets {
		switch r.Kind {
		case RuleCategoryInclude, RuleCategoryExclude:
			if it.CategoryID == id {
				return true
			}
		case RuleItemInclude, RuleItemExclude:
			if it.ItemID == id {
				return true
			}
		}
	}
	return false
}

// EligibleItems selects the cart lines a promotion may discount. Exclusion
// rules are applied first; if any inclusion rule exists, a line must match at
// least one of them. Scoped promotions without explicit rules fall back to the
// declared category/item id lists; an unscoped promotion covers every line.
func EligibleItems(p Promotion, items []CartItem) []CartItem {
	out := make([]CartItem, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 || it.UnitPrice < 0 {
			continue
		}
		if lineEligible(p, it) {
			out = append(out, it)
		}
	}
	return out
}

func lineEligible(p Promotion, it CartItem) bool {
	var hasInclude, included bool
	for _, r := range p.Rules {
		switch r.Kind {
		case RuleCategoryExclude, RuleItemExclude:
			if r.matches(it) {
				return false
			}
		case RuleCategoryInclude, RuleItemInclude:
			hasInclude = true
			if r.matches(it) {
				included = true
			}
		}
	}
	if hasInclude {
		return included
	}
	if len(p.Rules) > 0 {
		// only exclusion rules present and none matched
		return true
	}
	switch p.Scope {
	case ScopeCategory:
		return len(p.CategoryIDs) == 0 || containsUUID(p.CategoryIDs, it.CategoryID)
	case ScopeItem:
		return len(p.ItemIDs) == 0 || containsUUID(p.ItemIDs, it.ItemID)
	default:
		return true
	}
}

func containsUUID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
