package promo

import (
	"testing"

	"github.com/google/uuid"
)

func TestEligibleItemsExclusionWins(t *testing.T) {
	catID := uuid.New()
	p := Promotion{
		Scope: ScopeCategory,
		Rules: []Rule{
			{Kind: RuleCategoryInclude, Targets: []uuid.UUID{catID}},
			{Kind: RuleCategoryExclude, Targets: []uuid.UUID{catID}},
		},
	}
	items := []CartItem{{ItemID: uuid.New(), CategoryID: catID, UnitPrice: 1_000, Quantity: 1}}
	if out := EligibleItems(p, items); len(out) != 0 {
		t.Fatalf("exclusion must win over inclusion, got %+v", out)
	}
}

func TestEligibleItemsIncludeMustMatch(t *testing.T) {
	wanted := uuid.New()
	p := Promotion{Rules: []Rule{{Kind: RuleItemInclude, Targets: []uuid.UUID{wanted}}}}
	items := []CartItem{
		{ItemID: wanted, UnitPrice: 1_000, Quantity: 1},
		{ItemID: uuid.New(), UnitPrice: 2_000, Quantity: 1},
	}
	out := EligibleItems(p, items)
	if len(out) != 1 || out[0].ItemID != wanted {
		t.Fatalf("expected only the included item, got %+v", out)
	}
}

func TestEligibleItemsExcludeOnly(t *testing.T) {
	banned := uuid.New()
	p := Promotion{Rules: []Rule{{Kind: RuleItemExclude, Targets: []uuid.UUID{banned}}}}
	items := []CartItem{
		{ItemID: banned, UnitPrice: 1_000, Quantity: 1},
		{ItemID: uuid.New(), UnitPrice: 2_000, Quantity: 1},
	}
	out := EligibleItems(p, items)
	if len(out) != 1 || out[0].ItemID == banned {
		t.Fatalf("expected the non-excluded item, got %+v", out)
	}
}

func TestEligibleItemsScopeFallback(t *testing.T) {
	catID := uuid.New()
	p := Promotion{Scope: ScopeCategory, CategoryIDs: []uuid.UUID{catID}}
	items := []CartItem{
		{ItemID: uuid.New(), CategoryID: catID, UnitPrice: 1_000, Quantity: 1},
		{ItemID: uuid.New(), CategoryID: uuid.New(), UnitPrice: 2_000, Quantity: 1},
	}
	out := EligibleItems(p, items)
	if len(out) != 1 || out[0].CategoryID != catID {
		t.Fatalf("expected only the scoped category line, got %+v", out)
	}
}

func TestEligibleItemsUnscopedCoversAll(t *testing.T) {
	p := Promotion{Scope: ScopeOrderTotal}
	items := []CartItem{
		{ItemID: uuid.New(), UnitPrice: 1_000, Quantity: 1},
		{ItemID: uuid.New(), UnitPrice: 2_000, Quantity: 2},
	}
	if out := EligibleItems(p, items); len(out) != 2 {
		t.Fatalf("expected every line eligible, got %d", len(out))
	}
}

func TestEligibleItemsSkipsMalformedLines(t *testing.T) {
	p := Promotion{}
	items := []CartItem{
		{ItemID: uuid.New(), UnitPrice: 1_000, Quantity: 0},
		{ItemID: uuid.New(), UnitPrice: -5, Quantity: 1},
	}
	if out := EligibleItems(p, items); len(out) != 0 {
		t.Fatalf("expected malformed lines skipped, got %+v", out)
	}
}
