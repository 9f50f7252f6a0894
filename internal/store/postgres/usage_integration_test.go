package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-resto/internal/promo"
)

func newIntegrationStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	databaseURL := os.Getenv("RESTO_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set RESTO_TEST_DATABASE_URL to run postgres integration test")
	}
	if err := Migrate(databaseURL); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return New(pool), ctx
}

func TestRecordReservesUsageSlot(t *testing.T) {
	s, ctx := newIntegrationStore(t)
	tenantID := uuid.New()

	limit := 1
	p := promo.Promotion{
		TenantID:   tenantID,
		Name:       "Last Slot",
		Type:       promo.TypeFixedAmount,
		Status:     promo.StatusActive,
		Scope:      promo.ScopeOrderTotal,
		Amount:     1_000,
		UsageLimit: &limit,
	}
	promoID, err := s.CreatePromotion(ctx, p)
	if err != nil {
		t.Fatalf("create promotion: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM promotion_usage WHERE promotion_id = $1`, promoID)
		_, _ = s.pool.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, promoID)
	})

	first := promo.Usage{TenantID: tenantID, PromotionID: promoID, OrderID: uuid.New(), Discount: 1_000}
	if err := s.Record(ctx, first); err != nil {
		t.Fatalf("first record: %v", err)
	}

	second := promo.Usage{TenantID: tenantID, PromotionID: promoID, OrderID: uuid.New(), Discount: 1_000}
	if err := s.Record(ctx, second); !errors.Is(err, promo.ErrCodeExhausted) {
		t.Fatalf("expected exhausted on second record, got %v", err)
	}

	// Redelivery of the first order must be a no-op, not a double count.
	if err := s.Record(ctx, first); err != nil {
		t.Fatalf("duplicate record: %v", err)
	}
	got, err := s.GetPromotion(ctx, tenantID, promoID)
	if err != nil {
		t.Fatalf("get promotion: %v", err)
	}
	if got.UsedCount != 1 {
		t.Fatalf("expected used_count 1, got %d", got.UsedCount)
	}
	// Consuming the last slot retires the promotion immediately instead of
	// waiting for the expiry sweep.
	if got.Status != promo.StatusExhausted {
		t.Fatalf("expected exhausted status, got %s", got.Status)
	}
}

func TestGetCodeWithPromotionRoundTrip(t *testing.T) {
	s, ctx := newIntegrationStore(t)
	tenantID := uuid.New()

	p := promo.Promotion{
		TenantID:     tenantID,
		Name:         "Code Gated",
		Type:         promo.TypePercentage,
		Status:       promo.StatusActive,
		Scope:        promo.ScopeOrderTotal,
		Percentage:   10,
		RequiresCode: true,
	}
	promoID, err := s.CreatePromotion(ctx, p)
	if err != nil {
		t.Fatalf("create promotion: %v", err)
	}
	codeID, err := s.CreateCode(ctx, promo.Code{
		PromotionID: promoID,
		TenantID:    tenantID,
		Code:        "resto10",
		Active:      true,
	})
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM promotion_codes WHERE id = $1`, codeID)
		_, _ = s.pool.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, promoID)
	})

	// Lookup is case-insensitive; codes are stored uppercased.
	c, parent, err := s.GetCodeWithPromotion(ctx, tenantID, "ReStO10")
	if err != nil {
		t.Fatalf("get code: %v", err)
	}
	if c.Code != "RESTO10" || parent.ID != promoID {
		t.Fatalf("unexpected lookup result: %+v / %+v", c, parent)
	}

	if _, _, err := s.GetCodeWithPromotion(ctx, uuid.New(), "RESTO10"); !errors.Is(err, promo.ErrNotFound) {
		t.Fatalf("expected tenant isolation, got %v", err)
	}

	// Code-gated promotions never appear in the automatic candidate list.
	actives, err := s.ListActivePromotions(ctx, tenantID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	for _, a := range actives {
		if a.ID == promoID {
			t.Fatal("code-gated promotion leaked into auto candidates")
		}
	}
}

func TestListActivePromotionsIncludesAutoApply(t *testing.T) {
	s, ctx := newIntegrationStore(t)
	tenantID := uuid.New()

	// Auto-apply wins even when the promotion also carries codes.
	autoID, err := s.CreatePromotion(ctx, promo.Promotion{
		TenantID:     tenantID,
		Name:         "Member Price",
		Type:         promo.TypePercentage,
		Status:       promo.StatusActive,
		Scope:        promo.ScopeOrderTotal,
		Percentage:   5,
		AutoApply:    true,
		RequiresCode: true,
	})
	if err != nil {
		t.Fatalf("create auto promotion: %v", err)
	}
	gatedID, err := s.CreatePromotion(ctx, promo.Promotion{
		TenantID:     tenantID,
		Name:         "Code Only",
		Type:         promo.TypePercentage,
		Status:       promo.StatusActive,
		Scope:        promo.ScopeOrderTotal,
		Percentage:   10,
		RequiresCode: true,
	})
	if err != nil {
		t.Fatalf("create gated promotion: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM promotions WHERE id IN ($1, $2)`, autoID, gatedID)
	})

	actives, err := s.ListActivePromotions(ctx, tenantID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	var sawAuto, sawGated bool
	for _, a := range actives {
		if a.ID == autoID {
			sawAuto = true
		}
		if a.ID == gatedID {
			sawGated = true
		}
	}
	if !sawAuto {
		t.Fatal("auto-apply promotion missing from candidates")
	}
	if sawGated {
		t.Fatal("code-gated promotion leaked into auto candidates")
	}
}

func TestRecordEnforcesPerCustomerLimit(t *testing.T) {
	s, ctx := newIntegrationStore(t)
	tenantID := uuid.New()
	customerID := uuid.New()

	perCustomer := 1
	promoID, err := s.CreatePromotion(ctx, promo.Promotion{
		TenantID:    tenantID,
		Name:        "One Each",
		Type:        promo.TypeFixedAmount,
		Status:      promo.StatusActive,
		Scope:       promo.ScopeOrderTotal,
		Amount:      500,
		PerCustomer: &perCustomer,
	})
	if err != nil {
		t.Fatalf("create promotion: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM promotion_usage WHERE promotion_id = $1`, promoID)
		_, _ = s.pool.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, promoID)
	})

	first := promo.Usage{TenantID: tenantID, PromotionID: promoID, OrderID: uuid.New(), CustomerID: &customerID, Discount: 500}
	if err := s.Record(ctx, first); err != nil {
		t.Fatalf("first record: %v", err)
	}
	second := promo.Usage{TenantID: tenantID, PromotionID: promoID, OrderID: uuid.New(), CustomerID: &customerID, Discount: 500}
	if err := s.Record(ctx, second); !errors.Is(err, promo.ErrCodeExhausted) {
		t.Fatalf("expected per-customer cap on second record, got %v", err)
	}

	// A different customer still has their own slot.
	otherID := uuid.New()
	other := promo.Usage{TenantID: tenantID, PromotionID: promoID, OrderID: uuid.New(), CustomerID: &otherID, Discount: 500}
	if err := s.Record(ctx, other); err != nil {
		t.Fatalf("other customer record: %v", err)
	}

	// Anonymous orders carry no identity to count against.
	anon := promo.Usage{TenantID: tenantID, PromotionID: promoID, OrderID: uuid.New(), Discount: 500}
	if err := s.Record(ctx, anon); err != nil {
		t.Fatalf("anonymous record: %v", err)
	}
}

func TestRecordEnforcesOncePerDayFrequency(t *testing.T) {
	s, ctx := newIntegrationStore(t)
	tenantID := uuid.New()
	customerID := uuid.New()

	promoID, err := s.CreatePromotion(ctx, promo.Promotion{
		TenantID:  tenantID,
		Name:      "Daily Coffee",
		Type:      promo.TypeFixedAmount,
		Status:    promo.StatusActive,
		Scope:     promo.ScopeOrderTotal,
		Amount:    300,
		Frequency: promo.FrequencyOncePerDay,
	})
	if err != nil {
		t.Fatalf("create promotion: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM promotion_usage WHERE promotion_id = $1`, promoID)
		_, _ = s.pool.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, promoID)
	})

	first := promo.Usage{TenantID: tenantID, PromotionID: promoID, OrderID: uuid.New(), CustomerID: &customerID, Discount: 300}
	if err := s.Record(ctx, first); err != nil {
		t.Fatalf("first record: %v", err)
	}
	sameDay := promo.Usage{TenantID: tenantID, PromotionID: promoID, OrderID: uuid.New(), CustomerID: &customerID, Discount: 300}
	if err := s.Record(ctx, sameDay); !errors.Is(err, promo.ErrCodeExhausted) {
		t.Fatalf("expected once-per-day cap, got %v", err)
	}

	// Yesterday's redemption does not block today's.
	if _, err := s.pool.Exec(ctx, `
		UPDATE promotion_usage SET created_at = created_at - interval '1 day'
		WHERE promotion_id = $1
	`, promoID); err != nil {
		t.Fatalf("age usage row: %v", err)
	}
	if err := s.Record(ctx, sameDay); err != nil {
		t.Fatalf("next-day record: %v", err)
	}
}
