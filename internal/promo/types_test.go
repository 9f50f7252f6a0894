package promo

import (
	"testing"

	"github.com/google/uuid"
)

func validPromotion(kind PromotionType) Promotion {
	p := Promotion{TenantID: uuid.New(), Name: "Test", Type: kind, Status: StatusActive}
	switch kind {
	case TypePercentage, TypeHappyHour, TypeFirstTimeCustomer:
		p.Percentage = 10
	case TypeFixedAmount:
		p.Amount = 1_000
	case TypeBuyXGetY:
		p.BuyQuantity = 2
		p.GetQuantity = 1
	case TypeFreeDelivery:
		p.Scope = ScopeDeliveryFee
	case TypeCategoryDiscount:
		p.Percentage = 15
	}
	return p
}

func TestValidateAllTypes(t *testing.T) {
	kinds := []PromotionType{
		TypePercentage, TypeFixedAmount, TypeBuyXGetY, TypeFreeDelivery,
		TypeHappyHour, TypeFirstTimeCustomer, TypeCategoryDiscount,
	}
	for _, kind := range kinds {
		if err := validPromotion(kind).Validate(); err != nil {
			t.Fatalf("%s: expected valid, got %v", kind, err)
		}
	}
}

func TestValidateRejectsBadPercentage(t *testing.T) {
	p := validPromotion(TypePercentage)
	p.Percentage = 120
	if err := p.Validate(); err == nil {
		t.Fatal("expected rejection for percentage over 100")
	}
	p.Percentage = 0
	if err := p.Validate(); err == nil {
		t.Fatal("expected rejection for zero percentage")
	}
}

func TestValidateRejectsUnknownType(t *testing.T) {
	p := validPromotion(TypePercentage)
	p.Type = "mystery"
	if err := p.Validate(); err == nil {
		t.Fatal("expected rejection for unknown type")
	}
}

func TestValidateFreeDeliveryScope(t *testing.T) {
	p := validPromotion(TypeFreeDelivery)
	p.Scope = ScopeOrderTotal
	if err := p.Validate(); err == nil {
		t.Fatal("expected rejection when free delivery is not delivery scoped")
	}
}

func TestValidateBuyXGetY(t *testing.T) {
	p := validPromotion(TypeBuyXGetY)
	p.GetQuantity = 0
	if err := p.Validate(); err == nil {
		t.Fatal("expected rejection for zero get quantity")
	}
}

func TestValidateHourFormat(t *testing.T) {
	p := validPromotion(TypeHappyHour)
	p.HourStart = "25:00"
	if err := p.Validate(); err == nil {
		t.Fatal("expected rejection for invalid hour")
	}
}

func TestCartItemLineTotal(t *testing.T) {
	if (CartItem{UnitPrice: 1_500, Quantity: 3}).LineTotal() != 4_500 {
		t.Fatal("line total mismatch")
	}
	if (CartItem{UnitPrice: -10, Quantity: 3}).LineTotal() != 0 {
		t.Fatal("negative unit price must yield zero")
	}
}

func TestCartClamped(t *testing.T) {
	cart := Cart{Subtotal: -1, DeliveryFee: -2, TaxAmount: -3}.Clamped()
	if cart.Subtotal != 0 || cart.DeliveryFee != 0 || cart.TaxAmount != 0 {
		t.Fatalf("expected clamped zeros, got %+v", cart)
	}
}
