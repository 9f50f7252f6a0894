package promo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Money is a monetary amount in minor units (cents).
type Money = int64

// PromotionType enumerates the closed set of supported promotion kinds.
type PromotionType string

const (
	TypePercentage        PromotionType = "percentage"
	TypeFixedAmount       PromotionType = "fixed_amount"
	TypeBuyXGetY          PromotionType = "buy_x_get_y"
	TypeFreeDelivery      PromotionType = "free_delivery"
	TypeHappyHour         PromotionType = "happy_hour"
	TypeFirstTimeCustomer PromotionType = "first_time_customer"
	TypeCategoryDiscount  PromotionType = "category_discount"
)

// DiscountScope declares which part of the order a promotion discounts.
type DiscountScope string

const (
	ScopeOrderTotal   DiscountScope = "order_total"
	ScopeSubtotal     DiscountScope = "subtotal"
	ScopeDeliveryFee  DiscountScope = "delivery_fee"
	ScopeCategory     DiscountScope = "category"
	ScopeItem         DiscountScope = "item"
	ScopeFirstItem    DiscountScope = "first_item"
	ScopeCheapestItem DiscountScope = "cheapest_item"
)

// AppliesToDelivery reports whether discounts in this scope reduce the delivery fee.
func (s DiscountScope) AppliesToDelivery() bool { return s == ScopeDeliveryFee }

// Status tracks the promotion lifecycle. Only active promotions are eligible.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusExpired   Status = "expired"
	StatusExhausted Status = "exhausted"
	StatusCancelled Status = "cancelled"
)

// CustomerSegment is the audience a promotion targets.
type CustomerSegment string

const (
	SegmentAll       CustomerSegment = "all_customers"
	SegmentNew       CustomerSegment = "new"
	SegmentReturning CustomerSegment = "returning"
	SegmentVIP       CustomerSegment = "vip"
	SegmentInactive  CustomerSegment = "inactive"
)

// UsageFrequency limits how often a single customer may redeem a promotion.
type UsageFrequency string

const (
	FrequencyUnlimited  UsageFrequency = "unlimited"
	FrequencyOncePerDay UsageFrequency = "once_per_day"
	FrequencyOnce       UsageFrequency = "once"
)

const (
	// vipLifetimeSpend is the lifetime spend above which a customer counts as VIP.
	vipLifetimeSpend Money = 100_000
	// inactiveAfterDays is the gap after which a customer counts as inactive.
	inactiveAfterDays = 30
)

var (
	// ErrNotEligible is returned when a promotion cannot be applied to the provided context.
	ErrNotEligible = errors.New("promotion not eligible")
	// ErrCodeInvalid covers unknown, inactive, or malformed promotion codes.
	ErrCodeInvalid = errors.New("promotion code invalid")
	// ErrCodeExpired is returned when a code is outside its validity window.
	ErrCodeExpired = errors.New("promotion code expired")
	// ErrCodeExhausted indicates the code usage quota has been consumed.
	ErrCodeExhausted = errors.New("promotion code usage limit reached")
	// ErrMinimumOrderUnmet indicates the order total did not meet the promotion requirement.
	ErrMinimumOrderUnmet = errors.New("minimum order amount not met")
	// ErrLookupFailed wraps infrastructure failures during promotion or code lookup.
	ErrLookupFailed = errors.New("promotion lookup failed")
)

// Promotion is a tenant-owned discount rule.
type Promotion struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	Type     PromotionType
	Status   Status
	Scope    DiscountScope

	// Magnitude. Percentage applies to percentage-style types, Amount to
	// fixed-style types. MaxDiscount caps any computed discount when set.
	Percentage  float64
	Amount      Money
	MaxDiscount *Money

	// buy_x_get_y quantities. GetDiscountPct defaults to 100 (free units).
	BuyQuantity    int
	GetQuantity    int
	GetDiscountPct float64

	MinOrderAmount Money
	MinItems       int

	UsageLimit  *int
	PerCustomer *int
	Frequency   UsageFrequency
	UsedCount   int

	ValidFrom  *time.Time
	ValidUntil *time.Time
	Weekdays   []time.Weekday
	HourStart  string
	HourEnd    string

	Segment       CustomerSegment
	Stackable     bool
	StackPriority int
	AutoApply     bool
	RequiresCode  bool

	// Scope restriction targets and explicit rules for category/item scopes.
	CategoryIDs []uuid.UUID
	ItemIDs     []uuid.UUID
	Rules       []Rule
}

// Validate checks the per-type required fields. Promotions are validated at
// construction so calculators can rely on well-formed inputs.
func (p Promotion) Validate() error {
	if p.TenantID == uuid.Nil {
		return errors.New("tenant id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	switch p.Type {
	case TypePercentage, TypeHappyHour, TypeFirstTimeCustomer:
		if p.Percentage <= 0 || p.Percentage > 100 {
			return fmt.Errorf("%s: percentage must be in (0,100]", p.Type)
		}
	case TypeFixedAmount:
		if p.Amount <= 0 {
			return fmt.Errorf("%s: amount must be positive", p.Type)
		}
	case TypeBuyXGetY:
		if p.BuyQuantity <= 0 || p.GetQuantity <= 0 {
			return fmt.Errorf("%s: buy and get quantities must be positive", p.Type)
		}
		if p.GetDiscountPct < 0 || p.GetDiscountPct > 100 {
			return fmt.Errorf("%s: get discount percentage must be in [0,100]", p.Type)
		}
	case TypeFreeDelivery:
		if p.Scope != ScopeDeliveryFee {
			return fmt.Errorf("%s: scope must be %s", p.Type, ScopeDeliveryFee)
		}
		if p.Amount < 0 {
			return fmt.Errorf("%s: cap must not be negative", p.Type)
		}
	case TypeCategoryDiscount:
		if p.Percentage <= 0 && p.Amount <= 0 {
			return fmt.Errorf("%s: either percentage or amount is required", p.Type)
		}
		if p.Percentage < 0 || p.Percentage > 100 {
			return fmt.Errorf("%s: percentage must be in [0,100]", p.Type)
		}
	default:
		return fmt.Errorf("unknown promotion type %q", p.Type)
	}
	if p.MaxDiscount != nil && *p.MaxDiscount < 0 {
		return errors.New("max discount must not be negative")
	}
	if p.MinOrderAmount < 0 || p.MinItems < 0 {
		return errors.New("thresholds must not be negative")
	}
	if err := validateHour(p.HourStart); err != nil {
		return err
	}
	if err := validateHour(p.HourEnd); err != nil {
		return err
	}
	return nil
}

func validateHour(v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse("15:04", v); err != nil {
		return fmt.Errorf("invalid hour %q: want HH:MM", v)
	}
	return nil
}

// Code is a redeemable string bound to exactly one promotion. Its own window
// and limits apply on top of the parent promotion's constraints.
type Code struct {
	ID          uuid.UUID
	PromotionID uuid.UUID
	TenantID    uuid.UUID
	Code        string
	Active      bool
	SingleUse   bool
	UsageLimit  *int
	PerCustomer *int
	ValidFrom   *time.Time
	ValidUntil  *time.Time
}

// CartItem is a read-only order line supplied by the caller.
type CartItem struct {
	ItemID     uuid.UUID
	CategoryID uuid.UUID
	Name       string
	UnitPrice  Money
	Quantity   int
	Modifiers  []string
}

// LineTotal returns quantity times unit price, treating negative inputs as zero.
func (c CartItem) LineTotal() Money {
	if c.Quantity <= 0 || c.UnitPrice <= 0 {
		return 0
	}
	return Money(c.Quantity) * c.UnitPrice
}

// AppliedItem records the share of a discount attributed to one cart line.
type AppliedItem struct {
	ItemID   uuid.UUID `json:"itemId"`
	Name     string    `json:"name"`
	Quantity int       `json:"quantity"`
	Discount Money     `json:"discount"`
}

// DiscountApplication is the per-promotion output of a calculation.
type DiscountApplication struct {
	PromotionID  uuid.UUID     `json:"promotionId"`
	Name         string        `json:"name"`
	Type         PromotionType `json:"type"`
	Scope        DiscountScope `json:"scope"`
	Discount     Money         `json:"discountAmount"`
	Code         string        `json:"code,omitempty"`
	CodeID       *uuid.UUID    `json:"codeId,omitempty"`
	AppliedItems []AppliedItem `json:"appliedItems,omitempty"`
}

// OrderPricing is the final aggregate produced by the pricing aggregator.
type OrderPricing struct {
	Subtotal         Money `json:"subtotal"`
	DiscountAmount   Money `json:"discountAmount"`
	DeliveryFee      Money `json:"deliveryFee"`
	DeliveryDiscount Money `json:"deliveryDiscount"`
	TaxAmount        Money `json:"taxAmount"`
	TotalAmount      Money `json:"totalAmount"`
}

// OrderHistory carries the order-history aggregates used for segment checks.
type OrderHistory struct {
	TotalOrders        int
	TotalSpent         Money
	DaysSinceLastOrder *int
}

// SegmentOf derives the customer segment from order-history aggregates.
func (h OrderHistory) SegmentOf() CustomerSegment {
	switch {
	case h.TotalOrders == 0:
		return SegmentNew
	case h.TotalSpent > vipLifetimeSpend:
		return SegmentVIP
	case h.DaysSinceLastOrder != nil && *h.DaysSinceLastOrder > inactiveAfterDays:
		return SegmentInactive
	default:
		return SegmentReturning
	}
}

// Matches reports whether the history satisfies the target segment. VIP and
// inactive are independent attributes rather than an exclusive partition, so
// each target is checked against the aggregates directly.
func (h OrderHistory) Matches(target CustomerSegment) bool {
	switch target {
	case SegmentAll, "":
		return true
	case SegmentNew:
		return h.TotalOrders == 0
	case SegmentReturning:
		return h.TotalOrders > 0
	case SegmentVIP:
		return h.TotalSpent > vipLifetimeSpend
	case SegmentInactive:
		return h.DaysSinceLastOrder != nil && *h.DaysSinceLastOrder > inactiveAfterDays
	default:
		return false
	}
}

// OrderContext carries the customer-side inputs of a calculation.
type OrderContext struct {
	CustomerID *uuid.UUID
	History    *OrderHistory
	// Segment is the caller-asserted customer segment, used only when no
	// history aggregates are supplied.
	Segment CustomerSegment
	Now     time.Time
}

// Cart bundles the chargeable amounts and lines of a calculation.
type Cart struct {
	Items       []CartItem
	Subtotal    Money
	DeliveryFee Money
	TaxAmount   Money
}

// ItemCount returns the total unit count across all lines.
func (c Cart) ItemCount() int {
	var n int
	for _, it := range c.Items {
		if it.Quantity > 0 {
			n += it.Quantity
		}
	}
	return n
}

// Clamped returns a copy with negative amounts clamped to zero. Malformed
// input is the caller's bug; the engine degrades instead of raising.
func (c Cart) Clamped() Cart {
	out := c
	if out.Subtotal < 0 {
		out.Subtotal = 0
	}
	if out.DeliveryFee < 0 {
		out.DeliveryFee = 0
	}
	if out.TaxAmount < 0 {
		out.TaxAmount = 0
	}
	return out
}
