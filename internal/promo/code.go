package promo

import "time"

// CodeValidation is the structured outcome of validating a promotion code.
// An unusable code is an ordinary result, never an error; only infrastructure
// failures surface as errors from the validating call.
type CodeValidation struct {
	Valid       bool   `json:"isValid"`
	PromotionID string `json:"promotionId,omitempty"`
	CodeID      string `json:"promotionCodeId,omitempty"`
	Message     string `json:"errorMessage,omitempty"`
	Preview     Money  `json:"discountPreview"`
}

// codeUsage carries the persisted counters consulted during code validation.
type codeUsage struct {
	total       int
	byCustomer  int
	hasCustomer bool
}

// validateCode applies the code-level checks: active flag, validity window,
// single-use and usage-limit counters. Promotion-level eligibility is layered
// on top by the caller; both must hold for the code to be usable.
func validateCode(c Code, usage codeUsage, now time.Time) error {
	if !c.Active {
		return ErrCodeInvalid
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return ErrCodeExpired
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return ErrCodeExpired
	}
	limit := 0
	if c.SingleUse {
		limit = 1
	}
	if c.UsageLimit != nil && *c.UsageLimit > 0 && (limit == 0 || *c.UsageLimit < limit) {
		limit = *c.UsageLimit
	}
	if limit > 0 && usage.total >= limit {
		return ErrCodeExhausted
	}
	perCustomer := 0
	if c.SingleUse {
		perCustomer = 1
	}
	if c.PerCustomer != nil && *c.PerCustomer > 0 && (perCustomer == 0 || *c.PerCustomer < perCustomer) {
		perCustomer = *c.PerCustomer
	}
	if perCustomer > 0 && usage.hasCustomer && usage.byCustomer >= perCustomer {
		return ErrCodeExhausted
	}
	return nil
}

// parentCheck applies the promotion-level constraints that can be evaluated
// from a bare order amount: lifecycle status, minimum order amount, and time
// window. Segment and item-count checks need the full cart and run only in
// the calculation path.
func parentCheck(p Promotion, orderAmount Money, now time.Time) error {
	if p.Status != StatusActive {
		return ErrNotEligible
	}
	if orderAmount < p.MinOrderAmount {
		return ErrMinimumOrderUnmet
	}
	if !withinWindow(p, now) {
		return ErrNotEligible
	}
	return nil
}

// reasonFor maps a validation error onto the customer-facing message.
func reasonFor(err error) string {
	switch err {
	case ErrCodeInvalid:
		return "This code is not valid"
	case ErrCodeExpired:
		return "This code has expired"
	case ErrCodeExhausted:
		return "This code has reached its usage limit"
	case ErrMinimumOrderUnmet:
		return "Order amount is below the minimum for this code"
	case ErrNotEligible:
		return "This code cannot be applied to this order"
	default:
		return "This code cannot be applied"
	}
}
