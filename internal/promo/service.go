package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/obs"
)

// ErrNotFound is returned by stores when a promotion or code does not exist.
var ErrNotFound = errors.New("promo: not found")

// ErrDuplicate is returned by stores on unique-key conflicts, e.g. reusing a
// code string within a tenant.
var ErrDuplicate = errors.New("promo: already exists")

// Querier captures the read operations the calculation engine needs from the
// data store. Implementations must scope every lookup to the tenant.
type Querier interface {
	// ListActivePromotions returns the tenant's active promotions that apply
	// automatically or do not require a code.
	ListActivePromotions(ctx context.Context, tenantID uuid.UUID) ([]Promotion, error)
	// GetCodeWithPromotion resolves a code string to the code row and its
	// parent promotion. Returns ErrNotFound for unknown codes.
	GetCodeWithPromotion(ctx context.Context, tenantID uuid.UUID, code string) (Code, Promotion, error)
	CountCodeUsage(ctx context.Context, codeID uuid.UUID) (int, error)
	CountCodeUsageByCustomer(ctx context.Context, codeID, customerID uuid.UUID) (int, error)
}

// Usage is the audit record the caller persists once per accepted promotion
// after order confirmation.
type Usage struct {
	TenantID       uuid.UUID     `json:"tenantId"`
	PromotionID    uuid.UUID     `json:"promotionId"`
	OrderID        uuid.UUID     `json:"orderId"`
	CustomerID     *uuid.UUID    `json:"customerId,omitempty"`
	CodeID         *uuid.UUID    `json:"codeId,omitempty"`
	Discount       Money         `json:"discountAmount"`
	OriginalAmount Money         `json:"originalAmount"`
	AppliedItems   []AppliedItem `json:"appliedItems,omitempty"`
}

// Recorder persists promotion usage for audit and usage-limit enforcement.
// Recording happens after order confirmation and is fire-and-forget from the
// engine's perspective: implementations own the transactional counter
// semantics, callers own the retry policy.
type Recorder interface {
	Record(ctx context.Context, u Usage) error
}

// CalculationInput is the full context of a pricing calculation.
type CalculationInput struct {
	TenantID   uuid.UUID
	CustomerID *uuid.UUID
	Cart       Cart
	PromoCodes []string
	History    *OrderHistory
	// Segment stands in for History when the caller knows the segment but
	// has no aggregates to supply.
	Segment CustomerSegment
}

// AppliedPromotion summarises one accepted promotion in the result.
type AppliedPromotion struct {
	ID   uuid.UUID     `json:"id"`
	Name string        `json:"name"`
	Type PromotionType `json:"type"`
	Code string        `json:"code,omitempty"`
}

// CalculationResult is returned to the caller for every calculation. The
// engine never propagates an error: on infrastructure failure Valid is false,
// discounts are zero, and Pricing passes the cart through at full price so a
// broken promotion can never block checkout.
type CalculationResult struct {
	Valid             bool                  `json:"isValid"`
	TotalDiscount     Money                 `json:"totalDiscount"`
	Breakdown         []DiscountApplication `json:"discountBreakdown"`
	Pricing           OrderPricing          `json:"finalPricing"`
	AppliedPromotions []AppliedPromotion    `json:"appliedPromotions"`
	Errors            []string              `json:"errors,omitempty"`
	Warnings          []string              `json:"warnings,omitempty"`
}

// Service evaluates promotions for carts. Safe for concurrent use: each
// calculation is independent and all engine state is passed in.
type Service struct {
	Q     Querier
	Cache *Cache
	Rec   Recorder
	Log   zerolog.Logger
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Calculate runs the full pipeline: eligibility filter, code validation,
// stacking resolution, per-type calculators, and pricing aggregation.
func (s *Service) Calculate(ctx context.Context, in CalculationInput) CalculationResult {
	cart := in.Cart.Clamped()
	passThrough := Aggregate(cart.Subtotal, cart.DeliveryFee, cart.TaxAmount, nil)
	result := CalculationResult{Valid: true, Pricing: passThrough}

	if s == nil || s.Q == nil {
		result.Valid = false
		result.Errors = append(result.Errors, "Failed to calculate promotions")
		return result
	}
	if in.TenantID == uuid.Nil {
		result.Valid = false
		result.Errors = append(result.Errors, "tenant is required")
		return result
	}
	now := s.now()
	octx := OrderContext{CustomerID: in.CustomerID, History: in.History, Segment: in.Segment, Now: now}

	candidates, err := s.activePromotions(ctx, in.TenantID)
	if err != nil {
		s.Log.Error().Err(err).Str("tenant_id", in.TenantID.String()).Msg("list active promotions")
		if obs.PromoCalculationsTotal != nil {
			obs.PromoCalculationsTotal.WithLabelValues(in.TenantID.String(), "error").Inc()
		}
		result.Valid = false
		result.Errors = append(result.Errors, "Failed to calculate promotions")
		return result
	}
	eligible := Eligible(candidates, cart, octx)

	// Code-gated promotions join the candidate set only through validation.
	codeByPromotion := map[uuid.UUID]Code{}
	for _, raw := range in.PromoCodes {
		code, promotion, err := s.resolveCode(ctx, in.TenantID, raw, in.CustomerID, cart, octx, now)
		if err != nil {
			if errors.Is(err, ErrLookupFailed) {
				result.Errors = append(result.Errors, fmt.Sprintf("Failed to validate code %q", raw))
			} else {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", raw, reasonFor(err)))
			}
			continue
		}
		if _, dup := codeByPromotion[promotion.ID]; dup {
			continue
		}
		codeByPromotion[promotion.ID] = code
		if !containsPromotion(eligible, promotion.ID) {
			eligible = append(eligible, promotion)
		}
	}

	accepted := SortAndResolve(eligible)
	remainingSubtotal := cart.Subtotal
	remainingDelivery := cart.DeliveryFee
	for _, p := range accepted {
		calc := calculatorFor(p.Type)
		if calc == nil {
			s.Log.Warn().Str("promotion_id", p.ID.String()).Str("type", string(p.Type)).Msg("unknown promotion type")
			if obs.PromoUnknownTypeTotal != nil {
				obs.PromoUnknownTypeTotal.Inc()
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("promotion %s skipped: unknown type", p.Name))
			continue
		}
		res := calc(p, cart.Items, remainingSubtotal, remainingDelivery, now)
		if res.Discount <= 0 {
			continue
		}
		app := DiscountApplication{
			PromotionID:  p.ID,
			Name:         p.Name,
			Type:         p.Type,
			Scope:        p.Scope,
			Discount:     res.Discount,
			AppliedItems: res.AppliedItems,
		}
		if c, ok := codeByPromotion[p.ID]; ok {
			app.Code = c.Code
			id := c.ID
			app.CodeID = &id
		}
		if p.Scope.AppliesToDelivery() {
			remainingDelivery -= res.Discount
			if remainingDelivery < 0 {
				remainingDelivery = 0
			}
		} else {
			remainingSubtotal -= res.Discount
			if remainingSubtotal < 0 {
				remainingSubtotal = 0
			}
		}
		result.Breakdown = append(result.Breakdown, app)
		summary := AppliedPromotion{ID: p.ID, Name: p.Name, Type: p.Type, Code: app.Code}
		result.AppliedPromotions = append(result.AppliedPromotions, summary)
	}

	result.Pricing = Aggregate(cart.Subtotal, cart.DeliveryFee, cart.TaxAmount, result.Breakdown)
	result.TotalDiscount = result.Pricing.DiscountAmount + result.Pricing.DeliveryDiscount

	if obs.PromoCalculationsTotal != nil {
		obs.PromoCalculationsTotal.WithLabelValues(in.TenantID.String(), "ok").Inc()
	}
	if obs.PromoDiscountCents != nil {
		obs.PromoDiscountCents.Observe(float64(result.TotalDiscount))
	}
	s.Log.Debug().
		Str("tenant_id", in.TenantID.String()).
		Int("candidates", len(candidates)).
		Int("applied", len(result.Breakdown)).
		Int64("total_discount", result.TotalDiscount).
		Msg("promotions calculated")
	return result
}

// ValidateCode is the standalone validation entry point used by the code-box
// UI before a full cart calculation.
func (s *Service) ValidateCode(ctx context.Context, tenantID uuid.UUID, rawCode string, customerID *uuid.UUID, orderAmount Money) (CodeValidation, error) {
	if s == nil || s.Q == nil {
		return CodeValidation{}, errors.New("promo service not configured")
	}
	trimmed := strings.TrimSpace(rawCode)
	if trimmed == "" {
		countCodeValidation("invalid")
		return CodeValidation{Valid: false, Message: reasonFor(ErrCodeInvalid)}, nil
	}
	if orderAmount < 0 {
		orderAmount = 0
	}
	now := s.now()

	code, promotion, err := s.Q.GetCodeWithPromotion(ctx, tenantID, trimmed)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			countCodeValidation("invalid")
			return CodeValidation{Valid: false, Message: reasonFor(ErrCodeInvalid)}, nil
		}
		countCodeValidation("error")
		return CodeValidation{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	usage, err := s.codeUsage(ctx, code, customerID)
	if err != nil {
		countCodeValidation("error")
		return CodeValidation{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if err := validateCode(code, usage, now); err != nil {
		countCodeValidation("invalid")
		return CodeValidation{Valid: false, Message: reasonFor(err)}, nil
	}
	if err := parentCheck(promotion, orderAmount, now); err != nil {
		countCodeValidation("invalid")
		return CodeValidation{Valid: false, Message: reasonFor(err)}, nil
	}

	preview := Money(0)
	if calc := calculatorFor(promotion.Type); calc != nil {
		preview = calc(promotion, nil, orderAmount, 0, now).Discount
	}
	countCodeValidation("valid")
	return CodeValidation{
		Valid:       true,
		PromotionID: promotion.ID.String(),
		CodeID:      code.ID.String(),
		Preview:     preview,
	}, nil
}

// RecordUsage hands accepted promotions to the recorder after order
// confirmation. Failures are logged and counted, never returned: pricing has
// already succeeded and recording must not fail order placement.
func (s *Service) RecordUsage(ctx context.Context, usages []Usage) {
	if s == nil || s.Rec == nil {
		return
	}
	for _, u := range usages {
		if u.PromotionID == uuid.Nil || u.OrderID == uuid.Nil {
			continue
		}
		if err := s.Rec.Record(ctx, u); err != nil {
			if obs.PromoUsageRecordFailures != nil {
				obs.PromoUsageRecordFailures.Inc()
			}
			s.Log.Error().Err(err).
				Str("promotion_id", u.PromotionID.String()).
				Str("order_id", u.OrderID.String()).
				Msg("record promotion usage")
		}
	}
}

// resolveCode validates one code within the calculation path, applying the
// full cart-aware eligibility checks to the parent promotion.
func (s *Service) resolveCode(ctx context.Context, tenantID uuid.UUID, raw string, customerID *uuid.UUID, cart Cart, octx OrderContext, now time.Time) (Code, Promotion, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Code{}, Promotion{}, ErrCodeInvalid
	}
	code, promotion, err := s.Q.GetCodeWithPromotion(ctx, tenantID, trimmed)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Code{}, Promotion{}, ErrCodeInvalid
		}
		return Code{}, Promotion{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	usage, err := s.codeUsage(ctx, code, customerID)
	if err != nil {
		return Code{}, Promotion{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if err := validateCode(code, usage, now); err != nil {
		return Code{}, Promotion{}, err
	}
	if err := check(promotion, cart, octx, now); err != nil {
		return Code{}, Promotion{}, err
	}
	return code, promotion, nil
}

func (s *Service) codeUsage(ctx context.Context, code Code, customerID *uuid.UUID) (codeUsage, error) {
	usage := codeUsage{}
	needTotal := code.SingleUse || (code.UsageLimit != nil && *code.UsageLimit > 0)
	if needTotal {
		total, err := s.Q.CountCodeUsage(ctx, code.ID)
		if err != nil {
			return codeUsage{}, err
		}
		usage.total = total
	}
	needCustomer := customerID != nil && (code.SingleUse || (code.PerCustomer != nil && *code.PerCustomer > 0))
	if needCustomer {
		count, err := s.Q.CountCodeUsageByCustomer(ctx, code.ID, *customerID)
		if err != nil {
			return codeUsage{}, err
		}
		usage.byCustomer = count
		usage.hasCustomer = true
	}
	return usage, nil
}

// activePromotions consults the cache before the store. A cold or failing
// cache degrades to a direct read; cache write errors are only logged.
func (s *Service) activePromotions(ctx context.Context, tenantID uuid.UUID) ([]Promotion, error) {
	if s.Cache != nil {
		var cached []Promotion
		hit, err := s.Cache.GetActive(ctx, tenantID, &cached)
		if err != nil {
			s.Log.Warn().Err(err).Msg("promotion cache read")
		} else if hit {
			return cached, nil
		}
	}
	promos, err := s.Q.ListActivePromotions(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.SetActive(ctx, tenantID, promos); err != nil {
			s.Log.Warn().Err(err).Msg("promotion cache write")
		}
	}
	return promos, nil
}

func containsPromotion(list []Promotion, id uuid.UUID) bool {
	for _, p := range list {
		if p.ID == id {
			return true
		}
	}
	return false
}

func countCodeValidation(result string) {
	if obs.PromoCodeValidationsTotal != nil {
		obs.PromoCodeValidationsTotal.WithLabelValues(result).Inc()
	}
}
