package promo

import "time"

// Eligible filters the candidate promotions down to those whose structural
// state and preconditions hold for the given cart and customer context. The
// store fetch happens in the service layer; this function is pure so it can be
// exercised without I/O. An empty result is an ordinary outcome, not an error.
func Eligible(candidates []Promotion, cart Cart, octx OrderContext) []Promotion {
	cart = cart.Clamped()
	now := octx.Now
	if now.IsZero() {
		now = time.Now()
	}
	out := make([]Promotion, 0, len(candidates))
	for _, p := range candidates {
		if check(p, cart, octx, now) == nil {
			out = append(out, p)
		}
	}
	return out
}

// check reports why a single promotion is not applicable, or nil when it is.
// The same checks back both the eligibility filter and the code validator.
func check(p Promotion, cart Cart, octx OrderContext, now time.Time) error {
	if p.Status != StatusActive {
		return ErrNotEligible
	}
	if cart.Subtotal < p.MinOrderAmount {
		return ErrMinimumOrderUnmet
	}
	if p.MinItems > 0 && cart.ItemCount() < p.MinItems {
		return ErrNotEligible
	}
	if !withinWindow(p, now) {
		return ErrNotEligible
	}
	if p.Segment != "" && p.Segment != SegmentAll && !segmentMatches(p.Segment, octx) {
		return ErrNotEligible
	}
	return nil
}

// segmentMatches derives membership from history aggregates when present;
// without them it trusts the segment the caller asserted, if any.
func segmentMatches(target CustomerSegment, octx OrderContext) bool {
	if octx.History == nil && octx.Segment != "" {
		return octx.Segment == target
	}
	history := OrderHistory{}
	if octx.History != nil {
		history = *octx.History
	}
	return history.Matches(target)
}

// withinWindow evaluates the three independent time constraints: date range,
// allowed weekdays, and allowed hour-of-day range. All present constraints
// must hold. The hour range may wrap past midnight (e.g. 22:00-02:00).
func withinWindow(p Promotion, now time.Time) bool {
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return false
	}
	if len(p.Weekdays) > 0 {
		ok := false
		for _, d := range p.Weekdays {
			if now.Weekday() == d {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if p.HourStart != "" && p.HourEnd != "" {
		start, err := time.Parse("15:04", p.HourStart)
		if err != nil {
			return false
		}
		end, err := time.Parse("15:04", p.HourEnd)
		if err != nil {
			return false
		}
		minute := now.Hour()*60 + now.Minute()
		startMin := start.Hour()*60 + start.Minute()
		endMin := end.Hour()*60 + end.Minute()
		if startMin <= endMin {
			if minute < startMin || minute > endMin {
				return false
			}
		} else if minute < startMin && minute > endMin {
			return false
		}
	}
	return true
}
