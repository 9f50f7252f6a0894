package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-resto/internal/promo"
)

const promotionColumns = `
	id, tenant_id, name, promotion_type, status, scope,
	percentage, amount, max_discount,
	buy_quantity, get_quantity, get_discount_pct,
	min_order_amount, min_items,
	usage_limit, per_customer_limit, usage_frequency, used_count,
	valid_from, valid_until, weekdays, hour_start, hour_end,
	segment, stackable, stack_priority, auto_apply, requires_code,
	category_ids, item_ids, rules`

func scanPromotion(row pgx.Row) (promo.Promotion, error) {
	var (
		p           promo.Promotion
		maxDiscount pgtype.Int8
		usageLimit  pgtype.Int4
		perCustomer pgtype.Int4
		validFrom   pgtype.Timestamptz
		validUntil  pgtype.Timestamptz
		weekdays    []byte
		categoryIDs []byte
		itemIDs     []byte
		rules       []byte
	)
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Name, &p.Type, &p.Status, &p.Scope,
		&p.Percentage, &p.Amount, &maxDiscount,
		&p.BuyQuantity, &p.GetQuantity, &p.GetDiscountPct,
		&p.MinOrderAmount, &p.MinItems,
		&usageLimit, &perCustomer, &p.Frequency, &p.UsedCount,
		&validFrom, &validUntil, &weekdays, &p.HourStart, &p.HourEnd,
		&p.Segment, &p.Stackable, &p.StackPriority, &p.AutoApply, &p.RequiresCode,
		&categoryIDs, &itemIDs, &rules,
	)
	if err != nil {
		return promo.Promotion{}, err
	}
	p.MaxDiscount = int64Ptr(maxDiscount)
	p.UsageLimit = intPtr(usageLimit)
	p.PerCustomer = intPtr(perCustomer)
	p.ValidFrom = timePtr(validFrom)
	p.ValidUntil = timePtr(validUntil)
	if err := unmarshalInto(weekdays, &p.Weekdays); err != nil {
		return promo.Promotion{}, fmt.Errorf("decode weekdays: %w", err)
	}
	if err := unmarshalInto(categoryIDs, &p.CategoryIDs); err != nil {
		return promo.Promotion{}, fmt.Errorf("decode category ids: %w", err)
	}
	if err := unmarshalInto(itemIDs, &p.ItemIDs); err != nil {
		return promo.Promotion{}, fmt.Errorf("decode item ids: %w", err)
	}
	if err := unmarshalInto(rules, &p.Rules); err != nil {
		return promo.Promotion{}, fmt.Errorf("decode rules: %w", err)
	}
	return p, nil
}

func unmarshalInto(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// ListActivePromotions returns the tenant's active promotions that apply
// without a code: auto-apply ones and ones that do not require a code.
// Everything else enters calculations through GetCodeWithPromotion only.
func (s *Store) ListActivePromotions(ctx context.Context, tenantID uuid.UUID) ([]promo.Promotion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+promotionColumns+`
		FROM promotions
		WHERE tenant_id = $1
		  AND status = 'active'
		  AND (auto_apply = true OR requires_code = false)
		ORDER BY stack_priority DESC, created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]promo.Promotion, 0, 16)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPromotion fetches a single promotion scoped to the tenant.
func (s *Store) GetPromotion(ctx context.Context, tenantID, id uuid.UUID) (promo.Promotion, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+promotionColumns+`
		FROM promotions
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	p, err := scanPromotion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return promo.Promotion{}, promo.ErrNotFound
	}
	return p, err
}

// ListPromotions pages through every promotion of a tenant regardless of status.
func (s *Store) ListPromotions(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]promo.Promotion, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+promotionColumns+`
		FROM promotions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]promo.Promotion, 0, limit)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePromotion inserts a validated promotion and returns its assigned id.
func (s *Store) CreatePromotion(ctx context.Context, p promo.Promotion) (uuid.UUID, error) {
	if err := p.Validate(); err != nil {
		return uuid.Nil, err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Frequency == "" {
		p.Frequency = promo.FrequencyUnlimited
	}
	weekdays, err := marshalJSON(p.Weekdays)
	if err != nil {
		return uuid.Nil, err
	}
	categoryIDs, err := marshalJSON(p.CategoryIDs)
	if err != nil {
		return uuid.Nil, err
	}
	itemIDs, err := marshalJSON(p.ItemIDs)
	if err != nil {
		return uuid.Nil, err
	}
	rules, err := marshalJSON(p.Rules)
	if err != nil {
		return uuid.Nil, err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO promotions (
			id, tenant_id, name, promotion_type, status, scope,
			percentage, amount, max_discount,
			buy_quantity, get_quantity, get_discount_pct,
			min_order_amount, min_items,
			usage_limit, per_customer_limit, usage_frequency, used_count,
			valid_from, valid_until, weekdays, hour_start, hour_end,
			segment, stackable, stack_priority, auto_apply, requires_code,
			category_ids, item_ids, rules, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12,
			$13, $14,
			$15, $16, $17, 0,
			$18, $19, $20, $21, $22,
			$23, $24, $25, $26, $27,
			$28, $29, $30, now(), now()
		)
	`,
		p.ID, p.TenantID, p.Name, p.Type, p.Status, p.Scope,
		p.Percentage, p.Amount, int8p(p.MaxDiscount),
		p.BuyQuantity, p.GetQuantity, p.GetDiscountPct,
		p.MinOrderAmount, p.MinItems,
		int4(p.UsageLimit), int4(p.PerCustomer), p.Frequency,
		timestamptz(p.ValidFrom), timestamptz(p.ValidUntil), weekdays, p.HourStart, p.HourEnd,
		p.Segment, p.Stackable, p.StackPriority, p.AutoApply, p.RequiresCode,
		categoryIDs, itemIDs, rules,
	)
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// UpdatePromotion replaces the mutable fields of an existing promotion.
func (s *Store) UpdatePromotion(ctx context.Context, p promo.Promotion) error {
	if err := p.Validate(); err != nil {
		return err
	}
	weekdays, err := marshalJSON(p.Weekdays)
	if err != nil {
		return err
	}
	categoryIDs, err := marshalJSON(p.CategoryIDs)
	if err != nil {
		return err
	}
	itemIDs, err := marshalJSON(p.ItemIDs)
	if err != nil {
		return err
	}
	rules, err := marshalJSON(p.Rules)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE promotions SET
			name = $3, promotion_type = $4, status = $5, scope = $6,
			percentage = $7, amount = $8, max_discount = $9,
			buy_quantity = $10, get_quantity = $11, get_discount_pct = $12,
			min_order_amount = $13, min_items = $14,
			usage_limit = $15, per_customer_limit = $16, usage_frequency = $17,
			valid_from = $18, valid_until = $19, weekdays = $20, hour_start = $21, hour_end = $22,
			segment = $23, stackable = $24, stack_priority = $25, auto_apply = $26, requires_code = $27,
			category_ids = $28, item_ids = $29, rules = $30, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`,
		p.TenantID, p.ID,
		p.Name, p.Type, p.Status, p.Scope,
		p.Percentage, p.Amount, int8p(p.MaxDiscount),
		p.BuyQuantity, p.GetQuantity, p.GetDiscountPct,
		p.MinOrderAmount, p.MinItems,
		int4(p.UsageLimit), int4(p.PerCustomer), p.Frequency,
		timestamptz(p.ValidFrom), timestamptz(p.ValidUntil), weekdays, p.HourStart, p.HourEnd,
		p.Segment, p.Stackable, p.StackPriority, p.AutoApply, p.RequiresCode,
		categoryIDs, itemIDs, rules,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrNotFound
	}
	return nil
}

// UpdatePromotionStatus moves a promotion through its lifecycle.
func (s *Store) UpdatePromotionStatus(ctx context.Context, tenantID, id uuid.UUID, status promo.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE promotions SET status = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrNotFound
	}
	return nil
}

// DeletePromotion cancels a promotion. Usage history keeps referencing it, so
// rows are never physically removed.
func (s *Store) DeletePromotion(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.UpdatePromotionStatus(ctx, tenantID, id, promo.StatusCancelled)
}

// ExpirePromotions flips past-window promotions to expired and returns how
// many rows changed. Run periodically by the worker.
func (s *Store) ExpirePromotions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE promotions SET status = 'expired', updated_at = now()
		WHERE status = 'active' AND valid_until IS NOT NULL AND valid_until < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
