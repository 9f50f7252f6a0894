package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/promo"
)

// CountCodeUsage returns how many orders redeemed the code.
func (s *Store) CountCodeUsage(ctx context.Context, codeID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM promotion_usage WHERE code_id = $1
	`, codeID).Scan(&n)
	return n, err
}

// CountCodeUsageByCustomer returns how many orders of one customer redeemed the code.
func (s *Store) CountCodeUsageByCustomer(ctx context.Context, codeID, customerID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM promotion_usage WHERE code_id = $1 AND customer_id = $2
	`, codeID, customerID).Scan(&n)
	return n, err
}

// Record reserves a usage slot and writes the audit row in one transaction.
//
// The reservation is a conditional increment: the UPDATE only matches while
// used_count is below usage_limit, so two concurrent orders cannot both take
// the last slot, and consuming the last slot flips the promotion to
// exhausted. A zero-row UPDATE means the promotion is exhausted and the
// attempt is rejected with promo.ErrCodeExhausted. Per-customer and
// frequency caps are checked against the audit rows under the same
// transaction. The audit insert is keyed on (promotion_id, order_id), which
// makes retried deliveries idempotent.
func (s *Store) Record(ctx context.Context, u promo.Usage) error {
	if u.PromotionID == uuid.Nil || u.OrderID == uuid.Nil {
		return errors.New("promotion and order ids are required")
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Redelivered tasks are a no-op: each (promotion, order) pair is
	// recorded once.
	var seen bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM promotion_usage WHERE promotion_id = $1 AND order_id = $2
		)
	`, u.PromotionID, u.OrderID).Scan(&seen)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	if err := s.checkCustomerLimits(ctx, tx, u); err != nil {
		return err
	}

	// Reserve a usage slot; the same statement flips the promotion to
	// exhausted when this reservation consumes the last one.
	tag, err := tx.Exec(ctx, `
		UPDATE promotions
		SET used_count = used_count + 1,
		    status = CASE
		        WHEN usage_limit IS NOT NULL AND used_count + 1 >= usage_limit THEN 'exhausted'
		        ELSE status
		    END,
		    updated_at = now()
		WHERE id = $1
		  AND tenant_id = $2
		  AND (usage_limit IS NULL OR used_count < usage_limit)
	`, u.PromotionID, u.TenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.promotionExists(ctx, tx, u.TenantID, u.PromotionID)
		if err != nil {
			return err
		}
		if !exists {
			return promo.ErrNotFound
		}
		return promo.ErrCodeExhausted
	}

	appliedItems, err := marshalJSON(u.AppliedItems)
	if err != nil {
		return err
	}
	tag, err = tx.Exec(ctx, `
		INSERT INTO promotion_usage (
			id, tenant_id, promotion_id, code_id, order_id, customer_id,
			discount_amount, original_amount, applied_items, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (promotion_id, order_id) DO NOTHING
	`,
		uuid.New(), u.TenantID, u.PromotionID, u.CodeID, u.OrderID, u.CustomerID,
		u.Discount, u.OriginalAmount, appliedItems,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// A concurrent writer recorded the same order between our
		// existence check and here; leave the counter untouched by
		// rolling back the reservation.
		return nil
	}
	return tx.Commit(ctx)
}

// checkCustomerLimits enforces the promotion-level per-customer cap and the
// once/once_per_day frequencies. Anonymous orders carry no customer identity
// to count against, so they pass.
func (s *Store) checkCustomerLimits(ctx context.Context, tx pgx.Tx, u promo.Usage) error {
	if u.CustomerID == nil {
		return nil
	}
	var perCustomer *int
	var frequency string
	err := tx.QueryRow(ctx, `
		SELECT per_customer_limit, usage_frequency
		FROM promotions
		WHERE id = $1 AND tenant_id = $2
	`, u.PromotionID, u.TenantID).Scan(&perCustomer, &frequency)
	if errors.Is(err, pgx.ErrNoRows) {
		return promo.ErrNotFound
	}
	if err != nil {
		return err
	}

	limit := perCustomer
	if promo.UsageFrequency(frequency) == promo.FrequencyOnce {
		one := 1
		if limit == nil || *limit > 1 {
			limit = &one
		}
	}
	if limit != nil {
		var used int
		err := tx.QueryRow(ctx, `
			SELECT count(*) FROM promotion_usage
			WHERE promotion_id = $1 AND customer_id = $2
		`, u.PromotionID, u.CustomerID).Scan(&used)
		if err != nil {
			return err
		}
		if used >= *limit {
			return promo.ErrCodeExhausted
		}
	}
	if promo.UsageFrequency(frequency) == promo.FrequencyOncePerDay {
		var today int
		err := tx.QueryRow(ctx, `
			SELECT count(*) FROM promotion_usage
			WHERE promotion_id = $1 AND customer_id = $2
			  AND created_at >= date_trunc('day', now())
		`, u.PromotionID, u.CustomerID).Scan(&today)
		if err != nil {
			return err
		}
		if today > 0 {
			return promo.ErrCodeExhausted
		}
	}
	return nil
}

func (s *Store) promotionExists(ctx context.Context, tx pgx.Tx, tenantID, promotionID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM promotions WHERE id = $1 AND tenant_id = $2)
	`, promotionID, tenantID).Scan(&exists)
	return exists, err
}

// ListUsage pages through a promotion's redemption history, newest first.
func (s *Store) ListUsage(ctx context.Context, tenantID, promotionID uuid.UUID, limit, offset int) ([]promo.Usage, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id, promotion_id, code_id, order_id, customer_id,
		       discount_amount, original_amount, applied_items
		FROM promotion_usage
		WHERE tenant_id = $1 AND promotion_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, tenantID, promotionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]promo.Usage, 0, limit)
	for rows.Next() {
		var (
			u       promo.Usage
			applied []byte
		)
		err := rows.Scan(
			&u.TenantID, &u.PromotionID, &u.CodeID, &u.OrderID, &u.CustomerID,
			&u.Discount, &u.OriginalAmount, &applied,
		)
		if err != nil {
			return nil, err
		}
		if err := unmarshalInto(applied, &u.AppliedItems); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
