package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-resto/internal/promo"
)


const codeColumns = `
	c.id, c.promotion_id, c.tenant_id, c.code, c.active, c.single_use,
	c.usage_limit, c.per_customer_limit, c.valid_from, c.valid_until`

func scanCode(row pgx.Row) (promo.Code, error) {
	var (
		c           promo.Code
		usageLimit  pgtype.Int4
		perCustomer pgtype.Int4
		validFrom   pgtype.Timestamptz
		validUntil  pgtype.Timestamptz
	)
	err := row.Scan(
		&c.ID, &c.PromotionID, &c.TenantID, &c.Code, &c.Active, &c.SingleUse,
		&usageLimit, &perCustomer, &validFrom, &validUntil,
	)
	if err != nil {
		return promo.Code{}, err
	}
	c.UsageLimit = intPtr(usageLimit)
	c.PerCustomer = intPtr(perCustomer)
	c.ValidFrom = timePtr(validFrom)
	c.ValidUntil = timePtr(validUntil)
	return c, nil
}

// GetCodeWithPromotion resolves a code string to the code row and its parent
// promotion in one round trip. Codes are matched case-insensitively.
func (s *Store) GetCodeWithPromotion(ctx context.Context, tenantID uuid.UUID, code string) (promo.Code, promo.Promotion, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	row := s.pool.QueryRow(ctx, `
		SELECT `+codeColumns+`, `+joinedPromotionColumns()+`
		FROM promotion_codes c
		JOIN promotions p ON p.id = c.promotion_id
		WHERE c.tenant_id = $1 AND upper(c.code) = $2
	`, tenantID, normalized)

	c, p, err := scanCodeWithPromotion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return promo.Code{}, promo.Promotion{}, promo.ErrNotFound
	}
	return c, p, err
}

func joinedPromotionColumns() string {
	cols := strings.Split(promotionColumns, ",")
	for i, col := range cols {
		cols[i] = "p." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

func scanCodeWithPromotion(row pgx.Row) (promo.Code, promo.Promotion, error) {
	var (
		c     promo.Code
		p     promo.Promotion
		cul   pgtype.Int4
		cpc   pgtype.Int4
		cfrom pgtype.Timestamptz
		cto   pgtype.Timestamptz

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
		&c.ID, &c.PromotionID, &c.TenantID, &c.Code, &c.Active, &c.SingleUse,
		&cul, &cpc, &cfrom, &cto,
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
		return promo.Code{}, promo.Promotion{}, err
	}
	c.UsageLimit = intPtr(cul)
	c.PerCustomer = intPtr(cpc)
	c.ValidFrom = timePtr(cfrom)
	c.ValidUntil = timePtr(cto)
	p.MaxDiscount = int64Ptr(maxDiscount)
	p.UsageLimit = intPtr(usageLimit)
	p.PerCustomer = intPtr(perCustomer)
	p.ValidFrom = timePtr(validFrom)
	p.ValidUntil = timePtr(validUntil)
	if err := unmarshalInto(weekdays, &p.Weekdays); err != nil {
		return promo.Code{}, promo.Promotion{}, err
	}
	if err := unmarshalInto(categoryIDs, &p.CategoryIDs); err != nil {
		return promo.Code{}, promo.Promotion{}, err
	}
	if err := unmarshalInto(itemIDs, &p.ItemIDs); err != nil {
		return promo.Code{}, promo.Promotion{}, err
	}
	if err := unmarshalInto(rules, &p.Rules); err != nil {
		return promo.Code{}, promo.Promotion{}, err
	}
	return c, p, nil
}

// CreateCode attaches a new code to a promotion.
func (s *Store) CreateCode(ctx context.Context, c promo.Code) (uuid.UUID, error) {
	if strings.TrimSpace(c.Code) == "" {
		return uuid.Nil, errors.New("code string is required")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO promotion_codes (
			id, promotion_id, tenant_id, code, active, single_use,
			usage_limit, per_customer_limit, valid_from, valid_until, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	`,
		c.ID, c.PromotionID, c.TenantID, strings.ToUpper(strings.TrimSpace(c.Code)),
		c.Active, c.SingleUse,
		int4(c.UsageLimit), int4(c.PerCustomer),
		timestamptz(c.ValidFrom), timestamptz(c.ValidUntil),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, promo.ErrDuplicate
		}
		return uuid.Nil, err
	}
	return c.ID, nil
}

// ListCodes returns every code attached to a promotion.
func (s *Store) ListCodes(ctx context.Context, tenantID, promotionID uuid.UUID) ([]promo.Code, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+codeColumns+`
		FROM promotion_codes c
		WHERE c.tenant_id = $1 AND c.promotion_id = $2
		ORDER BY c.created_at
	`, tenantID, promotionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]promo.Code, 0, 8)
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeactivateCode turns a code off without touching its usage history.
func (s *Store) DeactivateCode(ctx context.Context, tenantID, codeID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE promotion_codes SET active = false
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, codeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
