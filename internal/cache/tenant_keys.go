package cache

import (
	"context"

	"github.com/noah-isme/backend-resto/internal/tenant"
)

// KeyValidateRate returns the per-tenant rate limit key for code validation,
// bucketed by client address.
func KeyValidateRate(ctx context.Context, clientAddr string) string {
	id, _ := tenant.From(ctx)
	return tenant.PrefixKey(id, "ratelimit:validate:"+clientAddr)
}
