package devseed

// Package devseed provisions role records for local development so the dev
// identity provider's users resolve to something other than the default role.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marketbay/storefront/internal/adapters/pgroles"
	domainauth "github.com/marketbay/storefront/internal/domain/auth"
)

// seedRoles are the development accounts provisioned on startup. The dev-user
// account matches the dev identity provider's default configuration.
var seedRoles = map[string]domainauth.Role{
	"dev-user":   domainauth.RoleAdmin,
	"dev-seller": domainauth.RoleSeller,
	"dev-buyer":  domainauth.RoleBuyer,
}

// Run upserts the development role records. It is idempotent and safe to call
// on every dev startup.
func Run(ctx context.Context, store *pgroles.Store, logger *slog.Logger) error {
	if store == nil {
		return fmt.Errorf("role store is required")
	}

	for userID, role := range seedRoles {
		if err := store.UpsertRole(ctx, userID, string(role)); err != nil {
			return fmt.Errorf("seed role for %s: %w", userID, err)
		}
	}

	if logger != nil {
		logger.InfoContext(ctx, "development roles seeded", "count", len(seedRoles))
	}
	return nil
}
