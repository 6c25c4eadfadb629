// Package rbac implements role storage, grant storage, effective-permission
// resolution, and the authorization gates guarding privileged operations.
package rbac

import (
	"context"
	"time"

	"github.com/forge-club/forge/internal/perm"
)

// Role links an external identity group to a permission vector.
type Role struct {
	ID               string
	Name             string
	ExternalGroupRef string
	Permissions      perm.Vector
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Grant ties a role to a principal. Principal ids come from the external
// identity provider and are opaque to this package.
type Grant struct {
	ID          string
	RoleID      string
	PrincipalID string
	CreatedAt   time.Time
}

// Resolver computes a principal's effective permission set. Implementations
// must be safe for concurrent per-request use.
type Resolver interface {
	Resolve(ctx context.Context, principalID string) (*perm.Set, error)
}
