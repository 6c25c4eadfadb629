package rbac

import (
	"github.com/forge-club/forge/internal/perm"
	"github.com/forge-club/forge/internal/shared"
)

// The gate functions are pure: callers obtain the effective set through a
// Resolver first. A permission name outside the catalog panics via perm.Set,
// which is deliberate; requirement lists are compile-time constants and an
// unknown name is a programming error, not an authorization failure.

// RequireAll passes when the officer bit is set or every named permission is
// granted. An empty requirement list always passes.
func RequireAll(set *perm.Set, names ...string) error {
	if set.Has(perm.IsOfficer) {
		return nil
	}
	for _, name := range names {
		if !set.Has(name) {
			return shared.ErrUnauthorized
		}
	}
	return nil
}

// RequireAny passes when the officer bit is set or at least one named
// permission is granted. An empty requirement list always passes.
func RequireAny(set *perm.Set, names ...string) error {
	if set.Has(perm.IsOfficer) {
		return nil
	}
	if len(names) == 0 {
		return nil
	}
	for _, name := range names {
		if set.Has(name) {
			return nil
		}
	}
	return shared.ErrUnauthorized
}
