package rbac

import (
	"context"
	"fmt"

	"github.com/forge-club/forge/internal/perm"
)

// StoreResolver computes effective permissions from persisted grants. This is
// the default strategy: an operator links identity groups to roles and grants
// them to principals ahead of time, so resolution is a single store read.
type StoreResolver struct {
	repo Repository
}

// NewStoreResolver constructs a StoreResolver.
func NewStoreResolver(repo Repository) *StoreResolver {
	return &StoreResolver{repo: repo}
}

// Resolve OR-aggregates the permission vectors of every role granted to the
// principal. A principal with no grants resolves to an all-false set.
func (r *StoreResolver) Resolve(ctx context.Context, principalID string) (*perm.Set, error) {
	roles, err := r.repo.RolesForPrincipal(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("rbac: resolve %q: %w", principalID, err)
	}
	set := perm.NewSet()
	for _, role := range roles {
		set.Or(role.Permissions)
	}
	return set, nil
}

// GroupDirectory is the external identity collaborator: it reports the
// group refs a principal currently holds.
type GroupDirectory interface {
	GroupRefs(ctx context.Context, principalID string) ([]string, error)
}

// GroupResolver resolves permissions live against the identity provider's
// group membership instead of persisted grants. It is an alternative
// strategy to StoreResolver, not a layer on top of it: a deployment picks
// one.
type GroupResolver struct {
	repo      Repository
	directory GroupDirectory
}

// NewGroupResolver constructs a GroupResolver.
func NewGroupResolver(repo Repository, directory GroupDirectory) *GroupResolver {
	return &GroupResolver{repo: repo, directory: directory}
}

// Resolve fetches the principal's live group refs and ORs the vectors of
// every role linked to one of them.
func (r *GroupResolver) Resolve(ctx context.Context, principalID string) (*perm.Set, error) {
	refs, err := r.directory.GroupRefs(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("rbac: group refs for %q: %w", principalID, err)
	}
	roles, err := r.repo.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: resolve %q: %w", principalID, err)
	}
	held := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		held[ref] = struct{}{}
	}
	set := perm.NewSet()
	for _, role := range roles {
		if _, ok := held[role.ExternalGroupRef]; ok {
			set.Or(role.Permissions)
		}
	}
	return set, nil
}

var (
	_ Resolver = (*StoreResolver)(nil)
	_ Resolver = (*GroupResolver)(nil)
)
