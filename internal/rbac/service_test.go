package rbac

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forge-club/forge/internal/perm"
	"github.com/forge-club/forge/internal/shared"
	_ "github.com/forge-club/forge/testing"
)

// mockRepository keeps roles and grants in maps and mirrors the database
// uniqueness constraints, including the constraint-layer conflict on
// concurrent creates the pre-checks cannot see.
type mockRepository struct {
	roles  map[string]Role
	grants map[string]Grant

	rolesErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:  make(map[string]Role),
		grants: make(map[string]Grant),
	}
}

func (m *mockRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	for _, existing := range m.roles {
		if existing.Name == role.Name || existing.ExternalGroupRef == role.ExternalGroupRef {
			return Role{}, shared.ErrConflict
		}
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	if _, ok := m.roles[role.ID]; !ok {
		return Role{}, shared.ErrNotFound
	}
	for id, existing := range m.roles {
		if id == role.ID {
			continue
		}
		if existing.Name == role.Name || existing.ExternalGroupRef == role.ExternalGroupRef {
			return Role{}, shared.ErrConflict
		}
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRepository) DeleteRole(ctx context.Context, id string) error {
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	for gid, grant := range m.grants {
		if grant.RoleID == id {
			delete(m.grants, gid)
		}
	}
	return nil
}

func (m *mockRepository) GetRole(ctx context.Context, id string) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) {
	if m.rolesErr != nil {
		return nil, m.rolesErr
	}
	var roles []Role
	for _, role := range m.roles {
		roles = append(roles, role)
	}
	return roles, nil
}

func (m *mockRepository) CreateGrant(ctx context.Context, grant Grant) (Grant, error) {
	if _, ok := m.roles[grant.RoleID]; !ok {
		return Grant{}, shared.ErrNotFound
	}
	for _, existing := range m.grants {
		if existing.RoleID == grant.RoleID && existing.PrincipalID == grant.PrincipalID {
			return Grant{}, shared.ErrConflict
		}
	}
	m.grants[grant.ID] = grant
	return grant, nil
}

func (m *mockRepository) DeleteGrant(ctx context.Context, roleID, principalID string) error {
	for id, grant := range m.grants {
		if grant.RoleID == roleID && grant.PrincipalID == principalID {
			delete(m.grants, id)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *mockRepository) GrantsForRole(ctx context.Context, roleID string) ([]Grant, error) {
	var grants []Grant
	for _, grant := range m.grants {
		if grant.RoleID == roleID {
			grants = append(grants, grant)
		}
	}
	return grants, nil
}

func (m *mockRepository) RolesForPrincipal(ctx context.Context, principalID string) ([]Role, error) {
	if m.rolesErr != nil {
		return nil, m.rolesErr
	}
	var roles []Role
	for _, grant := range m.grants {
		if grant.PrincipalID == principalID {
			roles = append(roles, m.roles[grant.RoleID])
		}
	}
	return roles, nil
}

var _ Repository = (*mockRepository)(nil)

func bitsOnly(t *testing.T, indices ...int) string {
	t.Helper()
	raw := []byte(strings.Repeat("0", perm.Size()))
	for _, i := range indices {
		raw[i] = '1'
	}
	return string(raw)
}

func TestCreateRoleValidation(t *testing.T) {
	svc := NewService(newMockRepository(), nil, nil)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "", "group-1", bitsOnly(t))
	assert.True(t, errors.Is(err, shared.ErrInvalidArgument))

	_, err = svc.CreateRole(ctx, "Officers", "", bitsOnly(t))
	assert.True(t, errors.Is(err, shared.ErrInvalidArgument))

	_, err = svc.CreateRole(ctx, "Officers", "group-1", "0101")
	assert.True(t, errors.Is(err, shared.ErrInvalidArgument))

	_, err = svc.CreateRole(ctx, "Officers", "group-1", strings.Repeat("2", perm.Size()))
	assert.True(t, errors.Is(err, shared.ErrInvalidArgument))
}

func TestCreateRoleConflictOnDuplicateGroupRef(t *testing.T) {
	svc := NewService(newMockRepository(), nil, nil)
	ctx := context.Background()

	first, err := svc.CreateRole(ctx, "Officers", "X", bitsOnly(t, 0))
	require.NoError(t, err)

	_, err = svc.CreateRole(ctx, "Judges", "X", bitsOnly(t, 1))
	assert.True(t, errors.Is(err, shared.ErrConflict))

	// Freeing the ref by updating the first role makes the create succeed.
	_, err = svc.UpdateRole(ctx, first.ID, "Officers", "Y", bitsOnly(t, 0))
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "Judges", "X", bitsOnly(t, 1))
	assert.NoError(t, err)
}

func TestUpdateRoleErrors(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.UpdateRole(ctx, "missing", "Officers", "X", bitsOnly(t))
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	a, err := svc.CreateRole(ctx, "A", "ref-a", bitsOnly(t))
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "B", "ref-b", bitsOnly(t, 2))
	require.NoError(t, err)

	_, err = svc.UpdateRole(ctx, a.ID, "B", "ref-a", bitsOnly(t))
	assert.True(t, errors.Is(err, shared.ErrConflict))
	_, err = svc.UpdateRole(ctx, a.ID, "A", "ref-b", bitsOnly(t))
	assert.True(t, errors.Is(err, shared.ErrConflict))

	// Updating a role over its own name and ref is not a conflict.
	_, err = svc.UpdateRole(ctx, a.ID, "A", "ref-a", bitsOnly(t, 3))
	assert.NoError(t, err)
}

func TestDeleteRoleCascadesGrants(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "Officers", "X", bitsOnly(t, 0))
	require.NoError(t, err)
	_, err = svc.Grant(ctx, role.ID, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRole(ctx, role.ID))
	assert.True(t, errors.Is(svc.DeleteRole(ctx, role.ID), shared.ErrNotFound))

	roles, err := svc.GrantsForPrincipal(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestGrantSemantics(t *testing.T) {
	svc := NewService(newMockRepository(), nil, nil)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "Officers", "X", bitsOnly(t, 0))
	require.NoError(t, err)

	_, err = svc.Grant(ctx, "missing-role", "u1")
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	_, err = svc.Grant(ctx, role.ID, "u1")
	require.NoError(t, err)
	_, err = svc.Grant(ctx, role.ID, "u1")
	assert.True(t, errors.Is(err, shared.ErrConflict))

	require.NoError(t, svc.Revoke(ctx, role.ID, "u1"))
	assert.True(t, errors.Is(svc.Revoke(ctx, role.ID, "u1"), shared.ErrNotFound))
}

func TestStoreResolverAggregation(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil)
	resolver := NewStoreResolver(repo)
	ctx := context.Background()

	editMembers, _ := perm.IndexOf(perm.EditMembers)
	readHackers, _ := perm.IndexOf(perm.ReadHackers)
	readForms, _ := perm.IndexOf(perm.ReadForms)

	r1, err := svc.CreateRole(ctx, "Editors", "ref-1", bitsOnly(t, editMembers, readForms))
	require.NoError(t, err)
	r2, err := svc.CreateRole(ctx, "Readers", "ref-2", bitsOnly(t, readHackers, readForms))
	require.NoError(t, err)

	_, err = svc.Grant(ctx, r1.ID, "u1")
	require.NoError(t, err)
	_, err = svc.Grant(ctx, r2.ID, "u1")
	require.NoError(t, err)

	set, err := resolver.Resolve(ctx, "u1")
	require.NoError(t, err)
	for i := 0; i < perm.Size(); i++ {
		want := i == editMembers || i == readHackers || i == readForms
		assert.Equal(t, want, set.HasIndex(i), "bit %d", i)
	}
}

func TestStoreResolverZeroGrants(t *testing.T) {
	resolver := NewStoreResolver(newMockRepository())

	set, err := resolver.Resolve(context.Background(), "nobody")
	require.NoError(t, err)
	for i := 0; i < perm.Size(); i++ {
		assert.False(t, set.HasIndex(i))
	}
	assert.Error(t, RequireAny(set, perm.ReadMembers))
	assert.NoError(t, RequireAll(set))
}

type stubDirectory struct {
	refs map[string][]string
	err  error
}

func (s *stubDirectory) GroupRefs(ctx context.Context, principalID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.refs[principalID], nil
}

func TestGroupResolver(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	editMembers, _ := perm.IndexOf(perm.EditMembers)
	isJudge, _ := perm.IndexOf(perm.IsJudge)

	_, err := svc.CreateRole(ctx, "Editors", "discord-editors", bitsOnly(t, editMembers))
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "Judges", "discord-judges", bitsOnly(t, isJudge))
	require.NoError(t, err)

	directory := &stubDirectory{refs: map[string][]string{
		"u1": {"discord-editors", "discord-unknown"},
	}}
	resolver := NewGroupResolver(repo, directory)

	set, err := resolver.Resolve(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, set.Has(perm.EditMembers))
	assert.False(t, set.Has(perm.IsJudge))

	set, err = resolver.Resolve(ctx, "stranger")
	require.NoError(t, err)
	assert.False(t, set.Has(perm.EditMembers))

	directory.err = errors.New("identity provider down")
	_, err = resolver.Resolve(ctx, "u1")
	assert.Error(t, err)
}

// End-to-end: one role carrying only EDIT_MEMBERS, granted to one
// principal, resolves to exactly that bit and gates accordingly.
func TestResolveAndGateEndToEnd(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil)
	resolver := NewStoreResolver(repo)
	ctx := context.Background()

	idx, ok := perm.IndexOf(perm.EditMembers)
	require.True(t, ok)

	role, err := svc.CreateRole(ctx, "Member Editors", "ref-editors", bitsOnly(t, idx))
	require.NoError(t, err)
	_, err = svc.Grant(ctx, role.ID, "u1")
	require.NoError(t, err)

	set, err := resolver.Resolve(ctx, "u1")
	require.NoError(t, err)
	for i := 0; i < perm.Size(); i++ {
		assert.Equal(t, i == idx, set.HasIndex(i), "bit %d", i)
	}
	assert.NoError(t, RequireAll(set, perm.EditMembers))
	err = RequireAll(set, perm.ReadHackers)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}
