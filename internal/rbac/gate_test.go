package rbac

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forge-club/forge/internal/perm"
	"github.com/forge-club/forge/internal/shared"
	_ "github.com/forge-club/forge/testing"
)

func vectorWithBits(t *testing.T, indices ...int) perm.Vector {
	t.Helper()
	raw := []byte(strings.Repeat("0", perm.Size()))
	for _, i := range indices {
		raw[i] = '1'
	}
	v, err := perm.ParseVector(string(raw))
	require.NoError(t, err)
	return v
}

func setWithBits(t *testing.T, indices ...int) *perm.Set {
	t.Helper()
	set := perm.NewSet()
	set.Or(vectorWithBits(t, indices...))
	return set
}

func TestRequireAll(t *testing.T) {
	editIdx, _ := perm.IndexOf(perm.EditMembers)
	readIdx, _ := perm.IndexOf(perm.ReadMembers)
	set := setWithBits(t, editIdx, readIdx)

	assert.NoError(t, RequireAll(set, perm.EditMembers))
	assert.NoError(t, RequireAll(set, perm.EditMembers, perm.ReadMembers))

	err := RequireAll(set, perm.EditMembers, perm.ReadHackers)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestRequireAny(t *testing.T) {
	readIdx, _ := perm.IndexOf(perm.ReadForms)
	set := setWithBits(t, readIdx)

	assert.NoError(t, RequireAny(set, perm.ReadForms, perm.EditForms))

	err := RequireAny(set, perm.EditForms, perm.EmailPortal)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestEmptyRequirementListPasses(t *testing.T) {
	empty := perm.NewSet()
	assert.NoError(t, RequireAll(empty))
	assert.NoError(t, RequireAny(empty))
}

func TestZeroGrantsFailEverything(t *testing.T) {
	empty := perm.NewSet()
	for _, def := range perm.All() {
		assert.Error(t, RequireAll(empty, def.Name), def.Name)
		assert.Error(t, RequireAny(empty, def.Name), def.Name)
	}
}

func TestOfficerOverride(t *testing.T) {
	officerIdx, _ := perm.IndexOf(perm.IsOfficer)
	officer := setWithBits(t, officerIdx)

	// The officer bit satisfies every check, including permissions no role
	// explicitly grants.
	for _, def := range perm.All() {
		assert.NoError(t, RequireAll(officer, def.Name), def.Name)
		assert.NoError(t, RequireAny(officer, def.Name), def.Name)
	}
	assert.NoError(t, RequireAll(officer, perm.EditForms, perm.EmailPortal, perm.CheckinHackEvent))
}

func TestUnknownPermissionNamePanics(t *testing.T) {
	set := perm.NewSet()
	assert.Panics(t, func() { _ = RequireAll(set, "NOPE") })
	assert.Panics(t, func() { _ = RequireAny(set, "NOPE") })
}
