package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"github.com/xela07ax/graph-privilege-auditor/internal/permmap"
)

func buildIndex(descriptors []domain.PermissionDescriptor) *permmap.Index {
	return permmap.NewIndex(map[string][]domain.EndpointEntry{
		domain.VersionV1: {
			{
				CanonicalPath: "/users",
				Methods:       map[string][]domain.PermissionDescriptor{"GET": descriptors},
			},
		},
	})
}

func TestMatchPrefersLeastPrivileged(t *testing.T) {
	m := NewMatcher(buildIndex([]domain.PermissionDescriptor{
		{Name: "User.Read.All", ScopeType: domain.ScopeApplication, IsLeastPrivileged: false},
		{Name: "User.ReadBasic.All", ScopeType: domain.ScopeApplication, IsLeastPrivileged: true},
	}))

	res := m.Match(domain.CanonicalActivity{Method: "GET", Version: domain.VersionV1, Path: "/users"})
	require.True(t, res.IsMatched)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "User.ReadBasic.All", res.Candidates[0].Name)
}

func TestMatchFallsBackToAllApplication(t *testing.T) {
	m := NewMatcher(buildIndex([]domain.PermissionDescriptor{
		{Name: "User.Read.All", ScopeType: domain.ScopeApplication, IsLeastPrivileged: false},
	}))

	res := m.Match(domain.CanonicalActivity{Method: "GET", Version: domain.VersionV1, Path: "/users"})
	require.True(t, res.IsMatched)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "User.Read.All", res.Candidates[0].Name)
}

func TestMatchNeverSurfacesDelegated(t *testing.T) {
	m := NewMatcher(buildIndex([]domain.PermissionDescriptor{
		{Name: "User.Read", ScopeType: domain.ScopeDelegated, IsLeastPrivileged: true},
		{Name: "User.Read.All", ScopeType: domain.ScopeApplication},
	}))

	res := m.Match(domain.CanonicalActivity{Method: "GET", Version: domain.VersionV1, Path: "/users"})
	require.True(t, res.IsMatched)
	for _, c := range res.Candidates {
		assert.Equal(t, domain.ScopeApplication, c.ScopeType)
	}

	// Только Delegated-дескрипторы: совпадение есть, кандидатов нет.
	m = NewMatcher(buildIndex([]domain.PermissionDescriptor{
		{Name: "User.Read", ScopeType: domain.ScopeDelegated, IsLeastPrivileged: true},
	}))
	res = m.Match(domain.CanonicalActivity{Method: "GET", Version: domain.VersionV1, Path: "/users"})
	assert.True(t, res.IsMatched)
	assert.Empty(t, res.Candidates)
}

func TestMatchUnknownPathOrMethod(t *testing.T) {
	m := NewMatcher(buildIndex([]domain.PermissionDescriptor{
		{Name: "User.Read.All", ScopeType: domain.ScopeApplication},
	}))

	res := m.Match(domain.CanonicalActivity{Method: "GET", Version: domain.VersionV1, Path: "/groups"})
	assert.False(t, res.IsMatched)
	assert.Empty(t, res.Candidates)

	res = m.Match(domain.CanonicalActivity{Method: "DELETE", Version: domain.VersionV1, Path: "/users"})
	assert.False(t, res.IsMatched)
	assert.Empty(t, res.Candidates)
}

func TestFromRaw(t *testing.T) {
	m := NewMatcher(buildIndex(nil))

	act, ok := m.FromRaw(domain.RawActivity{
		Method: "GET",
		URI:    "https://graph.microsoft.com/v1.0/users/11111111-1111-1111-1111-111111111111?$select=id",
	})
	require.True(t, ok)
	assert.Equal(t, domain.CanonicalActivity{Method: "GET", Version: "v1.0", Path: "/users/{id}"}, act)

	// Не Graph-вызов выпадает из анализа целиком.
	_, ok = m.FromRaw(domain.RawActivity{Method: "GET", URI: "https://example.com/api/items/42"})
	assert.False(t, ok)
}
