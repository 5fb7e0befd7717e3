package permmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
)

func testIndex() *Index {
	return NewIndex(map[string][]domain.EndpointEntry{
		domain.VersionV1: {
			{
				// Плейсхолдер справочника в "длинной" форме.
				CanonicalPath: "/users/{user-id}/messages",
				Methods: map[string][]domain.PermissionDescriptor{
					"GET": {{Name: "Mail.Read", ScopeType: domain.ScopeApplication, IsLeastPrivileged: true}},
				},
			},
			{
				CanonicalPath: "/users",
				Methods: map[string][]domain.PermissionDescriptor{
					"GET": {{Name: "User.Read.All", ScopeType: domain.ScopeApplication}},
				},
			},
		},
		domain.VersionBeta: {
			{
				CanonicalPath: "/servicePrincipals/{id}",
				Methods: map[string][]domain.PermissionDescriptor{
					"PATCH": {{Name: "Application.ReadWrite.All", ScopeType: domain.ScopeApplication}},
				},
			},
		},
	})
}

func TestIndexFindExactMatch(t *testing.T) {
	idx := testIndex()

	// Путь канонизатора ({id}) совпадает с плейсхолдером справочника ({user-id}).
	e, ok := idx.Find(domain.VersionV1, "/users/{id}/messages")
	require.True(t, ok)
	assert.Equal(t, "/users/{id}/messages", e.CanonicalPath)
	assert.Len(t, e.PermissionsForMethod("GET"), 1)

	e, ok = idx.Find(domain.VersionBeta, "/servicePrincipals/{id}")
	require.True(t, ok)
	assert.NotNil(t, e.PermissionsForMethod("PATCH"))
}

func TestIndexNoFuzzyMatching(t *testing.T) {
	idx := testIndex()

	// Префиксных совпадений нет: /users/{id} не является записью /users.
	_, ok := idx.Find(domain.VersionV1, "/users/{id}")
	assert.False(t, ok)

	// Версии изолированы друг от друга.
	_, ok = idx.Find(domain.VersionBeta, "/users")
	assert.False(t, ok)

	_, ok = idx.Find("v2.0", "/users")
	assert.False(t, ok)
}

func TestIndexMergesDuplicatePaths(t *testing.T) {
	idx := NewIndex(map[string][]domain.EndpointEntry{
		domain.VersionV1: {
			{
				CanonicalPath: "/groups/{group-id}",
				Methods: map[string][]domain.PermissionDescriptor{
					"GET": {{Name: "Group.Read.All", ScopeType: domain.ScopeApplication}},
				},
			},
			{
				CanonicalPath: "/groups/{id}",
				Methods: map[string][]domain.PermissionDescriptor{
					"DELETE": {{Name: "Group.ReadWrite.All", ScopeType: domain.ScopeApplication}},
				},
			},
		},
	})

	e, ok := idx.Find(domain.VersionV1, "/groups/{id}")
	require.True(t, ok)
	assert.NotEmpty(t, e.PermissionsForMethod("GET"))
	assert.NotEmpty(t, e.PermissionsForMethod("DELETE"))
}

// Запись без поля methods в JSON дает nil-карту; слияние дубликата
// в такую запись не должно паниковать.
func TestIndexMergesIntoEntryWithoutMethods(t *testing.T) {
	idx := NewIndex(map[string][]domain.EndpointEntry{
		domain.VersionV1: {
			{CanonicalPath: "/teams/{id}"}, // Methods == nil
			{
				CanonicalPath: "/teams/{team-id}",
				Methods: map[string][]domain.PermissionDescriptor{
					"GET": {{Name: "Team.ReadBasic.All", ScopeType: domain.ScopeApplication}},
				},
			},
		},
	})

	e, ok := idx.Find(domain.VersionV1, "/teams/{id}")
	require.True(t, ok)
	assert.NotEmpty(t, e.PermissionsForMethod("GET"))
}
