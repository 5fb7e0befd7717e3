package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"github.com/xela07ax/graph-privilege-auditor/internal/match"
	"github.com/xela07ax/graph-privilege-auditor/internal/permmap"
	"github.com/xela07ax/graph-privilege-auditor/internal/scheduler"
	"go.uber.org/zap"
)

func testAnalyzer() *Analyzer {
	idx := permmap.NewIndex(map[string][]domain.EndpointEntry{
		domain.VersionV1: {
			{
				CanonicalPath: "/users/{user-id}/messages",
				Methods: map[string][]domain.PermissionDescriptor{
					"GET": {{Name: "Mail.Read", ScopeType: domain.ScopeApplication, IsLeastPrivileged: true}},
				},
			},
			{
				CanonicalPath: "/users",
				Methods: map[string][]domain.PermissionDescriptor{
					"GET": {{Name: "User.ReadBasic.All", ScopeType: domain.ScopeApplication, IsLeastPrivileged: true}},
				},
			},
		},
	})
	return New(match.NewMatcher(idx), "run-1", zap.NewNop())
}

func TestAnalyzeHappyPath(t *testing.T) {
	a := testAnalyzer()

	report := a.Analyze(scheduler.Outcome{
		App: domain.Application{
			ID:                 "sp-1",
			AppID:              "app-1",
			DisplayName:        "Mail Sync",
			CurrentPermissions: []string{"Mail.Read", "Mail.ReadWrite", "Directory.Read.All"},
		},
		Activities: []domain.RawActivity{
			// Две разных сущности — один канонический ключ.
			{Method: "GET", URI: "https://graph.microsoft.com/v1.0/users/1111/messages"},
			{Method: "GET", URI: "https://graph.microsoft.com/v1.0/users/2222/messages?$top=10"},
			{Method: "GET", URI: "https://graph.microsoft.com/v1.0/users"},
			// Не Graph — выпадает целиком.
			{Method: "GET", URI: "https://example.com/health"},
			// Graph, но записи в справочнике нет — уходит в unmatched.
			{Method: "POST", URI: "https://graph.microsoft.com/v1.0/exotic/11/resource"},
		},
	})

	assert.Equal(t, "run-1", report.RunID)
	assert.Empty(t, report.CollectError)

	// 5 сырых вызовов -> 3 канонических ключа (dedup + выпавший не-Graph).
	assert.Len(t, report.Activity, 3)
	assert.Equal(t, 3, report.TotalActivities)
	assert.Equal(t, 2, report.MatchedActivities)
	assert.False(t, report.MatchedAllActivity)
	require.Len(t, report.UnmatchedActivities, 1)
	assert.Equal(t, "/exotic/{id}/resource", report.UnmatchedActivities[0].Path)

	names := make([]string, 0)
	for _, s := range report.OptimalPermissions {
		names = append(names, s.Descriptor.Name)
		assert.GreaterOrEqual(t, s.ActivitiesCovered, 1)
	}
	assert.ElementsMatch(t, []string{"Mail.Read", "User.ReadBasic.All"}, names)

	// Дельта: Mail.ReadWrite и Directory.Read.All лишние, User.ReadBasic.All не хватает.
	assert.Equal(t, []string{"Directory.Read.All", "Mail.ReadWrite"}, report.ExcessPermissions)
	assert.Equal(t, []string{"User.ReadBasic.All"}, report.RequiredPermissions)
}

func TestAnalyzeCollectFailure(t *testing.T) {
	a := testAnalyzer()

	report := a.Analyze(scheduler.Outcome{
		App: domain.Application{ID: "sp-2", AppID: "app-2"},
		Err: errors.New("workspace unreachable"),
	})

	assert.Equal(t, "workspace unreachable", report.CollectError)
	assert.Empty(t, report.Activity)
	assert.Empty(t, report.OptimalPermissions)
	assert.Zero(t, report.TotalActivities)
}

func TestAnalyzeEmptyActivity(t *testing.T) {
	a := testAnalyzer()

	report := a.Analyze(scheduler.Outcome{
		App: domain.Application{ID: "sp-3", AppID: "app-3", CurrentPermissions: []string{"User.Read.All"}},
	})

	assert.Empty(t, report.CollectError)
	assert.Zero(t, report.TotalActivities)
	assert.True(t, report.MatchedAllActivity)
	// Трафика нет — все текущие гранты формально лишние.
	assert.Equal(t, []string{"User.Read.All"}, report.ExcessPermissions)
	assert.Empty(t, report.RequiredPermissions)
}
