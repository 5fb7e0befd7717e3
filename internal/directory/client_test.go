package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticToken string

func (t staticToken) Token(context.Context) (string, error) { return string(t), nil }

// Полный обход каталога против фейкового Graph: разрешение appRoles,
// листинг service principals, чтение грантов. Сервер строгий — любой
// сырой пробел в query или задвоенный сегмент версии означает 400.
func TestListApplications(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// HTTP request line с неэкранированным пробелом сюда не доедет,
		// но ловим и частичные регрессии кодирования.
		require.NotContains(t, r.URL.RawQuery, " ")
		require.NotContains(t, r.URL.Path, "/v1.0/v1.0")
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v1.0/servicePrincipals" && strings.HasPrefix(r.URL.Query().Get("$filter"), "appId eq"):
			assert.Equal(t, "appId eq '00000003-0000-0000-c000-000000000000'", r.URL.Query().Get("$filter"))
			json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]any{{
					"id":          "graph-sp",
					"appId":       "00000003-0000-0000-c000-000000000000",
					"displayName": "Microsoft Graph",
					"appRoles": []map[string]string{
						{"id": "role-1", "value": "Mail.Read"},
						{"id": "role-2", "value": "User.Read.All"},
					},
				}},
			})

		case r.URL.Path == "/v1.0/servicePrincipals":
			assert.Equal(t, "servicePrincipalType eq 'Application'", r.URL.Query().Get("$filter"))
			// Две страницы: проверяем следование за @odata.nextLink.
			if r.URL.Query().Get("page") == "2" {
				json.NewEncoder(w).Encode(map[string]any{
					"value": []map[string]string{{"id": "sp-2", "appId": "app-2", "displayName": "Beta"}},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"value":           []map[string]string{{"id": "sp-1", "appId": "app-1", "displayName": "Alpha"}},
				"@odata.nextLink": srv.URL + "/v1.0/servicePrincipals?" + r.URL.RawQuery + "&page=2",
			})

		case r.URL.Path == "/v1.0/servicePrincipals/sp-1/appRoleAssignments":
			json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]string{
					{"appRoleId": "role-1", "resourceId": "graph-sp"},
					{"appRoleId": "role-x", "resourceId": "other-sp"}, // чужой ресурс — мимо
				},
			})

		case r.URL.Path == "/v1.0/servicePrincipals/sp-2/appRoleAssignments":
			json.NewEncoder(w).Encode(map[string]any{"value": []any{}})

		default:
			http.Error(w, "unexpected request: "+r.URL.String(), http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, staticToken("tok"), zap.NewNop())

	apps, err := c.ListApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 2)

	assert.Equal(t, "app-1", apps[0].AppID)
	assert.Equal(t, []string{"Mail.Read"}, apps[0].CurrentPermissions)
	assert.Equal(t, "app-2", apps[1].AppID)
	assert.Empty(t, apps[1].CurrentPermissions)
}

func TestListApplicationsFailsWithoutGraphSP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value": []}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, staticToken("tok"), zap.NewNop())

	_, err := c.ListApplications(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph service principal not found")
}
