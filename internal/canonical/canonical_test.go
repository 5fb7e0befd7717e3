package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "guid segment",
			in:   "https://graph.microsoft.com/v1.0/users/11111111-1111-1111-1111-111111111111",
			want: "https://graph.microsoft.com/v1.0/users/{id}",
		},
		{
			name: "query string stripped",
			in:   "https://graph.microsoft.com/v1.0/users?$select=id&$top=5",
			want: "https://graph.microsoft.com/v1.0/users",
		},
		{
			name: "double slashes collapsed",
			in:   "https://graph.microsoft.com/v1.0//users//11111111-1111-1111-1111-111111111111",
			want: "https://graph.microsoft.com/v1.0/users/{id}",
		},
		{
			name: "me rewritten to users id",
			in:   "https://graph.microsoft.com/v1.0/me/messages",
			want: "https://graph.microsoft.com/v1.0/users/{id}/messages",
		},
		{
			name: "email segment",
			in:   "https://graph.microsoft.com/beta/users/jdoe@contoso.com/drive",
			want: "https://graph.microsoft.com/beta/users/{id}/drive",
		},
		{
			name: "odata function call in last segment",
			in:   "https://graph.microsoft.com/v1.0/communications/callRecords/getDirectRoutingCalls(fromDateTime=2019-11-01,toDateTime=2019-12-01)",
			want: "https://graph.microsoft.com/v1.0/communications/callRecords/getDirectRoutingCalls/{id}",
		},
		{
			name: "version segment survives digit rule",
			in:   "https://graph.microsoft.com/v1.0/servicePrincipals",
			want: "https://graph.microsoft.com/v1.0/servicePrincipals",
		},
		{
			name: "trailing slash removed",
			in:   "https://graph.microsoft.com/v1.0/users/",
			want: "https://graph.microsoft.com/v1.0/users",
		},
		{
			name: "relative uri",
			in:   "/v1.0/groups/0fd6a21f-1f29-4a31-8c4f-d5f8a2f9a001/members",
			want: "/v1.0/groups/{id}/members",
		},
		{
			name: "whitespace trimmed only for malformed input",
			in:   "  https://graph.microsoft.com  ",
			want: "https://graph.microsoft.com",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.in))
		})
	}
}

// Канонизация обязана быть идемпотентной: повторный прогон не меняет результат.
func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"https://graph.microsoft.com/v1.0/users/11111111-1111-1111-1111-111111111111",
		"https://graph.microsoft.com/v1.0/me/messages/AAMkAGI2T0000AAA=/attachments",
		"https://graph.microsoft.com/beta/users/jdoe@contoso.com",
		"https://graph.microsoft.com/v1.0/reports/getEmailActivityCounts(period='D7')",
		"/v1.0//drives//b!x1234//items",
		"not a uri at all",
		"",
	}

	for _, in := range inputs {
		once := Canonicalize(in)
		twice := Canonicalize(once)
		require.Equal(t, once, twice, "input %q", in)
	}
}

func TestSplit(t *testing.T) {
	v, p, ok := Split("https://graph.microsoft.com/v1.0/users/{id}")
	require.True(t, ok)
	assert.Equal(t, "v1.0", v)
	assert.Equal(t, "/users/{id}", p)

	v, p, ok = Split("/beta/servicePrincipals")
	require.True(t, ok)
	assert.Equal(t, "beta", v)
	assert.Equal(t, "/servicePrincipals", p)

	// Не Graph-вызов: версии нет вообще.
	_, _, ok = Split("https://login.microsoftonline.com/common/oauth2/token")
	require.False(t, ok)
}

func TestTemplatePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/users/{user-id}/messages/{message-id}", "/users/{id}/messages/{id}"},
		{"/users/{id}", "/users/{id}"},
		{"/servicePrincipals", "/servicePrincipals"},
		{"/identityGovernance/termsOfUse/agreements/{agreement-id}", "/identityGovernance/termsOfUse/agreements/{id}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TemplatePath(tt.in))
	}
}
