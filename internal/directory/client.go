// Package directory читает из каталога (Graph API) список обследуемых
// приложений и их текущие app-only гранты. Это внешний коллаборатор
// анализа: его данные нужны только для дельты "лишнее/недостающее".
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"go.uber.org/zap"
)

// graphSPAppID — well-known appId сервис-принципала Microsoft Graph:
// через его appRoles разрешаются имена грантов.
const graphSPAppID = "00000003-0000-0000-c000-000000000000"

// Reader — контракт для анализа и cmd-слоя.
type Reader interface {
	ListApplications(ctx context.Context) ([]domain.Application, error)
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	httpClient *http.Client
	endpoint   string // https://graph.microsoft.com
	tokens     tokenSource
	logger     *zap.Logger
}

func NewClient(endpoint string, tokens tokenSource, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		tokens:     tokens,
		logger:     logger.Named("directory"),
	}
}

type servicePrincipal struct {
	ID          string `json:"id"`
	AppID       string `json:"appId"`
	DisplayName string `json:"displayName"`
	AppRoles    []struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"appRoles"`
}

type appRoleAssignment struct {
	AppRoleID  string `json:"appRoleId"`
	ResourceID string `json:"resourceId"`
}

// ListApplications возвращает приложения тенанта с уже разрешенными
// именами текущих Graph-грантов (appRoleId -> value через appRoles
// сервис-принципала Graph).
func (c *Client) ListApplications(ctx context.Context) ([]domain.Application, error) {
	roleNames, graphSPID, err := c.graphAppRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory: resolve graph app roles: %w", err)
	}

	sps, err := c.listServicePrincipals(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory: list service principals: %w", err)
	}

	out := make([]domain.Application, 0, len(sps))
	for _, sp := range sps {
		grants, err := c.currentGrants(ctx, sp.ID, graphSPID, roleNames)
		if err != nil {
			// Недочитанные гранты не повод выкидывать приложение из обследования:
			// дельта будет посчитана по пустому списку и это видно в отчете.
			c.logger.Warn("failed to read current grants",
				zap.String("app_id", sp.AppID),
				zap.Error(err))
		}
		out = append(out, domain.Application{
			ID:                 sp.ID,
			AppID:              sp.AppID,
			DisplayName:        sp.DisplayName,
			CurrentPermissions: grants,
		})
	}

	c.logger.Info("directory listing complete", zap.Int("applications", len(out)))
	return out, nil
}

// graphAppRoles возвращает карту appRoleId -> имя разрешения и objectId
// сервис-принципала Graph в этом тенанте.
func (c *Client) graphAppRoles(ctx context.Context) (map[string]string, string, error) {
	q := url.Values{
		"$filter": {fmt.Sprintf("appId eq '%s'", graphSPAppID)},
		"$select": {"id,appId,displayName,appRoles"},
	}
	u := fmt.Sprintf("%s/v1.0/servicePrincipals?%s", c.endpoint, q.Encode())

	var page struct {
		Value []servicePrincipal `json:"value"`
	}
	if err := c.get(ctx, u, &page); err != nil {
		return nil, "", err
	}
	if len(page.Value) == 0 {
		return nil, "", fmt.Errorf("graph service principal not found in tenant")
	}

	sp := page.Value[0]
	roles := make(map[string]string, len(sp.AppRoles))
	for _, r := range sp.AppRoles {
		roles[r.ID] = r.Value
	}
	return roles, sp.ID, nil
}

func (c *Client) listServicePrincipals(ctx context.Context) ([]servicePrincipal, error) {
	q := url.Values{
		"$filter": {"servicePrincipalType eq 'Application'"},
		"$select": {"id,appId,displayName"},
		"$top":    {"999"},
	}
	u := fmt.Sprintf("%s/v1.0/servicePrincipals?%s", c.endpoint, q.Encode())

	var out []servicePrincipal
	for u != "" {
		var page struct {
			Value    []servicePrincipal `json:"value"`
			NextLink string             `json:"@odata.nextLink"`
		}
		if err := c.get(ctx, u, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Value...)
		u = page.NextLink
	}
	return out, nil
}

// currentGrants собирает имена app-only грантов приложения на ресурс Graph.
func (c *Client) currentGrants(ctx context.Context, spID, graphSPID string, roleNames map[string]string) ([]string, error) {
	u := fmt.Sprintf("%s/v1.0/servicePrincipals/%s/appRoleAssignments?%s",
		c.endpoint, url.PathEscape(spID), url.Values{"$top": {"999"}}.Encode())

	var grants []string
	for u != "" {
		var page struct {
			Value    []appRoleAssignment `json:"value"`
			NextLink string              `json:"@odata.nextLink"`
		}
		if err := c.get(ctx, u, &page); err != nil {
			return nil, err
		}
		for _, a := range page.Value {
			if a.ResourceID != graphSPID {
				continue // гранты на другие ресурсы нас не интересуют
			}
			if name, ok := roleNames[a.AppRoleID]; ok {
				grants = append(grants, name)
			}
		}
		u = page.NextLink
	}
	return grants, nil
}

// get — GET с bearer-токеном и ретраями на транзиентные сбои.
func (c *Client) get(ctx context.Context, rawURL string, into any) error {
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
	).Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("graph returned %d for %s", resp.StatusCode, rawURL)
		}

		return json.Unmarshal(body, into)
	})
}
