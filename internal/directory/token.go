package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ClientCredentials — источник app-only токенов (OAuth2 client credentials).
// Токен кэшируется и обновляется заранее, до истечения.
type ClientCredentials struct {
	httpClient *http.Client
	authority  string // https://login.microsoftonline.com
	tenantID   string
	clientID   string
	secret     string
	scope      string
	logger     *zap.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewClientCredentials(authority, tenantID, clientID, secret, scope string, logger *zap.Logger) *ClientCredentials {
	return &ClientCredentials{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		authority:  strings.TrimSuffix(authority, "/"),
		tenantID:   tenantID,
		clientID:   clientID,
		secret:     secret,
		scope:      scope,
		logger:     logger.Named("token-source"),
	}
}

// Token отдает закэшированный токен или запрашивает новый.
// Запас в минуту до exp страхует от гонки с проверкой на стороне сервиса.
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.expiresAt) > time.Minute {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.secret},
		"scope":         {c.scope},
	}

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.authority, c.tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("token response read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, truncate(body, 256))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("token response parse: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access_token")
	}

	c.token = tr.AccessToken
	c.expiresAt = expiryOf(tr.AccessToken, tr.ExpiresIn)

	c.logger.Debug("token refreshed", zap.Time("expires_at", c.expiresAt))
	return c.token, nil
}

// expiryOf берет exp из клейма токена, если тот парсится как JWT;
// иначе доверяет expires_in из ответа.
func expiryOf(token string, expiresIn int64) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
