// Package logstore — клиент лог-хранилища активности Graph API
// (query API в стиле Log Analytics). Возвращает уникальные пары
// (method, uri) по одному приложению за временное окно.
package logstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"go.uber.org/zap"
)

// QueryClient — контракт, который потребляет коллектор.
// Ошибки: ErrSizeExceeded — лечится бисекцией; все остальное —
// провал приложения без повторов на этом уровне.
type QueryClient interface {
	QueryDistinctCalls(ctx context.Context, principalID string, w domain.ActivityWindow) ([]domain.RawActivity, error)
}

// TokenSource выдает действующий bearer-токен для query API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	httpClient  *http.Client
	endpoint    string // например https://api.loganalytics.io
	workspaceID string
	tokens      TokenSource
	logger      *zap.Logger
}

func NewClient(endpoint, workspaceID string, tokens TokenSource, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		endpoint:    strings.TrimSuffix(endpoint, "/"),
		workspaceID: workspaceID,
		tokens:      tokens,
		logger:      logger.Named("logstore"),
	}
}

// Формат query API: таблицы со строками-массивами.
type queryResponse struct {
	Tables []struct {
		Name    string `json:"name"`
		Columns []struct {
			Name string `json:"name"`
		} `json:"columns"`
		Rows [][]any `json:"rows"`
	} `json:"tables"`
}

type apiError struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		InnerError *struct {
			Code string `json:"code"`
		} `json:"innererror"`
	} `json:"error"`
}

// QueryDistinctCalls запрашивает уникальные успешные вызовы приложения за окно.
// Хранилище само дедуплицирует (method, uri), но нормализует только query string
// и двойные слэши — подстановка идентификаторов остается за канонизатором.
func (c *Client) QueryDistinctCalls(ctx context.Context, principalID string, w domain.ActivityWindow) ([]domain.RawActivity, error) {
	kql := buildQuery(principalID, w.MaxEntries)

	body, err := json.Marshal(map[string]string{
		"query":    kql,
		"timespan": fmt.Sprintf("%s/%s", w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339)),
	})
	if err != nil {
		return nil, fmt.Errorf("logstore: marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/v1/workspaces/%s/query", c.endpoint, c.workspaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("logstore: build request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("logstore: acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("logstore: query failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("logstore: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyError(resp, data)
	}

	return parseRows(data)
}

// classifyError переводит ответ сервиса в ошибку нашего контракта.
func (c *Client) classifyError(resp *http.Response, data []byte) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 30 * time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &ThrottleError{
			RetryAfter: retryAfter,
			Cause:      fmt.Errorf("logstore: http 429"),
		}
	}

	var apiErr apiError
	if err := json.Unmarshal(data, &apiErr); err == nil {
		code := apiErr.Error.Code
		if apiErr.Error.InnerError != nil && apiErr.Error.InnerError.Code != "" {
			code = apiErr.Error.InnerError.Code
		}
		// Сервис различимо сообщает о превышении размера ответа.
		if strings.Contains(code, "ResponseSizeError") || strings.Contains(code, "MaxSizeExceeded") {
			return fmt.Errorf("%w: %s", ErrSizeExceeded, apiErr.Error.Message)
		}
		return fmt.Errorf("logstore: query rejected [%s]: %s", code, apiErr.Error.Message)
	}

	return fmt.Errorf("logstore: unexpected status %d", resp.StatusCode)
}

func parseRows(data []byte) ([]domain.RawActivity, error) {
	var qr queryResponse
	if err := json.Unmarshal(data, &qr); err != nil {
		return nil, fmt.Errorf("logstore: parse response: %w", err)
	}
	if len(qr.Tables) == 0 {
		// Пустой результат — легитимный исход, не ошибка.
		return nil, nil
	}

	table := qr.Tables[0]
	methodIdx, uriIdx := -1, -1
	for i, col := range table.Columns {
		switch col.Name {
		case "RequestMethod":
			methodIdx = i
		case "RequestUri":
			uriIdx = i
		}
	}
	if methodIdx < 0 || uriIdx < 0 {
		return nil, fmt.Errorf("logstore: response misses RequestMethod/RequestUri columns")
	}

	out := make([]domain.RawActivity, 0, len(table.Rows))
	for _, row := range table.Rows {
		if len(row) <= methodIdx || len(row) <= uriIdx {
			continue
		}
		method, _ := row[methodIdx].(string)
		uri, _ := row[uriIdx].(string)
		if method == "" || uri == "" {
			continue
		}
		out = append(out, domain.RawActivity{Method: method, URI: uri})
	}
	return out, nil
}

// buildQuery собирает KQL: успешные вызовы, нормализация query string
// и двойных слэшей на стороне хранилища, distinct и жесткий потолок строк.
// replace_regex исполняется движком RE2: никаких lookbehind/lookahead,
// слэш после "://" сохраняем захватом предыдущего символа.
func buildQuery(principalID string, maxEntries int) string {
	return fmt.Sprintf(`MicrosoftGraphActivityLogs
| where ServicePrincipalId == '%s'
| where ResponseStatusCode >= 200 and ResponseStatusCode < 300
| extend NormalizedUri = replace_regex(tostring(split(RequestUri, '?')[0]), @'([^:])/{2,}', @'\1/')
| project RequestMethod, RequestUri = NormalizedUri
| distinct RequestMethod, RequestUri
| take %d`, principalID, maxEntries)
}
