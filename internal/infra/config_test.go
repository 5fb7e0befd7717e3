package infra

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Без config.yaml конфигурация собирается из дефолтов — проверяем те,
// что участвуют в построении внешних URL.
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	// Клиент каталога сам добавляет /v1.0: версия в endpoint задвоила бы путь.
	assert.False(t, strings.HasSuffix(cfg.Directory.Endpoint, "/v1.0"),
		"directory endpoint must not carry the version segment")
	assert.Equal(t, "https://graph.microsoft.com", cfg.Directory.Endpoint)

	assert.Equal(t, "https://api.loganalytics.io", cfg.LogStore.Endpoint)
	assert.Greater(t, cfg.Analysis.MaxEntries, 0)
	assert.Greater(t, cfg.Analysis.LookbackDays, 0)
}
