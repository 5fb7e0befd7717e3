package permmap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"go.uber.org/zap"
)

// documentFile — формат пре-экспортированного справочника разрешений.
// Экспортер выгружает по одному файлу на версию API.
type documentFile struct {
	Version   string                 `json:"version"`
	Endpoints []domain.EndpointEntry `json:"endpoints"`
}

// Loader читает справочники с диска, подпирая их кэшем в Redis:
// распарсенный документ большой, а меняется редко. Потеря кэша —
// не ошибка, просто перечитаем файл.
type Loader struct {
	cache  *DocumentCache // может быть nil, тогда только файлы
	logger *zap.Logger
}

func NewLoader(cache *DocumentCache, logger *zap.Logger) *Loader {
	return &Loader{cache: cache, logger: logger.Named("permmap-loader")}
}

// Load собирает коллекции записей для переданных версий.
// paths: версия -> путь к файлу документа.
func (l *Loader) Load(ctx context.Context, paths map[string]string) (map[string][]domain.EndpointEntry, error) {
	docs := make(map[string][]domain.EndpointEntry, len(paths))

	for version, path := range paths {
		if l.cache != nil {
			if entries, ok := l.cache.Get(ctx, version); ok {
				l.logger.Debug("permission map served from cache",
					zap.String("version", version),
					zap.Int("entries", len(entries)))
				docs[version] = entries
				continue
			}
		}

		entries, err := loadFile(path, version)
		if err != nil {
			return nil, err
		}
		docs[version] = entries

		if l.cache != nil {
			l.cache.Put(ctx, version, entries)
		}

		l.logger.Info("permission map loaded",
			zap.String("version", version),
			zap.String("file", path),
			zap.Int("entries", len(entries)))
	}

	return docs, nil
}

func loadFile(path, wantVersion string) ([]domain.EndpointEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("permmap: read %s: %w", path, err)
	}

	var doc documentFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("permmap: parse %s: %w", path, err)
	}

	if doc.Version != "" && doc.Version != wantVersion {
		return nil, fmt.Errorf("permmap: %s declares version %q, expected %q", path, doc.Version, wantVersion)
	}

	return doc.Endpoints, nil
}
