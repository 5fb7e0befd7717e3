package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
)

// RunSummary — итоговый JSON прогона: машиночитаемый вход для
// внешнего рендеринга отчетов.
type RunSummary struct {
	RunID       string                    `json:"run_id"`
	StartedAt   time.Time                 `json:"started_at"`
	FinishedAt  time.Time                 `json:"finished_at"`
	WindowStart time.Time                 `json:"window_start"`
	WindowEnd   time.Time                 `json:"window_end"`
	Submitted   int                       `json:"submitted"`
	Completed   int                       `json:"completed"`
	Reports     []domain.AssessmentReport `json:"reports"`
}

// WriteSummary пишет сводку прогона в <dir>/assessment-<runID>.json.
func WriteSummary(dir string, summary RunSummary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("assessment-%s.json", summary.RunID))

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	return path, nil
}
