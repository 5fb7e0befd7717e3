package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
)

type AssessmentRepo struct {
	pool *pgxpool.Pool
}

func NewAssessmentRepo(ctx context.Context, connString string) (*AssessmentRepo, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	return &AssessmentRepo{pool: pool}, nil
}

func (r *AssessmentRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *AssessmentRepo) Close() {
	r.pool.Close()
}

// WriteBatch сохраняет пачку отчетов одним INSERT-ом.
// Запрос строится динамически, по числу отчетов в пачке.
func (r *AssessmentRepo) WriteBatch(ctx context.Context, reports []domain.AssessmentReport) error {
	if len(reports) == 0 {
		return nil
	}

	// Количество колонок в таблице assessments
	const numFields = 13
	placeholderStr := ""
	vals := make([]interface{}, 0, len(reports)*numFields)

	for i, rep := range reports {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10, p+11, p+12, p+13)

		optimal, _ := json.Marshal(rep.OptimalPermissions)
		unmatched, _ := json.Marshal(rep.UnmatchedActivities)
		excess, _ := json.Marshal(rep.ExcessPermissions)
		required, _ := json.Marshal(rep.RequiredPermissions)

		vals = append(vals,
			rep.ID, rep.RunID, rep.Application.ID, rep.Application.AppID, rep.Application.DisplayName,
			rep.TotalActivities, rep.MatchedActivities, rep.MatchedAllActivity,
			optimal, unmatched, excess, required,
			rep.GeneratedAt,
		)
	}

	query := fmt.Sprintf(
		`INSERT INTO assessments
			(id, run_id, sp_id, app_id, display_name,
			 total_activities, matched_activities, matched_all,
			 optimal_permissions, unmatched_activities, excess_permissions, required_permissions,
			 generated_at)
		 VALUES %s`,
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.pool.Exec(ctx, query, vals...)
	return err
}

const assessmentColumns = `id, run_id, sp_id, app_id, display_name,
	total_activities, matched_activities, matched_all,
	optimal_permissions, unmatched_activities, excess_permissions, required_permissions,
	generated_at`

// ListLatest возвращает последний отчет по каждому приложению.
func (r *AssessmentRepo) ListLatest(ctx context.Context) ([]domain.AssessmentReport, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT ON (app_id) %s
		FROM assessments
		ORDER BY app_id, generated_at DESC`, assessmentColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AssessmentReport
	for rows.Next() {
		rep, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// GetByAppID возвращает последний отчет для приложения.
func (r *AssessmentRepo) GetByAppID(ctx context.Context, appID string) (*domain.AssessmentReport, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM assessments
		WHERE app_id = $1
		ORDER BY generated_at DESC
		LIMIT 1`, assessmentColumns)

	rows, err := r.pool.Query(ctx, query, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	rep, err := scanAssessment(rows)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// GetTenantStats агрегирует последние отчеты для дашборда консоли.
func (r *AssessmentRepo) GetTenantStats(ctx context.Context) (*domain.TenantStats, error) {
	s := &domain.TenantStats{}

	err := r.pool.QueryRow(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (app_id) *
			FROM assessments
			ORDER BY app_id, generated_at DESC
		)
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE matched_all),
			COALESCE(SUM(jsonb_array_length(excess_permissions)), 0),
			COALESCE(SUM(jsonb_array_length(required_permissions)), 0),
			COALESCE(SUM(matched_activities)::float / NULLIF(SUM(total_activities), 0), 0)
		FROM latest`).Scan(
		&s.AppsAssessed,
		&s.AppsFullyMatched,
		&s.ExcessPermissions,
		&s.RequiredPermissions,
		&s.MatchedRatio,
	)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (app_id) *
			FROM assessments
			ORDER BY app_id, generated_at DESC
		)
		SELECT COUNT(*) FILTER (WHERE total_activities = 0 AND NOT matched_all)
		FROM latest`).Scan(&s.AppsFailed)

	return s, err
}

func scanAssessment(rows pgx.Rows) (domain.AssessmentReport, error) {
	var rep domain.AssessmentReport
	var optimal, unmatched, excess, required []byte

	err := rows.Scan(
		&rep.ID, &rep.RunID, &rep.Application.ID, &rep.Application.AppID, &rep.Application.DisplayName,
		&rep.TotalActivities, &rep.MatchedActivities, &rep.MatchedAllActivity,
		&optimal, &unmatched, &excess, &required,
		&rep.GeneratedAt,
	)
	if err != nil {
		return rep, err
	}

	json.Unmarshal(optimal, &rep.OptimalPermissions)
	json.Unmarshal(unmatched, &rep.UnmatchedActivities)
	json.Unmarshal(excess, &rep.ExcessPermissions)
	json.Unmarshal(required, &rep.RequiredPermissions)

	return rep, nil
}
