package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"github.com/xela07ax/graph-privilege-auditor/internal/infra/auth"
	"go.uber.org/zap"
)

// AssessmentRepository описывает требования к хранилищу отчетов обследования.
type AssessmentRepository interface {
	ListLatest(ctx context.Context) ([]domain.AssessmentReport, error)
	GetByAppID(ctx context.Context, appID string) (*domain.AssessmentReport, error)
	GetTenantStats(ctx context.Context) (*domain.TenantStats, error)
}

type AssessmentService struct {
	*auth.BaseValidator
	repo   AssessmentRepository
	logger *zap.Logger
}

func NewAssessmentService(repo AssessmentRepository, validator *auth.BaseValidator, logger *zap.Logger) *AssessmentService {
	return &AssessmentService{
		BaseValidator: validator,
		repo:          repo,
		logger:        logger.Named("assessment-service"),
	}
}

// ListAssessments возвращает последний отчет по каждому приложению тенанта.
func (s *AssessmentService) ListAssessments(ctx context.Context) ([]domain.AssessmentReport, error) {
	reports, err := s.repo.ListLatest(ctx)
	if err != nil {
		s.logger.Error("failed to list assessments from repository", zap.Error(err))
		return nil, fmt.Errorf("service: could not fetch assessments: %w", err)
	}

	// Гарантируем, что фронтенд получит пустой массив [], а не null,
	// если прогонов еще не было.
	if reports == nil {
		return []domain.AssessmentReport{}, nil
	}

	s.logger.Debug("assessments listed successfully", zap.Int("count", len(reports)))
	return reports, nil
}

// GetAssessment возвращает последний отчет для приложения, nil если прогонов не было.
func (s *AssessmentService) GetAssessment(ctx context.Context, appID string) (*domain.AssessmentReport, error) {
	report, err := s.repo.GetByAppID(ctx, appID)
	if err != nil {
		s.logger.Error("failed to fetch assessment", zap.String("app_id", appID), zap.Error(err))
		return nil, err
	}
	return report, nil
}

func (s *AssessmentService) GetTenantStats(ctx context.Context) (*domain.TenantStats, error) {
	// здесь можно добавить кэширование в Redis на 1 минуту,
	// чтобы не нагружать Postgres тяжелыми аналитическими запросами.
	return s.repo.GetTenantStats(ctx)
}
