package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/graph-privilege-auditor/internal/console/handler"
	"github.com/xela07ax/graph-privilege-auditor/internal/console/service"
	"github.com/xela07ax/graph-privilege-auditor/internal/infra"
	"github.com/xela07ax/graph-privilege-auditor/internal/infra/auth"
	"go.uber.org/zap"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Интерфейс для проверки токенов (RS256)
	// Реализуется через embedding BaseValidator в AssessmentService
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	authHandler       *handler.AuthHandler       // /auth/token
	assessmentHandler *handler.AssessmentHandler // /v1/assessments
	dashHandler       *handler.DashboardHandler  // /api/v1/dashboard
}

// NewConsoleServer инициализирует read-only консоль со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	assessmentService *service.AssessmentService,
	authH *handler.AuthHandler,
	assessmentH *handler.AssessmentHandler,
	dashH *handler.DashboardHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:            chi.NewRouter(),
		logger:            logger.Named("console-api"),
		cfg:               cfg,
		authValidator:     assessmentService,
		authHandler:       authH,
		assessmentHandler: assessmentH,
		dashHandler:       dashH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		// Подключаем универсальный Middleware только для этой группы
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Dashboard & Stats
		r.Get("/api/v1/dashboard/stats", s.dashHandler.GetStats)

		// Отчеты обследования (read-only: консоль ничего не меняет)
		r.Route("/v1/assessments", func(r chi.Router) {
			r.Get("/", s.assessmentHandler.List)        // Последний отчет по каждому приложению
			r.Get("/{appID}", s.assessmentHandler.Get)  // Последний отчет по приложению
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
