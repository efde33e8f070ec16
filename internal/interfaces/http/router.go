package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/manorfm/recoveryM/internal/domain"
	"github.com/manorfm/recoveryM/internal/infrastructure/config"
	"github.com/manorfm/recoveryM/internal/interfaces/http/handlers"
	"github.com/manorfm/recoveryM/internal/interfaces/http/middleware/auth"
	"github.com/manorfm/recoveryM/internal/interfaces/http/middleware/ratelimit"
	"github.com/manorfm/recoveryM/internal/interfaces/http/middleware/requestctx"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const readinessTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Dependencies are the services the router exposes
type Dependencies struct {
	Recovery  domain.RecoveryService
	Incidents domain.IncidentRepository
	// Checks are run by /health/ready, keyed by dependency name
	Checks map[string]HealthCheck
}

type Router struct {
	router  *chi.Mux
	limiter *ratelimit.RateLimiter
}

func NewRouter(deps Dependencies, cfg *config.Config, logger *zap.Logger) *Router {
	recoveryHandler := handlers.NewRecoveryHandler(deps.Recovery, logger)

	// Create router with middleware
	router := createRouter(logger)

	rateLimiter := ratelimit.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 3*time.Minute)

	// Health check endpoints
	router.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Get("/health/ready", readinessHandler(deps.Checks, logger))

		r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Alive"))
		})
	})

	// Swagger UI configuration
	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
		httpSwagger.DeepLinking(true),
		httpSwagger.PersistAuthorization(true),
	))

	// Serve Swagger JSON with CORS headers
	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "docs/swagger.json")
	})

	router.Route("/api", func(r chi.Router) {
		// Public recovery routes
		r.Route("/v1/recovery", func(r chi.Router) {
			r.Use(rateLimiter.Middleware)
			r.Post("/start", recoveryHandler.StartHandler)
			r.Post("/status", recoveryHandler.StatusHandler)
			r.Post("/pin/send", recoveryHandler.SendPinHandler)
			r.Post("/pin/verify", recoveryHandler.VerifyPinHandler)
			r.Post("/abort", recoveryHandler.AbortHandler)
			r.Get("/abort", recoveryHandler.AbortLinkHandler)
			r.Post("/questions", recoveryHandler.QuestionsHandler)
			r.Post("/questions/answer", recoveryHandler.AnswerQuestionHandler)
			r.Post("/questions/answer-all", recoveryHandler.AnswerAllQuestionsHandler)
			r.Post("/password", recoveryHandler.SetPasswordHandler)
		})

		// Admin routes
		if cfg.JWTSecret != "" && deps.Incidents != nil {
			authMiddleware := auth.NewAuthMiddleware(cfg.JWTSecret, logger)
			incidentHandler := handlers.NewIncidentHandler(deps.Incidents, logger)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Verifier, authMiddleware.Authenticator, authMiddleware.RequireRole("admin"))
				r.Get("/admin/incidents", incidentHandler.ListIncidentsHandler)
			})
		} else {
			logger.Warn("admin API disabled, JWT_SECRET or incident store missing")
		}
	})

	return &Router{router: router, limiter: rateLimiter}
}

func createRouter(logger *zap.Logger) *chi.Mux {
	router := chi.NewRouter()

	// Add middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestctx.Middleware)
	router.Use(requestctx.Logger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	return router
}

func readinessHandler(checks map[string]HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := make(map[string]string, len(checks))
		ready := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
				status[name] = "unavailable"
				ready = false
				continue
			}
			status[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		if ready {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	}
}

// Close releases background resources held by middleware
func (r *Router) Close() {
	r.limiter.Stop()
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
