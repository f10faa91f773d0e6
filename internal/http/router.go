// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, compression,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - No-store cache posture: this API serves medical data
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/rehabtrack/go-recovery-backend/internal/config"
	"github.com/rehabtrack/go-recovery-backend/internal/domain"
	"github.com/rehabtrack/go-recovery-backend/internal/http/handlers"
	"github.com/rehabtrack/go-recovery-backend/internal/http/middleware"
	"github.com/rehabtrack/go-recovery-backend/internal/repo"
	"github.com/rehabtrack/go-recovery-backend/internal/services"
)

// profileRepoShim adapts the repository free functions to the
// services.ProfileRepo interface expected by the ProfileService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type profileRepoShim struct{}

func (profileRepoShim) GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.MedicalProfile, error) {
	return repo.GetProfile(ctx, db, userID)
}

func (profileRepoShim) CreateProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.MedicalProfile, error) {
	return repo.CreateProfile(ctx, db, userID)
}

func (profileRepoShim) UpdateProfileFields(ctx context.Context, db *gorm.DB, profileID, surgeryDetails, healthStatus, notes string) error {
	return repo.UpdateProfileFields(ctx, db, profileID, surgeryDetails, healthStatus, notes)
}

func (profileRepoShim) ListMedicines(ctx context.Context, db *gorm.DB, profileID string) ([]domain.Medicine, error) {
	return repo.ListMedicines(ctx, db, profileID)
}

func (profileRepoShim) CreateMedicine(ctx context.Context, db *gorm.DB, profileID string, m *domain.Medicine) (*domain.Medicine, error) {
	return repo.CreateMedicine(ctx, db, profileID, m)
}

func (profileRepoShim) GetMedicine(ctx context.Context, db *gorm.DB, id, profileID string) (*domain.Medicine, error) {
	return repo.GetMedicine(ctx, db, id, profileID)
}

func (profileRepoShim) UpdateMedicineFields(ctx context.Context, db *gorm.DB, id, profileID string, fields map[string]any) error {
	return repo.UpdateMedicineFields(ctx, db, id, profileID, fields)
}

func (profileRepoShim) DeleteMedicine(ctx context.Context, db *gorm.DB, id, profileID string) error {
	return repo.DeleteMedicine(ctx, db, id, profileID)
}

func (profileRepoShim) ReplaceMedicines(ctx context.Context, db *gorm.DB, profileID string, meds []domain.Medicine) ([]domain.Medicine, error) {
	return repo.ReplaceMedicines(ctx, db, profileID, meds)
}

// eventRepoShim adapts the dose-event repository functions to
// services.EventRepo.
type eventRepoShim struct{}

func (eventRepoShim) InsertDoseEvent(ctx context.Context, db *gorm.DB, ev *domain.DoseEvent) (*domain.DoseEvent, error) {
	return repo.InsertDoseEvent(ctx, db, ev)
}

func (eventRepoShim) GetDoseEvent(ctx context.Context, db *gorm.DB, id, userID string) (*domain.DoseEvent, error) {
	return repo.GetDoseEvent(ctx, db, id, userID)
}

func (eventRepoShim) ListDoseEvents(ctx context.Context, db *gorm.DB, userID string, start, end *time.Time) ([]domain.DoseEvent, error) {
	return repo.ListDoseEvents(ctx, db, userID, start, end)
}

// statsRepoShim adapts the window queries to services.StatsRepo.
type statsRepoShim struct{}

func (statsRepoShim) ListDoseEventsWindow(ctx context.Context, db *gorm.DB, userID string, from, before time.Time) ([]domain.DoseEvent, error) {
	return repo.ListDoseEventsWindow(ctx, db, userID, from, before)
}

func (statsRepoShim) ListDoseEventsSince(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]domain.DoseEvent, error) {
	return repo.ListDoseEventsSince(ctx, db, userID, since)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, compression, CORS and security headers, health and metrics
// endpoints, and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with identifier scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging (bodies never logged, queries scrubbed)
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			return repo.HasIdempotency(ctx, db, userID, key, now)
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers; no-store because responses carry health data
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs (optional)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	profileSvc := services.NewProfileService(db, profileRepoShim{})
	profileSvc.NameLocale = language.English

	eventSvc := services.NewEventService(db, eventRepoShim{})

	statsSvc := services.NewStatsService(db, statsRepoShim{})
	statsSvc.WindowDays = cfg.StreakWindowDays

	h := handlers.New(profileSvc, eventSvc, statsSvc)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Profile
		api.GET("/profile", h.GetProfile)
		api.PUT("/profile", h.ReplaceProfile)

		// Medicines
		api.GET("/medicines", h.ListMedicines)
		api.POST("/medicines", h.AddMedicine)
		api.PUT("/medicines/:id", h.UpdateMedicine)
		api.DELETE("/medicines/:id", h.DeleteMedicine)

		// Dose events
		api.POST("/events", h.RecordEvent)
		api.GET("/events", h.ListEvents)

		// Adherence stats
		api.GET("/stats", h.GetStats)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
