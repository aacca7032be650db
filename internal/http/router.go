// Package httpapi wires the HTTP transport (Gin) to the lifecycle services,
// middleware and route handlers. It owns the cross-cutting concerns: tracing,
// correlation IDs, redacted logging, panic recovery, metrics, compression,
// CORS, security headers, idempotency and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/esic-backend/internal/config"
	"github.com/tbourn/esic-backend/internal/http/docs"
	"github.com/tbourn/esic-backend/internal/http/handlers"
	"github.com/tbourn/esic-backend/internal/http/middleware"
	"github.com/tbourn/esic-backend/internal/notify"
	"github.com/tbourn/esic-backend/internal/repo"
	"github.com/tbourn/esic-backend/internal/services"
)

const defaultIdempotencyTTL = 24 * time.Hour

// idempotencyShim adapts the repository free functions to
// handlers.IdempotencyStore and to the middleware lookup.
type idempotencyShim struct {
	db  *gorm.DB
	ttl time.Duration
}

// Lookup proxies repo.GetIdempotency at the current time.
func (s idempotencyShim) Lookup(ctx context.Context, scope, key string) (string, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, scope, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.ResourceID, true, nil
}

// Remember proxies repo.CreateIdempotency. A concurrent retry that already
// stored the pair is not an error.
func (s idempotencyShim) Remember(ctx context.Context, scope, key, resourceID string, status int) error {
	ttl := s.ttl
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	_, err := repo.CreateIdempotency(ctx, s.db, scope, key, resourceID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// exists is the middleware.IdempotencyLookup view of the store.
func (s idempotencyShim) exists(ctx context.Context, scope, key string, now time.Time) (bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, scope, key, now)
	if err != nil || rec == nil {
		return false, nil
	}
	return true, nil
}

var (
	corsMethods       = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsAllowHeaders  = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "If-None-Match", middleware.HeaderIdempotencyKey}
	corsExposeHeaders = []string{"X-Request-ID", "Content-Length", "Content-Disposition", "ETag", "Idempotency-Replayed", "Retry-After"}
)

// RegisterRoutes attaches middleware and endpoints to r and builds the
// lifecycle services on top of db. n receives lifecycle notifications; nil
// disables them.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger (also attaches the request-scoped logger)
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Idempotency validator, before the limiter so replays bypass it
//  8. Rate limiter
//  9. Gzip, CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, n notify.Notifier) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	idem := idempotencyShim{db: db, ttl: cfg.IdempotencyTTL}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idem.exists))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByStaffOrIP())
	r.Use(rl.Handler())

	// Spreadsheets are already zip containers.
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedExtensions([]string{".xlsx"}),
		gzip.WithExcludedPaths([]string{"/metrics"}),
	))

	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowAllOrigins:  len(cfg.CORS.AllowedOrigins) == 0,
		AllowMethods:     corsMethods,
		AllowHeaders:     corsAllowHeaders,
		ExposeHeaders:    corsExposeHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	r.Use(cors.New(corsCfg))

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", readiness(db))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	reg := services.NewRequestRegistry(db, cfg.Lifecycle, n)
	stats := services.NewStatisticsAggregator(reg)
	h := handlers.New(
		reg,
		services.NewResponseRecorder(reg),
		services.NewAppealManager(reg, cfg.Lifecycle.MaxAppealInstances),
		stats,
		services.NewReportWriter(reg, stats),
		idem,
	)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Citizen
		api.POST("/requests", h.SubmitRequest)
		api.GET("/requests/:protocol", h.LookupRequest)
		api.POST("/requests/:protocol/appeals", h.CitizenAppeal)
	}

	admin := api.Group("/admin")
	{
		admin.GET("/requests", h.ListRequests)
		admin.GET("/requests/:id", h.GetRequest)
		admin.GET("/requests/:id/events", h.RequestEvents)
		admin.POST("/requests/:id/start", h.StartProcessing)
		admin.POST("/requests/:id/responses", h.RecordResponse)
		admin.POST("/requests/:id/archive", h.ArchiveRequest)
		admin.POST("/requests/:id/appeals", h.FileAppeal)
		admin.POST("/appeals/:id/decision", h.DecideAppeal)

		admin.GET("/statistics", h.GetStatistics)
		admin.GET("/reports/requests.xlsx", h.ExportRequests)
	}
}

// readiness reports 503 while the database cannot be reached.
func readiness(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err = sqlDB.PingContext(ctx)
			cancel()
		}
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("database not ready")
			handlers.Fail(c, http.StatusServiceUnavailable, "not_ready", "database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// limitBody caps request bodies at maxBytes; reads past the cap fail.
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
