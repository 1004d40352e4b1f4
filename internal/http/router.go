// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, authentication, CORS, security headers, idempotency, and rate
// limiting.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-complaint-desk/docs"
	"github.com/tbourn/go-complaint-desk/internal/auth"
	"github.com/tbourn/go-complaint-desk/internal/cache"
	"github.com/tbourn/go-complaint-desk/internal/chatbot"
	"github.com/tbourn/go-complaint-desk/internal/config"
	"github.com/tbourn/go-complaint-desk/internal/http/handlers"
	"github.com/tbourn/go-complaint-desk/internal/http/middleware"
	"github.com/tbourn/go-complaint-desk/internal/repo"
	"github.com/tbourn/go-complaint-desk/internal/services"
	"github.com/tbourn/go-complaint-desk/internal/validation"
)

// Deps carries optional collaborators built by main. Zero values fall back to
// a no-op stats cache, the built-in chatbot rules and unauthenticated access.
type Deps struct {
	Stats  cache.StatsCache
	Bot    chatbot.Responder
	Tokens *auth.TokenManager
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Access log: PII-scrubbed (request-scoped logger in debug mode)
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip (responses only; /metrics is left to promhttp)
//  7. Metrics
//  8. CORS and Security headers
//
// The API group then adds, in order: auth (bearer JWT when a secret is
// configured), the idempotency validator and the per-user rate limiter, so
// /health, /metrics and CORS preflights never need a token.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	if err := validation.RegisterGin(); err != nil {
		log.Warn().Err(err).Msg("custom binding validators not installed")
	}

	apiBase := cfg.APIBasePath
	if apiBase == "/" {
		apiBase = ""
	}
	attachmentRoute := apiBase + "/complaints/:id/attachments/:attachmentId"

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging: redacted outside debug mode, request-scoped
	// logger with route params while developing.
	if cfg.GinMode == gin.DebugMode {
		r.Use(middleware.Logger())
	} else {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-API-Key"},
			SkipRoutes:  []string{"/health", "/metrics"},
		}))
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (covers multipart uploads)
	maxBody := cfg.Upload.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 12 << 20
	}
	r.Use(limitBody(maxBody))

	// 6) Compression
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) CORS posture (allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderUserID, middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Location", "Retry-After", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
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
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		EnablePolicy:  true,
		SandboxRoutes: []string{attachmentRoute},
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

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/cache/chatbot
	complaintSvc := services.NewComplaintService(db)
	if deps.Stats != nil {
		complaintSvc.Cache = deps.Stats
	}
	if cfg.Upload.MaxAttachments > 0 {
		complaintSvc.MaxAttachments = cfg.Upload.MaxAttachments
	}
	if cfg.Upload.MaxAttachmentBytes > 0 {
		complaintSvc.MaxAttachmentBytes = cfg.Upload.MaxAttachmentBytes
	}
	convSvc := &services.ConversationService{
		DB:              db,
		Bot:             deps.Bot,
		MaxMessageRunes: 2000,
		TitleLocale:     language.English,
		TitleMaxLen:     6,
	}
	fbSvc := &services.FeedbackService{DB: db}

	idem := repo.NewIdempotencyRepo(db)
	h := handlers.New(complaintSvc, convSvc, fbSvc, handlers.Options{
		Idempotency:        idem,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		MaxAttachments:     complaintSvc.MaxAttachments,
		MaxAttachmentBytes: complaintSvc.MaxAttachmentBytes,
	})

	// Public API
	api := groupWithPrefix(r, apiBase)
	api.Use(
		auth.Middleware(deps.Tokens),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idem.Lookup),
		middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler(),
	)
	{
		// Complaints
		api.GET("/complaints", h.ListComplaints)
		api.POST("/complaints", h.CreateComplaint)
		api.GET("/complaints/search", h.SearchComplaints)
		api.GET("/complaints/stats", h.ComplaintStats)
		api.GET("/complaints/:id", h.GetComplaint)
		api.PATCH("/complaints/:id", h.UpdateComplaint)
		api.DELETE("/complaints/:id", h.DeleteComplaint)
		api.GET("/complaints/:id/attachments/:attachmentId", h.DownloadAttachment)

		// Chatbot
		api.POST("/chatbot/message", h.SendChatMessage)
		api.POST("/chatbot/conversation", h.StartConversation)
		api.GET("/chatbot/conversation/:id", h.ConversationHistory)
		api.POST("/chatbot/conversation/:id/end", h.EndConversation)
		api.GET("/chatbot/capabilities", h.ChatCapabilities)
		api.GET("/chatbot/metrics", h.ChatMetrics)

		// Feedback
		api.POST("/chatbot/feedback", h.LeaveFeedback)
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
