package bootstrap

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"preference_server/adapter/in/http"
	"preference_server/config"
	"preference_server/infra/middleware"
	"preference_server/pkg/logger"
	"preference_server/pkg/ratelimit"
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}
	return newApp(deps), cleanup, nil
}

func newApp(deps *Dependencies) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,

		// go-json for request and response bodies
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:    10 * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ServerHeader: "",
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		allowOrigins = "*"
		allowCredentials = false
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Unauthenticated
	http.NewHealthHandler(deps.HealthChecks()).WithPools(deps.PoolStats()).Register(app)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")

	taxonomyHandler := http.NewTaxonomyHandler(deps.TaxonomyService)
	taxonomyHandler.Register(api)
	taxonomyHandler.RegisterAdmin(api, middleware.APIKey(cfg.AdminAPIKey))

	// Processing and per-user queries accept a user token or the admin key
	auth := middleware.UserOrAPIKey(cfg.JWTSecret, cfg.AdminAPIKey)

	// A typed nil *redis.Client must not reach the Scripter interface
	limiter := ratelimit.NewSlidingWindowLimiter(nil, cfg.ProcessRateLimit, time.Minute)
	if deps.Redis != nil {
		limiter = ratelimit.NewSlidingWindowLimiter(deps.Redis, cfg.ProcessRateLimit, time.Minute)
	}

	preferenceHandler := http.NewPreferenceHandler(deps.PreferenceService, deps.Publisher)
	preferenceHandler.RegisterData(api, auth, middleware.RateLimit(limiter))
	preferenceHandler.RegisterUsers(api, auth, middleware.RequireSelf("userId"))

	return app
}
