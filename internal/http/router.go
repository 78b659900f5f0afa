package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/rfsouza01/contacthub/internal/auth"
	"github.com/rfsouza01/contacthub/internal/config"
	"github.com/rfsouza01/contacthub/internal/directory"
	"github.com/rfsouza01/contacthub/internal/http/handlers"
	"github.com/rfsouza01/contacthub/internal/http/middlewares"
	"github.com/rfsouza01/contacthub/internal/observability"
	"github.com/rfsouza01/contacthub/internal/repo/postgres"
	"github.com/rfsouza01/contacthub/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// request bodies are JSON or a small multipart form; images are capped
// separately at 2MB, so 4MB leaves headroom for the rest of the form
const maxBodyBytes = 4 << 20

func NewRouter(cfg config.Config, log *slog.Logger, pool *pgxpool.Pool, images storage.Store) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(otelgin.Middleware("contacthub"))

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	r.Use(prom.GinHandleMiddleware())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool)
	tokensRepo := postgres.NewAPITokensRepo(pool)
	contactsRepo := postgres.NewContactsRepo(pool, prom)

	tokenManager := auth.NewManager(cfg.TokenSecret)
	directoryService := directory.NewService(contactsRepo)
	imageStore := storage.NewInstrumented(images, prom.ObserveStorage)

	// wire up handlers
	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, tokensRepo, tokenManager)
	contactsHandler := handlers.NewContactsHandler(directoryService, imageStore)

	requireAuth := middlewares.NewAuthMiddleware(tokenManager, tokensRepo).RequireAuth()

	r.POST("/auth/register", authHandler.Register)
	r.POST("/auth/login", authHandler.Login)

	authed := r.Group("/", requireAuth)
	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/contacts", contactsHandler.Index)
	authed.POST("/contacts", contactsHandler.Store)
	authed.GET("/contacts/:id", contactsHandler.Show)
	authed.PUT("/contacts/:id", contactsHandler.Update)
	authed.DELETE("/contacts/:id", contactsHandler.Destroy)

	// uploaded images are served straight off disk; the s3 driver serves
	// them from the bucket endpoint instead
	if cfg.StorageDriver == "disk" {
		r.Static("/storage", cfg.StorageDir)
	}

	return r
}
