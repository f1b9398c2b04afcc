package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/germed/backend/internal/cache"
	"github.com/germed/backend/internal/client"
	"github.com/germed/backend/internal/config"
	"github.com/germed/backend/internal/db"
	"github.com/germed/backend/internal/handler"
	"github.com/germed/backend/internal/service"
)

// @title GerMed Chat API
// @version 1.0
// @description Chat/RAG backend with JWT authentication.
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema bootstrap failed", zap.Error(err))
	}

	rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("redis init failed", zap.Error(err))
	}
	defer func() { _ = rdb.Close() }()

	ai, err := client.NewGenAIClient(ctx, cfg.GenAI)
	if err != nil {
		logger.Fatal("genai init failed", zap.Error(err))
	}

	tokens := cache.NewTokenStore(rdb, logger)
	geo := client.NewGeoClient(cfg.Geo, logger)

	authSvc, err := service.NewAuthService(pg, tokens, geo, cfg.Auth, logger)
	if err != nil {
		logger.Fatal("auth service init failed", zap.Error(err))
	}
	chatSvc := service.NewChatService(pg, pg, ai, logger)
	docSvc := service.NewDocumentService(pg, ai)

	cookieSecure := false
	if v, err := strconv.ParseBool(cfg.Auth.CookieSecure); err == nil {
		cookieSecure = v
	}

	authHandler := handler.NewAuthHandler(authSvc, cookieSecure, cfg.Auth.CookieDomain)
	chatHandler := handler.NewChatHandler(chatSvc)
	docHandler := handler.NewDocumentHandler(docSvc)

	router := gin.Default()
	router.Use(handler.CORSMiddleware(strings.Split(cfg.CORS.AllowedOrigins, ","), true))

	router.GET("/", handler.Root)
	router.GET("/ping", handler.Ping)
	router.GET("/health", handler.Health(pg, rdb))
	router.GET("/openapi.json", handler.OpenAPIDoc)

	auth := router.Group("/v1/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh_token", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/config", authHandler.Config)

	protected := router.Group("/v1")
	protected.Use(handler.AuthMiddleware(authSvc))
	protected.GET("/auth/me", authHandler.Me)
	protected.POST("/chat", chatHandler.Chat)
	protected.POST("/documents", docHandler.CreateDocument)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
