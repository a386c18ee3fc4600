package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/portfolio/backend/internal/config"
	"github.com/portfolio/backend/internal/handler"
	"github.com/portfolio/backend/internal/limiter"
	"github.com/portfolio/backend/internal/logging"
	"github.com/portfolio/backend/internal/mailer"
	"github.com/portfolio/backend/internal/repository"
	"github.com/portfolio/backend/internal/service"
)

func main() {
	_ = godotenv.Load()
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("invalid configuration", "error", err)
	}

	ctx := context.Background()
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("failed to connect to database", "error", err)
	}
	defer pool.Close()

	repo := repository.NewPgSubmissionRepository(pool)

	// History counts come from the submissions table unless a Redis
	// store is configured; the Redis store also needs explicit writes.
	var history limiter.HistoryStore = repo
	var recorder service.HistoryRecorder
	if cfg.Limiter.Store == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logging.Fatal("failed to connect to redis", "error", err)
		}
		rh := repository.NewRedisHistory(rdb, cfg.Limiter.Window)
		history = rh
		recorder = rh
	}

	var sender mailer.Sender = mailer.NopSender{}
	if cfg.SMTP.Enabled() {
		sender = mailer.NewSMTPSender(mailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			AdminTo:  cfg.SMTP.AdminTo,
			SiteName: cfg.SMTP.SiteName,
		})
	} else {
		slog.Warn("smtp not configured, outgoing mail disabled")
	}

	svc := service.NewSubmissionService(repo, history, recorder, sender, service.Config{
		Bounds: service.Bounds{
			NameMax:    cfg.Fields.NameMax,
			EmailMax:   cfg.Fields.EmailMax,
			SubjectMax: cfg.Fields.SubjectMax,
			MessageMax: cfg.Fields.MessageMax,
		},
		Weights:     cfg.Spam.Weights(),
		Limits:      cfg.Limiter.Limiter(),
		MinFillTime: cfg.Spam.MinFillTime,
	})

	h := handler.New(pool, cfg.FrontendURL)
	submissionHandler := handler.NewSubmissionHandler(svc, cfg.TrustedProxyCount)
	throttle := handler.NewThrottle(cfg.ThrottlePerMinute, cfg.TrustedProxyCount)
	adminOnly := handler.RequireAdmin(cfg.AdminToken)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.Health)
	mux.Handle("POST /api/contact", throttle.Middleware(http.HandlerFunc(submissionHandler.Submit)))
	mux.Handle("GET /api/admin/submissions", adminOnly(http.HandlerFunc(submissionHandler.AdminList)))
	mux.Handle("PATCH /api/admin/submissions/{id}/status", adminOnly(http.HandlerFunc(submissionHandler.AdminUpdateStatus)))
	mux.Handle("GET /metrics", promhttp.Handler())

	chain := h.CORS(handler.SecurityHeaders(handler.MaxBody(cfg.MaxBodyBytes)(handler.RequestLogger(mux))))

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      chain,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
