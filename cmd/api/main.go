package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tillpoint.org/internal/audit"
	"tillpoint.org/internal/auth"
	"tillpoint.org/internal/config"
	"tillpoint.org/internal/httpapi"
	"tillpoint.org/internal/lockout"
	"tillpoint.org/internal/obs"
	"tillpoint.org/internal/store/pg"
)

// Overridden at build time with -ldflags.
var (
	version = "0.3.1"
	commit  = "none"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.Issuer, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("token manager: %v", err)
	}

	guard := lockout.NewGuard(
		lockout.WithThreshold(cfg.LockoutThreshold),
		lockout.WithWindow(cfg.LockoutWindow),
		lockout.WithDuration(cfg.LockoutDuration),
	)
	defer guard.Close()

	// Without a database the audit trail falls back to the structured log and
	// account operations are unavailable; the server still answers health and
	// metrics so the deployment surface stays inspectable.
	var (
		accounts auth.Store
		sink     audit.Sink
		auditLog httpapi.AuditReader
		store    *pg.Store
	)
	if cfg.DatabaseURL != "" {
		store, err = pg.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := store.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("ensure schema: %v", err)
		}
		cancel()

		accounts = store.Accounts()
		sink = store.Audit()
		auditLog = store.Audit()
	}

	api := httpapi.New(httpapi.Options{
		Accounts:           accounts,
		Tokens:             tokens,
		Guard:              guard,
		Recorder:           audit.NewRecorder(sink),
		AuditLog:           auditLog,
		SecureCookies:      cfg.SecureCookies,
		Version:            version,
		RateLimitBurst:     cfg.RateLimitBurst,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting tillpoint-api %s on %s", version, srv.Addr)
	api.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	api.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
