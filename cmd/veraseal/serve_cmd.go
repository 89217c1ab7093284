package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Lamont-Labs/VeraSeal/internal/archive"
	"github.com/Lamont-Labs/VeraSeal/internal/boundary"
	"github.com/Lamont-Labs/VeraSeal/internal/config"
	"github.com/Lamont-Labs/VeraSeal/internal/index"
	"github.com/Lamont-Labs/VeraSeal/internal/observability"
	"github.com/Lamont-Labs/VeraSeal/internal/store"
)

// runServeCmd implements `veraseal serve`: load configuration, wire the
// artifact store, optional index/archive backends, and the HTTP boundary,
// then block until SIGINT/SIGTERM.
func runServeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var profileName string
	var profilesDir string
	cmd.StringVar(&profileName, "profile", "", "deployment profile name to overlay onto env config")
	cmd.StringVar(&profilesDir, "profiles-dir", "config/profiles", "directory containing profile_<name>.yaml files")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	if profileName != "" {
		prof, err := config.LoadProfile(profilesDir, profileName)
		if err != nil {
			fmt.Fprintf(stderr, "veraseal: load profile %s: %v\n", profileName, err)
			return 2
		}
		cfg = prof.Apply(cfg)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	ctx := context.Background()
	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "veraseal",
		ServiceVersion: "v1",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTLPEndpoint != "",
	})
	if err != nil {
		fmt.Fprintf(stderr, "veraseal: observability init: %v\n", err)
		return 2
	}
	defer obs.Shutdown(ctx)

	st, err := store.New(cfg.ArtifactRoot)
	if err != nil {
		fmt.Fprintf(stderr, "veraseal: artifact store init: %v\n", err)
		return 2
	}

	idx, db, err := setupIndex(ctx, cfg.IndexDSN, logger)
	if err != nil {
		fmt.Fprintf(stderr, "veraseal: index init: %v\n", err)
		return 2
	}
	if db != nil {
		defer db.Close()
	}

	arc, err := archive.New(cfg.ArchiveURL, logger)
	if err != nil {
		fmt.Fprintf(stderr, "veraseal: archive init: %v\n", err)
		return 2
	}

	validator := boundary.NewJWTValidator(cfg.JWTSigningKey)
	limiter := setupLimiter(cfg)

	srv := boundary.NewServer(st, idx, arc, obs, logger)
	handler := srv.Router(validator, limiter)

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: handler,
	}

	go func() {
		logger.Info("veraseal: listening", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("veraseal: server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("veraseal: shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return boolToExit(httpServer.Shutdown(shutdownCtx) == nil)
}

func boolToExit(ok bool) int {
	if ok {
		return 0
	}
	return 1
}

// setupIndex opens a *sql.DB for dsn, selecting the driver by URL scheme:
// postgres:// / postgresql:// uses lib/pq, anything else is treated as a
// local sqlite file path and opened with modernc.org/sqlite. An empty dsn
// disables the index entirely.
func setupIndex(ctx context.Context, dsn string, logger *slog.Logger) (*index.Index, *sql.DB, error) {
	if dsn == "" {
		return nil, nil, nil
	}

	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	idx, err := index.New(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return idx, db, nil
}

func setupLimiter(cfg *config.Config) boundary.Limiter {
	if cfg.RedisAddr != "" {
		return boundary.NewRedisLimiter(cfg.RedisAddr, cfg.RateLimitRPS, cfg.RateLimitRPS*2)
	}
	return boundary.NewLocalLimiter(cfg.RateLimitRPS, int(cfg.RateLimitRPS*2))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
