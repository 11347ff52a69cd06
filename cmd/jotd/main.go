package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jotapp/jot/internal/backup"
	"github.com/jotapp/jot/internal/database"
	"github.com/jotapp/jot/internal/logging"
	"github.com/jotapp/jot/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("JOTD_LOG_LEVEL"), os.Getenv("JOTD_LOG_FORMAT"))

	port := os.Getenv("JOTD_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("JOTD_DB_PATH")
	if dbPath == "" {
		dbPath = "jotd.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, os.Getenv("JOTD_AUTH_TOKEN"), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("JOTD_S3_ENDPOINT"),
			Bucket:    os.Getenv("JOTD_S3_BUCKET"),
			Region:    os.Getenv("JOTD_S3_REGION"),
			AccessKey: os.Getenv("JOTD_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("JOTD_S3_SECRET_KEY"),
		},
		DBPath:        dbPath,
		Passphrase:    os.Getenv("JOTD_BACKUP_PASSPHRASE"),
		Interval:      envDuration("JOTD_BACKUP_INTERVAL", 24*time.Hour),
		RetentionDays: envInt("JOTD_BACKUP_RETENTION_DAYS", 30),
	}, db, logger.With("component", "backup"))
	if backupMgr.Enabled() {
		go backupMgr.Run(ctx)
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("jotd listening", "port", port, "backups", backupMgr.Enabled())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
