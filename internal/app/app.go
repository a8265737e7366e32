// Package app boots the model gateway server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/orgdesk/modelgate/internal/config"
	"github.com/orgdesk/modelgate/internal/db"
	"github.com/orgdesk/modelgate/internal/gateway"
	"github.com/orgdesk/modelgate/internal/http/api"
	"github.com/orgdesk/modelgate/internal/logging"
	"github.com/orgdesk/modelgate/internal/metering"
	"github.com/orgdesk/modelgate/internal/pricing"
	"github.com/orgdesk/modelgate/internal/provider"
	"github.com/orgdesk/modelgate/internal/report"
	"github.com/orgdesk/modelgate/internal/store"
)

// RunServer loads configuration, prepares storage, and serves the console
// API until ctx is cancelled.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	log.WithField("dialect", db.DialectName(conn)).Info("database ready")

	usageStore := store.New(conn)
	imported, errImport := usageStore.ImportLegacyFile(ctx, cfg.LegacyUsageFile, cfg.LegacyImportGuard)
	if errImport != nil {
		// A failed import leaves the legacy file untouched; live metering
		// still works, so boot continues.
		log.WithError(errImport).Error("legacy usage import failed")
	} else if imported > 0 {
		log.WithField("count", imported).Info("legacy usage log migrated")
	}

	registry := provider.NewRegistry()
	prices := pricing.NewTable()
	recorder := metering.NewRecorder(usageStore)
	gw := gateway.New(registry, gateway.NewExecutor(nil), recorder,
		time.Duration(cfg.RequestTimeoutSeconds)*time.Second)
	exporter := report.NewExporter(cfg.ArchiveDir)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, gw, usageStore, prices, exporter)

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("listen", cfg.Listen).Info("model gateway listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}
