// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background jobs and tears down DB connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if svc := current(); svc != nil && svc.Scheduler != nil {
		logger.Info("stopping background jobs")
		svc.Scheduler.Stop()
	}
	if deps.SiteCrewMongoClient != nil {
		logger.Info("disconnecting SiteCrew MongoDB client")
		if err := deps.SiteCrewMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
