package engine

import (
	"context"
	"fmt"

	"sluice/internal/config"
	"sluice/internal/gcpclient"
	"sluice/internal/logging"
	"sluice/internal/objstore"
	"sluice/internal/telemetry"
)

// Bootstrap wires logging, metrics and the cloud clients for one process.
// Clients are created lazily; a run that never touches gs:// never needs
// credentials.
func Bootstrap(ctx context.Context, cfg config.Config) (*Engine, error) {
	// 1. logging
	logging.Configure(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})

	// 2. clients
	gcp := gcpclient.NewManager(gcpclient.Options{
		ProjectID:        cfg.GCP.ProjectID,
		Region:           cfg.GCP.Region,
		CredentialsFile:  cfg.GCP.CredentialsFile,
		BigQueryLocation: cfg.GCP.BigQueryLocation,
	})
	store := objstore.NewMux().
		Handle(objstore.SchemeFile, objstore.NewFileStore("")).
		Handle(objstore.SchemeGCS, &lazyGCS{gcp: gcp})

	// 3. metrics
	if cfg.Metrics.Port > 0 {
		telemetry.Expose(cfg.Metrics.Port)
		logging.L().Info("metrics exposed", "port", cfg.Metrics.Port)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return &Engine{cfg: cfg, gcp: gcp, store: store}, nil
}
