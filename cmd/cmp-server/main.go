package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	metrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/cmp-trust/internal/config"
	"github.com/information-sharing-networks/cmp-trust/internal/logger"
	"github.com/information-sharing-networks/cmp-trust/internal/server"
	"github.com/information-sharing-networks/cmp-trust/internal/version"
)

//	@title			cmp-server
//	@description	cmp-server checks the protection of CMP (RFC 4210) messages received from peer CAs.
//	@description
//	@description	## Common Error Responses
//	@description	All endpoints may return:
//	@description	- `413` Request body exceeds size limit
//	@description	- `429` Rate limit exceeded
//	@description	- `500` Internal server error
//	@description
//	@description	Rejected messages are reported with `422` and the validation code (e.g. `BSIG`, `NVSC`)
//	@description	in the `value` of the detailed error.
//	@description
//	@description	## Request Limits
//	@description	- **Rate limiting**: Configurable requests per second (see env vars) - default 100 rps (set to 0 to disable)
//	@description	- **Request size limits**: Configurable (see env vars) - default 1MB
//	@description
//	@description	Check the X-Max-Request-Size response header for the configured limit.
//	@license.name	MIT

//	@servers.url			http://localhost:8080
//	@servers.description	Development server

//	@tag.name			CMP
//	@tag.description	CMP message validation

//	@tag.name			Common
//	@tag.description	Server API endpoints (health, readiness, version, metrics)

func main() {
	cmd := &cobra.Command{
		Use:   "cmp-server",
		Short: "CMP message protection validation service",
		Long:  `cmp-server validates the MAC and signature protection of CMP messages under per-CA trust profiles`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	v := version.Get()
	cmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewServerConfig()
	if err != nil {
		log.Printf("failed to load configuration: %v", err.Error())
		os.Exit(1)
	}

	var logOpts []logger.Option
	if cfg.LogFile != "" {
		logOpts = append(logOpts, logger.WithLogFile(cfg.LogFile, cfg.LogFileMaxSizeMB, cfg.LogFileMaxBackups))
	}
	appLogger := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment, logOpts...)

	appLogger.Info("Configuration loaded",
		slog.String("ENVIRONMENT", cfg.Environment),
		slog.String("HOST", cfg.Host),
		slog.Int("PORT", cfg.Port),
		slog.String("LOG_LEVEL", cfg.LogLevel),
		slog.String("LOG_FILE", cfg.LogFile),
		slog.Int64("MAX_REQUEST_SIZE", cfg.MaxRequestSize),
		slog.Int("TRANSACTION_CACHE_SIZE", cfg.TransactionCacheSize),
		slog.String("PROFILES_PATH", cfg.ProfilesPath),
	)

	profiles, err := config.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		appLogger.Error("Failed to load trust profiles", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for name, p := range profiles {
		appLogger.Info("Trust profile loaded",
			slog.String("profile", name),
			slog.Int("trust_anchors", p.Trusted.Len()),
			slog.Int("untrusted_certs", len(p.Untrusted)),
			slog.Int("crls", len(p.CRLs)),
			slog.Bool("shared_secret", len(p.SharedSecret) > 0),
			slog.Bool("pinned_cert", p.PinnedCert != nil),
		)
	}

	appLogger.Info("Starting server", slog.String("version", version.Get().Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := server.NewServer(cfg, profiles, metrics.DefaultRegistry, appLogger)
	if err != nil {
		appLogger.Error("Failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := server.Start(ctx); err != nil {
		appLogger.Error("Server error", slog.String("error", err.Error()))
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}
