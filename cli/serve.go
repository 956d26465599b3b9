package cli

import (
	"github.com/spf13/cobra"

	"github.com/folio/portfolio/config"
	"github.com/folio/portfolio/routes"
	"github.com/folio/portfolio/utils"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long:  "Serve the portfolio page and the comment API until interrupted.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		return err
	}
	defer func() { _ = utils.Logger.Sync() }()

	db, err := config.InitDatabase(cfg, utils.Logger)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	rc := utils.NewRedisClient(cfg)
	if rc != nil {
		defer rc.Close()
	}

	accessLog, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		utils.Sugar.Warnf("gin access log disabled: %v", err)
		accessLog = nil
	}

	r := routes.SetupRouter(cfg, db, utils.NewCache(rc), accessLog)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	return utils.GraceServer(cmd.Context(), ":"+cfg.AppPort, r)
}
