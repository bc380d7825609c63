package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/routes"
	"github.com/cppla/myblog/utils"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the HTTP server",
	Long: `Start the HTTP server. SIGTERM or SIGINT shut it down gracefully;
SIGUSR2 starts a new process on the same socket and drains the old one.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	defer func() { _ = utils.Logger.Sync() }()

	db, err := openDatabase()
	if err != nil {
		return err
	}
	index, err := openIndex()
	if err != nil {
		return err
	}
	if n, err := index.Count(); err == nil && n == 0 {
		if _, err := index.Rebuild(db); err != nil {
			utils.Sugar.Warnf("initial index build failed: %v", err)
		}
	}
	// Warm the redis connection; nil means redis-backed features fall back to memory.
	if utils.GetRedis() == nil {
		utils.Sugar.Info("redis not configured, caching disabled")
	}

	r, err := routes.SetupRouter(db, utils.NewSMTPMailer(cfg.SMTP), index)
	if err != nil {
		return err
	}

	srv := utils.GraceServer(":"+cfg.App.Port, r)
	srv.OnShutdown(func() {
		if err := index.Close(); err != nil {
			utils.Sugar.Warnf("close search index: %v", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		if rc := utils.GetRedis(); rc != nil {
			_ = rc.Close()
		}
	})
	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.App.Port)
	return srv.ListenAndServe()
}
