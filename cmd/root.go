// Package cmd provides the myblog command-line interface.
//
// Configuration is read from config/config.json (or --config), then .env, then
// environment variables such as APP_PORT, JWT_SECRET, DB_DRIVER and REDIS_HOST.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cppla/myblog/config"
	"github.com/cppla/myblog/metrics"
	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/search"
	"github.com/cppla/myblog/utils"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "myblog",
	Short: "A blog with tags, comments, sharing by e-mail and full-text search",
	Long: `myblog serves a blog: paginated post listings, tag filters, post pages with
moderated comments and similar posts, sharing by e-mail, full-text search, RSS and
a staff-only admin API.

Quick Start:
  myblog migrate                          Create or update the database schema
  myblog create-admin --username admin    Create a staff user
  myblog seed --posts 20                  Fill the database with fake posts
  myblog serve                            Start the HTTP server`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
			config.Set(cfg)
		}
		return utils.InitLogger(cfg)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config/config.json)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error), overrides log.level")
}

// openDatabase connects with the loaded configuration and records query metrics.
func openDatabase() (*gorm.DB, error) {
	db, err := config.InitDatabase(models.All()...)
	if err != nil {
		return nil, err
	}
	if err := metrics.RegisterGormCallbacks(db); err != nil {
		return nil, fmt.Errorf("register metrics callbacks: %w", err)
	}
	return db, nil
}

func openIndex() (*search.Index, error) {
	return search.Open(config.Get().Search.IndexPath)
}
