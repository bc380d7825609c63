package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		if err := db.AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		utils.Sugar.Info("database schema is up to date")
		return nil
	},
}

var rebuildIndexCmd = &cobra.Command{
	Use:   "rebuild-index",
	Short: "Reindex every published post",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		index, err := openIndex()
		if err != nil {
			return err
		}
		defer index.Close()
		n, err := index.Rebuild(db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d posts\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, rebuildIndexCmd)
}
