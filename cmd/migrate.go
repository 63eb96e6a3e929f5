package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wabiz/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.AutoMigrate = false

		conn, err := db.Connect(cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.Migrate(conn); err != nil {
			return err
		}
		logrus.Info("migration finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
