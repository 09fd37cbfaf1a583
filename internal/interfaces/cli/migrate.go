package cli

import (
	"github.com/spf13/cobra"

	"github.com/qsarlab/adscan/internal/infrastructure/database/postgres"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
)

func newMigrateCmd(opts *RootOptions) *cobra.Command {
	var migrationPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			if migrationPath != "" {
				cfg.Database.MigrationPath = migrationPath
			}
			logger.Info("applying migrations",
				logging.String("path", cfg.Database.MigrationPath),
				logging.String("database", cfg.Database.DBName),
			)
			return postgres.RunMigrations(cfg.Database, logger)
		},
	}

	cmd.Flags().StringVar(&migrationPath, "path", "", "migration files directory (overrides config)")
	return cmd
}
