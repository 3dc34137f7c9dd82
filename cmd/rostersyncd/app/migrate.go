package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run schema migrations against the configured store",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		logger := newLogger()
		slog.SetDefault(logger)

		ctx := context.Background()
		st, err := buildStore(ctx, logger)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}
		logger.Info("migrations applied")
		return nil
	},
}
