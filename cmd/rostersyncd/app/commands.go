// Package app provides the entry point for the rostersyncd daemon.
package app

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:               "rostersyncd",
	DisableAutoGenTag: true,
	Short:             "Program synchronization daemon",
	Long: `rostersyncd keeps program and participant records mirrored from the CRM
in sync with the course platform, the chat server, and the meeting-link
service. It runs a recurring sync pass over all current programs and
serves an HTTP endpoint for on-demand syncs.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			slog.Error("error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates the root command for rostersyncd.
func NewRootCmd() *cobra.Command {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to configuration file (YAML)")
	pf.Bool("debug", false, "Enable debug logging")
	pf.String("log-file", "", "Log file path (stderr when empty)")

	for _, name := range []string{"config", "debug", "log-file"} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			slog.Error("error binding flag", "flag", name, "error", err)
		}
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(migrateCmd)

	return rootCmd
}

// loadConfig reads the optional config file and environment into viper.
// Environment variables use the ROSTERSYNC_ prefix with underscores, e.g.
// ROSTERSYNC_STORE_DRIVER for store.driver.
func loadConfig() error {
	viper.SetEnvPrefix("ROSTERSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("sync.schedule", "@every 5m")
	viper.SetDefault("sync.concurrency", 4)
	viper.SetDefault("api.address", ":8080")

	path := viper.GetString("config")
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	return viper.ReadInConfig()
}
