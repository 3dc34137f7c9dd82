package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/rostersync"
	"github.com/xraph/rostersync/mirror"
	"github.com/xraph/rostersync/notify"
	"github.com/xraph/rostersync/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync <program-ref>",
	Short: "Run one sync for a program and print the outcome report",
	Args:  cobra.ExactArgs(1),
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().Bool("force", false, "Re-apply desired state even where observed state matches")
	syncCmd.Flags().String("notify", "", "Address that receives the outcome report")
}

func runSync(cmd *cobra.Command, args []string) error {
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

	d, err := buildDaemon(st, logger)
	if err != nil {
		return err
	}

	run := syncer.NewRun(mirror.ProgramRef(args[0]))
	run.Force, _ = cmd.Flags().GetBool("force")
	run.NotifyAddress, _ = cmd.Flags().GetString("notify")

	out, err := d.Runner().RunNow(ctx, run)
	switch {
	case errors.Is(err, rostersync.ErrLockHeld):
		return fmt.Errorf("sync already in progress for %s", args[0])
	case err != nil && out == nil:
		return err
	}

	report := notify.NewReport(run, out)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(report); encErr != nil {
		return encErr
	}
	return err
}
