package main

import (
	"context"
	"fmt"

	redislib "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"statehydrate/internal/logging"
	"statehydrate/pkg/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Inspect and manage the durable replay guard",
	Long: `The replay guard remembers which tokens already hydrated
successfully so a page reload does not re-apply them. These commands
operate on the SQLite guard named in config; "replay clear" is the way to
force a token to apply again.`,
}

var replayListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded token completions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runReplayList,
}

var replayClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every recorded completion",
	Args:  cobra.NoArgs,
	RunE:  runReplayClear,
}

func init() {
	replayCmd.AddCommand(replayListCmd)
	replayCmd.AddCommand(replayClearCmd)
}

// guardStore is the full surface the replay commands need; both the SQLite
// and Redis guards provide it.
type guardStore interface {
	replay.Guard
	List(ctx context.Context) ([]replay.Entry, error)
	Clear(ctx context.Context) (int64, error)
	Close() error
}

// openGuard opens the shared Redis guard when one is configured, falling
// back to the local SQLite file.
func openGuard() (guardStore, error) {
	if cfg.Replay.RedisAddr != "" {
		return replay.NewRedis(&redislib.Options{Addr: cfg.Replay.RedisAddr}, "", 0), nil
	}
	return replay.OpenSQLite(cfg.Replay.DatabasePath)
}

func runReplayList(cmd *cobra.Command, args []string) error {
	guard, err := openGuard()
	if err != nil {
		return err
	}
	defer guard.Close()

	entries, err := guard.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "replay guard is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", e.CompletedAt.Format("2006-01-02 15:04:05"), e.Key)
	}
	return nil
}

func runReplayClear(cmd *cobra.Command, args []string) error {
	guard, err := openGuard()
	if err != nil {
		return err
	}
	defer guard.Close()

	n, err := guard.Clear(cmd.Context())
	if err != nil {
		return err
	}
	logging.Get(logging.CategoryReplay).Info("replay guard cleared", zap.Int64("removed", n))
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %d entries\n", n)
	return nil
}
