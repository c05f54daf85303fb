package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/arena/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the leaderboard in the terminal",
	Long: `Open a terminal viewer on the persisted state. The leaderboard refreshes
whenever a new cycle is persisted; the lower panel shows the selected
agent's positions and recent trades.

Keys: ↑/k and ↓/j select an agent, q quits.

Examples:
  arena watch --state ./arena_state.json
  arena watch -f arena.yaml --redis redis://localhost:6379/0`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addViewerFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := viewerConfig()
	if err != nil {
		return err
	}

	src, err := openViewerSource(cfg.History.StateFile, cfg.History.RedisURL, cfg.History.RedisKey)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The terminal belongs to the viewer, so nothing is logged.
	states, err := src.follow(ctx, viewerFlags.poll, zap.NewNop())
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.NewModel(states, src.desc), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run viewer: %w", err)
	}
	return nil
}
