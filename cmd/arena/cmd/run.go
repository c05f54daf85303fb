package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/arena/agents"
	"github.com/rustyeddy/arena/arena"
	"github.com/rustyeddy/arena/config"
	"github.com/rustyeddy/arena/internal/metrics"
	"github.com/rustyeddy/arena/internal/tui"
	"github.com/rustyeddy/arena/internal/web"
	"github.com/rustyeddy/arena/journal"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a competition from a config file",
	Long: `Run a trading competition using settings from a configuration file.

The config file lists the instruments, the quote source, every agent and
where the state is persisted. The leaderboard is printed after each cycle.
Interrupting the run lets the current cycle finish and persist; --resume
continues from the persisted state.

Example:
  arena run -f arena.yaml --cycles 20 --interval 2s`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runConfigPath string
	runCycles     int
	runInterval   string
	runResume     bool
	runWithViewer bool
	runQuiet      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().IntVar(&runCycles, "cycles", 0, "override arena.cycles")
	runCmd.Flags().StringVar(&runInterval, "interval", "", "override arena.cycle_interval, e.g. 5s")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "continue from the persisted state")
	runCmd.Flags().BoolVar(&runWithViewer, "serve", false, "serve the live state on server.addr while running")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "do not print the leaderboard after each cycle")
	_ = runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("cycles") {
		cfg.Arena.Cycles = runCycles
	}
	if cmd.Flags().Changed("interval") {
		cfg.Arena.CycleInterval = runInterval
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	acfg, err := arena.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	src, err := buildSource(cfg.Market, log)
	if err != nil {
		return err
	}
	agts, err := agents.Build(cfg.Agents)
	if err != nil {
		return err
	}
	agents.UseLogger(agts, log)
	store, err := openStores(cmd.Context(), cfg.History)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("close stores", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	var opts []arena.Option
	opts = append(opts, arena.WithLogger(log))
	if !runQuiet {
		opts = append(opts, arena.WithObserver(func(st *journal.State) { printLeaderboard(out, st) }))
	}

	var a *arena.Arena
	var srv *web.Server
	if runWithViewer {
		srv = web.NewServer(func(context.Context) (*journal.State, error) {
			if a.Cycle() == 0 {
				return nil, journal.ErrNoState
			}
			return a.State(), nil
		}, log)
		opts = append(opts, arena.WithObserver(srv.Publish))
	}

	a, err = arena.New(acfg, src, agts, store, opts...)
	if err != nil {
		return err
	}

	if runResume {
		if err := resume(ctx, a, store, log); err != nil {
			return err
		}
	}

	if srv != nil {
		go func() {
			if err := srv.Serve(ctx, cfg.Server.Addr); err != nil {
				log.Error("viewer stopped", zap.Error(err))
			}
		}()
	}
	if cfg.Metrics.Addr != "" {
		go serveMetrics(ctx, cfg.Metrics.Addr, log)
	}

	fmt.Fprintf(out, "Running %d agents for %d cycles (%s market)\n", len(agts), acfg.Cycles, cfg.Market.Source)

	err = a.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(out, "\nInterrupted after cycle %d; continue with --resume\n", a.Cycle())
	case err != nil:
		return fmt.Errorf("arena: %w", err)
	}

	st := a.State()
	fmt.Fprintln(out)
	fmt.Fprintln(out, tui.RenderLeaderboard(st, -1))
	if n := len(st.MissedCheckpoints); n > 0 {
		fmt.Fprintf(out, "\n%d checkpoints were not persisted: %v\n", n, st.MissedCheckpoints)
	}
	fmt.Fprintf(out, "\nState saved to: %s\n", cfg.History.StateFile)
	return nil
}

func resume(ctx context.Context, a *arena.Arena, store journal.Store, log *zap.Logger) error {
	st, err := store.Load(ctx)
	if errors.Is(err, journal.ErrNoState) {
		log.Info("nothing to resume, starting fresh")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if err := a.Restore(st); err != nil {
		return err
	}
	log.Info("resumed", zap.Int("cycle", st.CurrentCycle))
	return nil
}

func printLeaderboard(w io.Writer, st *journal.State) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, tui.RenderLeaderboard(st, -1))
}

// serveMetrics exposes /metrics on its own listener for runs without the
// viewer.
func serveMetrics(ctx context.Context, addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics listener", zap.Error(err))
	}
}
