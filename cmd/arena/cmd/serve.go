package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/arena/config"
	"github.com/rustyeddy/arena/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the persisted state over HTTP",
	Long: `Start the read-only viewer. It serves the latest persisted state as JSON,
pushes every new state to websocket clients on /ws and exposes Prometheus
metrics on /metrics. It never writes to the state.

Endpoints:
  GET /api/state
  GET /api/leaderboard
  GET /api/agents/{id}
  GET /api/agents/{id}/cycles
  GET /api/agents/{id}/trades?status=FILLED|REJECTED
  GET /ws

Examples:
  arena serve --state ./arena_state.json --addr :8050
  arena serve --redis redis://localhost:6379/0`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var viewerFlags struct {
	configPath string
	stateFile  string
	redisURL   string
	redisKey   string
	poll       time.Duration
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	addViewerFlags(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr or :8050)")
}

func addViewerFlags(c *cobra.Command) {
	c.Flags().StringVarP(&viewerFlags.configPath, "config", "f", "", "read state locations from this config file")
	c.Flags().StringVar(&viewerFlags.stateFile, "state", "", "state file (default history.state_file)")
	c.Flags().StringVar(&viewerFlags.redisURL, "redis", "", "follow a redis mirror instead of the state file")
	c.Flags().StringVar(&viewerFlags.redisKey, "redis-key", "", "redis key of the state")
	c.Flags().DurationVar(&viewerFlags.poll, "poll", time.Second, "state file poll interval")
}

// viewerConfig merges the flags over the config file, or the defaults when
// no config file is given.
func viewerConfig() (*config.Config, error) {
	cfg := config.Default()
	if viewerFlags.configPath != "" {
		loaded, err := config.LoadFromFile(viewerFlags.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if viewerFlags.stateFile != "" {
		cfg.History.StateFile = viewerFlags.stateFile
	}
	if viewerFlags.redisURL != "" {
		cfg.History.RedisURL = viewerFlags.redisURL
	}
	if viewerFlags.redisKey != "" {
		cfg.History.RedisKey = viewerFlags.redisKey
	}
	if viewerFlags.poll <= 0 {
		return nil, fmt.Errorf("--poll must be positive")
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := viewerConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	src, err := openViewerSource(cfg.History.StateFile, cfg.History.RedisURL, cfg.History.RedisKey)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	states, err := src.follow(ctx, viewerFlags.poll, log)
	if err != nil {
		return err
	}

	srv := web.NewServer(web.FromStore(src.store), log)
	go srv.Follow(states)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if addr == "" {
		addr = ":8050"
	}
	log.Info("serving arena state", zap.String("source", src.desc), zap.String("addr", addr))
	return srv.Serve(ctx, addr)
}
