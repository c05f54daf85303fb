package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/arena/journal"
	"github.com/rustyeddy/arena/ledger"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query and export the trade history",
	Long: `Query the SQLite journal written by runs with history.sqlite_path, or
export the persisted state file.

Subcommands:
  agents    - List the agents in the journal
  trade     - Show a single trade by ID
  trades    - List an agent's trades
  snapshots - List an agent's cycle snapshots
  gaps      - Report cycles with no snapshot
  export    - Export the state file as CSV or an org report

Examples:
  arena journal trades momentum-1 --status REJECTED
  arena journal gaps momentum-1 --up-to 50
  arena journal export --format equity -o equity.csv`,
}

var journalAgentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agents in the journal",
	Args:  cobra.NoArgs,
	RunE:  runJournalAgents,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Show a single trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades [agent-id]",
	Short: "List trades, optionally for one agent",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalTrades,
}

var journalSnapshotsCmd = &cobra.Command{
	Use:   "snapshots <agent-id>",
	Short: "List an agent's cycle snapshots",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalSnapshots,
}

var journalGapsCmd = &cobra.Command{
	Use:   "gaps <agent-id>",
	Short: "Report cycles with no snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalGaps,
}

var journalExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the state file",
	Long: `Export the persisted state file.

Formats:
  equity - one CSV row per agent per cycle
  trades - one CSV row per trade, rejected ones included
  org    - an org-mode report with the leaderboard and open positions`,
	Args: cobra.NoArgs,
	RunE: runJournalExport,
}

var (
	journalDBPath string
	journalStatus string
	journalUpTo   int
	journalState  string
	journalFormat string
	journalOutput string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalAgentsCmd, journalTradeCmd, journalTradesCmd,
		journalSnapshotsCmd, journalGapsCmd, journalExportCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./arena.sqlite", "path to SQLite journal DB")
	journalTradesCmd.Flags().StringVar(&journalStatus, "status", "", "only FILLED or REJECTED trades")
	journalGapsCmd.Flags().IntVar(&journalUpTo, "up-to", 0, "last cycle to check (required)")
	_ = journalGapsCmd.MarkFlagRequired("up-to")

	journalExportCmd.Flags().StringVar(&journalState, "state", "./arena_state.json", "state file to export")
	journalExportCmd.Flags().StringVar(&journalFormat, "format", "equity", "equity, trades or org")
	journalExportCmd.Flags().StringVarP(&journalOutput, "output", "o", "", "output file (default stdout)")
}

func openJournal() (*journal.SQLite, error) {
	if _, err := os.Stat(journalDBPath); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalAgents(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	ids, err := j.Agents(cmd.Context())
	if err != nil {
		return fmt.Errorf("query agents: %w", err)
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	t, err := j.GetTrade(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}
	writeTradeOrg(cmd.OutOrStdout(), t)
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	agentID := ""
	if len(args) == 1 {
		agentID = args[0]
	}
	trades, err := j.ListTrades(cmd.Context(), agentID)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	if journalStatus != "" {
		want := ledger.Status(strings.ToUpper(journalStatus))
		kept := trades[:0]
		for _, t := range trades {
			if t.Status == want {
				kept = append(kept, t)
			}
		}
		trades = kept
	}
	writeTradesOrg(cmd.OutOrStdout(), trades)
	return nil
}

func runJournalSnapshots(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	snaps, err := j.ListSnapshots(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("query snapshots: %w", err)
	}
	writeSnapshotsOrg(cmd.OutOrStdout(), args[0], snaps)
	return nil
}

func runJournalGaps(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	missing, err := j.MissingCycles(cmd.Context(), args[0], journalUpTo)
	if err != nil {
		return fmt.Errorf("query gaps: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(missing) == 0 {
		fmt.Fprintf(out, "%s: no gaps in cycles 1..%d\n", args[0], journalUpTo)
		return nil
	}
	fmt.Fprintf(out, "%s: %d missing cycles\n", args[0], len(missing))
	for _, c := range missing {
		fmt.Fprintf(out, "- cycle %d\n", c)
	}
	return nil
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	fs, err := journal.NewFileStore(journalState)
	if err != nil {
		return err
	}
	st, err := fs.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load %s: %w", journalState, err)
	}

	var write func(io.Writer, *journal.State) error
	switch journalFormat {
	case "equity":
		write = journal.WriteEquityCSV
	case "trades":
		write = journal.WriteTradesCSV
	case "org":
		write = journal.WriteReportOrg
	default:
		return fmt.Errorf("unknown format %q (equity, trades, org)", journalFormat)
	}

	if journalOutput == "" {
		return write(cmd.OutOrStdout(), st)
	}
	f, err := os.Create(journalOutput)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := write(f, st); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", journalOutput)
	return nil
}

func writeTradeOrg(w io.Writer, t ledger.Trade) {
	fmt.Fprintf(w, "* %s %s %s\n", t.Kind, t.Instrument, t.Status)
	fmt.Fprintln(w, ":PROPERTIES:")
	fmt.Fprintf(w, ":TRADE_ID: %s\n", t.ID)
	fmt.Fprintf(w, ":AGENT_ID: %s\n", t.AgentID)
	fmt.Fprintf(w, ":TIME: %s\n", t.Time.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, ":QUANTITY: %.8f\n", t.Quantity)
	fmt.Fprintf(w, ":PRICE: %.8f\n", t.Price)
	fmt.Fprintf(w, ":VALUE: %.2f\n", t.Value)
	if t.Reason != "" {
		fmt.Fprintf(w, ":REASON: %s\n", t.Reason)
	}
	if t.RealizedPL != 0 {
		fmt.Fprintf(w, ":REALIZED_PL: %.2f\n", t.RealizedPL)
	}
	fmt.Fprintln(w, ":END:")
	if t.Reasoning != "" {
		fmt.Fprintln(w, t.Reasoning)
	}
}

func writeTradesOrg(w io.Writer, trades []ledger.Trade) {
	fmt.Fprintln(w, "| Time | Agent | Kind | Instrument | Qty | Price | Status | Reason | P/L |")
	fmt.Fprintln(w, "|-")
	for _, t := range trades {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %.6f | %.4f | %s | %s | %.2f |\n",
			t.Time.Format("2006-01-02 15:04:05"), t.AgentID, t.Kind, t.Instrument,
			t.Quantity, t.Price, t.Status, t.Reason, t.RealizedPL)
	}
}

func writeSnapshotsOrg(w io.Writer, agentID string, snaps []ledger.CycleSnapshot) {
	fmt.Fprintf(w, "* %s\n", agentID)
	fmt.Fprintln(w, "| Cycle | Time | Value | Cash | Return % | Trades | Win % | Positions |")
	fmt.Fprintln(w, "|-")
	for _, s := range snaps {
		fmt.Fprintf(w, "| %d | %s | %.2f | %.2f | %.2f | %d | %.1f | %d |\n",
			s.Cycle, s.Time.Format("2006-01-02 15:04:05"), s.PortfolioValue, s.Cash,
			s.TotalReturnPct, s.TotalTrades, s.WinRate, s.OpenPositions)
	}
}
