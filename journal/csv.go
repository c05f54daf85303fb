package journal

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// WriteEquityCSV writes one row per agent per cycle.
func WriteEquityCSV(w io.Writer, s *State) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"agent_id", "name", "cycle", "time", "portfolio_value", "cash", "total_return_pct",
		"total_trades", "win_rate", "open_positions", "realized_pl", "unrealized_pl",
	}); err != nil {
		return err
	}

	for _, a := range s.Agents {
		for _, c := range a.CycleHistory {
			if err := cw.Write([]string{
				a.ID,
				a.Name,
				strconv.Itoa(c.Cycle),
				c.Time.Format(time.RFC3339),
				f(c.PortfolioValue),
				f(c.Cash),
				f(c.TotalReturnPct),
				strconv.Itoa(c.TotalTrades),
				f(c.WinRate),
				strconv.Itoa(c.OpenPositions),
				f(c.RealizedPL),
				f(c.UnrealizedPL),
			}); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTradesCSV writes every trade, filled and rejected.
func WriteTradesCSV(w io.Writer, s *State) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"trade_id", "agent_id", "instrument", "kind", "quantity", "price", "value",
		"time", "status", "reason", "realized_pl", "reasoning",
	}); err != nil {
		return err
	}

	for _, a := range s.Agents {
		for _, t := range a.TradeHistory {
			if err := cw.Write([]string{
				t.ID,
				a.ID,
				t.Instrument,
				string(t.Kind),
				f(t.Quantity),
				f(t.Price),
				f(t.Value),
				t.Time.Format(time.RFC3339),
				string(t.Status),
				string(t.Reason),
				f(t.RealizedPL),
				t.Reasoning,
			}); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
