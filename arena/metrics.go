package arena

import (
	"time"

	"github.com/rustyeddy/arena/internal/metrics"
	"github.com/rustyeddy/arena/journal"
	"github.com/rustyeddy/arena/ledger"
)

func observePhase(p Phase, start time.Time) {
	metrics.CycleDuration.WithLabelValues(string(p)).Observe(time.Since(start).Seconds())
}

func observeDecision(agent string, d time.Duration) {
	metrics.DecisionLatency.WithLabelValues(agent).Observe(d.Seconds())
}

func countQuoteFailure() { metrics.QuoteFailures.Inc() }

func countMissingQuote(instrument string) { metrics.MissingQuotes.WithLabelValues(instrument).Inc() }

func countAgentFailure(agent, cause string) {
	metrics.AgentFailures.WithLabelValues(agent, cause).Inc()
}

func countPersistFailure() { metrics.PersistFailures.Inc() }

func countTrade(t ledger.Trade) {
	metrics.TradesTotal.WithLabelValues(string(t.Kind), string(t.Status)).Inc()
	if !t.Filled() {
		metrics.Rejections.WithLabelValues(string(t.Reason)).Inc()
	}
}

func observeCycle(s *journal.State, elapsed time.Duration) {
	metrics.CyclesTotal.Inc()
	metrics.CurrentCycle.Set(float64(s.CurrentCycle))
	metrics.CycleDuration.WithLabelValues("CYCLE").Observe(elapsed.Seconds())
	for _, a := range s.Agents {
		metrics.PortfolioValue.WithLabelValues(a.ID).Set(a.PortfolioValue)
	}
}
