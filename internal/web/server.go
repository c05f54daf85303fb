// Package web serves the arena state read-only over HTTP and pushes each
// new state to websocket viewers.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rustyeddy/arena/internal/metrics"
	"github.com/rustyeddy/arena/journal"
	"github.com/rustyeddy/arena/ledger"
)

// StateFunc returns the latest state, or journal.ErrNoState before the
// first cycle.
type StateFunc func(ctx context.Context) (*journal.State, error)

// FromStore reads the state from a persisted store.
func FromStore(s journal.Store) StateFunc {
	return s.Load
}

type Server struct {
	state  StateFunc
	hub    *Hub
	log    *zap.Logger
	router chi.Router
}

func NewServer(state StateFunc, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		state: state,
		hub:   NewHub(log),
		log:   log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Hub() *Hub { return s.hub }

// Publish pushes st to websocket viewers. It has the shape of an arena
// observer.
func (s *Server) Publish(st *journal.State) { s.hub.Publish(st) }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "arena"})
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/agents/{agentID}", s.handleAgent)
		r.Get("/agents/{agentID}/cycles", s.handleAgentCycles)
		r.Get("/agents/{agentID}/trades", s.handleAgentTrades)
	})
	return r
}

// Serve listens on addr and runs the hub until ctx ends, then shuts the
// server down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("viewer listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.log.Info("viewer shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Follow publishes every state received until states closes.
func (s *Server) Follow(states <-chan *journal.State) {
	for st := range states {
		s.Publish(st)
	}
}

// LeaderboardRow is one line of the leaderboard endpoint.
type LeaderboardRow struct {
	Rank           int     `json:"rank"`
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	PortfolioValue float64 `json:"portfolio_value"`
	CashBalance    float64 `json:"cash_balance"`
	TotalReturnPct float64 `json:"total_return_pct"`
	TotalTrades    int     `json:"total_trades"`
	WinRate        float64 `json:"win_rate"`
	OpenPositions  int     `json:"num_positions"`
}

func Leaderboard(st *journal.State) []LeaderboardRow {
	rows := make([]LeaderboardRow, 0, len(st.Agents))
	for i, a := range st.Agents {
		rows = append(rows, LeaderboardRow{
			Rank:           i + 1,
			ID:             a.ID,
			Name:           a.Name,
			PortfolioValue: a.PortfolioValue,
			CashBalance:    a.CashBalance,
			TotalReturnPct: a.TotalReturnPct,
			TotalTrades:    a.TotalTrades,
			WinRate:        a.WinRate,
			OpenPositions:  len(a.Positions),
		})
	}
	return rows
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (*journal.State, bool) {
	st, err := s.state(r.Context())
	if errors.Is(err, journal.ErrNoState) {
		writeError(w, http.StatusNotFound, "no state yet")
		return nil, false
	}
	if err != nil {
		s.log.Error("load state", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "state unavailable")
		return nil, false
	}
	return st, true
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if st, ok := s.load(w, r); ok {
		writeJSON(w, http.StatusOK, st)
	}
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	st, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current_cycle": st.CurrentCycle,
		"generated_at":  st.GeneratedAt,
		"leaderboard":   Leaderboard(st),
	})
}

func (s *Server) agent(w http.ResponseWriter, r *http.Request) (journal.AgentRecord, bool) {
	st, ok := s.load(w, r)
	if !ok {
		return journal.AgentRecord{}, false
	}
	id := chi.URLParam(r, "agentID")
	rec, ok := st.Agent(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown agent "+id)
		return journal.AgentRecord{}, false
	}
	return rec, true
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	if rec, ok := s.agent(w, r); ok {
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleAgentCycles(w http.ResponseWriter, r *http.Request) {
	if rec, ok := s.agent(w, r); ok {
		writeJSON(w, http.StatusOK, rec.CycleHistory)
	}
}

// handleAgentTrades lists an agent's trades, optionally filtered with
// ?status=FILLED or ?status=REJECTED.
func (s *Server) handleAgentTrades(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.agent(w, r)
	if !ok {
		return
	}
	status := ledger.Status(r.URL.Query().Get("status"))
	if status == "" {
		writeJSON(w, http.StatusOK, rec.TradeHistory)
		return
	}
	out := make([]ledger.Trade, 0, len(rec.TradeHistory))
	for _, t := range rec.TradeHistory {
		if t.Status == status {
			out = append(out, t)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var initial *journal.State
	if st, err := s.state(r.Context()); err == nil {
		initial = st
	}
	s.hub.serveWS(w, r, initial)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
