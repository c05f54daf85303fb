package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	kind TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	value REAL NOT NULL,
	time DATETIME NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL,
	reasoning TEXT NOT NULL,
	realized_pl REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_agent_time ON trades(agent_id, time);

CREATE TABLE IF NOT EXISTS cycle_snapshots (
	agent_id TEXT NOT NULL,
	cycle INTEGER NOT NULL,
	time DATETIME NOT NULL,
	portfolio_value REAL NOT NULL,
	cash REAL NOT NULL,
	total_return_pct REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	open_positions INTEGER NOT NULL,
	realized_pl REAL NOT NULL,
	unrealized_pl REAL NOT NULL,
	PRIMARY KEY (agent_id, cycle)
);

CREATE TABLE IF NOT EXISTS arena_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	current_cycle INTEGER NOT NULL,
	generated_at DATETIME NOT NULL,
	body TEXT NOT NULL
);
`
