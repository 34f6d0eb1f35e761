package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hamlet/internal/agents"
	"github.com/talgya/hamlet/internal/chronicle"
	"github.com/talgya/hamlet/internal/social"
)

// DB wraps a SQLite connection. Agents and businesses are stored as indexed
// columns plus their full JSON record, which is persisted verbatim.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	dsn := path
	if !strings.HasPrefix(path, ":memory:") {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps SQLite from reporting busy under the single-threaded stepper.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id INTEGER NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		birth_year INTEGER NOT NULL,
		sex INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		spouse_id INTEGER,
		residence_id INTEGER,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settlements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		founded INTEGER NOT NULL,
		treasury REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS businesses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id INTEGER NOT NULL,
		settlement_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS structures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		world_id INTEGER NOT NULL,
		settlement_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		built_at INTEGER NOT NULL,
		builder_id INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		agent_ids TEXT NOT NULL,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_agents_world ON agents(world_id);
	CREATE INDEX IF NOT EXISTS idx_agents_alive ON agents(alive);
	CREATE INDEX IF NOT EXISTS idx_businesses_world ON businesses(world_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type agentRow struct {
	ID   uint64 `db:"id"`
	Data string `db:"data"`
}

func (r agentRow) decode() (*agents.Agent, error) {
	var a agents.Agent
	if err := json.Unmarshal([]byte(r.Data), &a); err != nil {
		return nil, fmt.Errorf("decode agent %d: %w", r.ID, err)
	}
	a.ID = agents.AgentID(r.ID)
	return &a, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GetAgent loads one agent.
func (db *DB) GetAgent(ctx context.Context, id agents.AgentID) (*agents.Agent, error) {
	var row agentRow
	err := db.conn.GetContext(ctx, &row, "SELECT id, data FROM agents WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrAgentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %d: %w", id, err)
	}
	return row.decode()
}

// ListAgents loads every agent in the world, ordered by id.
func (db *DB) ListAgents(ctx context.Context, worldID uint64) ([]*agents.Agent, error) {
	var rows []agentRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT id, data FROM agents WHERE world_id = ? ORDER BY id", worldID); err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	out := make([]*agents.Agent, 0, len(rows))
	for _, r := range rows {
		a, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// CreateAgent inserts a and sets its id.
func (db *DB) CreateAgent(ctx context.Context, a *agents.Agent) (agents.AgentID, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return 0, fmt.Errorf("encode agent: %w", err)
	}
	res, err := db.conn.ExecContext(ctx, `INSERT INTO agents
		(world_id, first_name, last_name, birth_year, sex, alive, spouse_id, residence_id, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.WorldID, a.FirstName, a.LastName, a.BirthYear, a.Sex, boolInt(a.Alive), a.SpouseID, a.ResidenceID, string(data),
	)
	if err != nil {
		return 0, fmt.Errorf("insert agent: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert agent id: %w", err)
	}
	a.ID = agents.AgentID(id)
	return a.ID, nil
}

// UpdateAgents rewrites every given agent in one transaction. If any agent is
// missing nothing is written.
func (db *DB) UpdateAgents(ctx context.Context, list ...*agents.Agent) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `UPDATE agents SET
		first_name = ?, last_name = ?, birth_year = ?, sex = ?, alive = ?,
		spouse_id = ?, residence_id = ?, data = ?
		WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range list {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode agent %d: %w", a.ID, err)
		}
		res, err := stmt.ExecContext(ctx,
			a.FirstName, a.LastName, a.BirthYear, a.Sex, boolInt(a.Alive),
			a.SpouseID, a.ResidenceID, string(data), a.ID,
		)
		if err != nil {
			return fmt.Errorf("update agent %d: %w", a.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %d", ErrAgentNotFound, a.ID)
		}
	}
	return tx.Commit()
}

type businessRow struct {
	ID   uint64 `db:"id"`
	Data string `db:"data"`
}

func (r businessRow) decode() (*social.Business, error) {
	var b social.Business
	if err := json.Unmarshal([]byte(r.Data), &b); err != nil {
		return nil, fmt.Errorf("decode business %d: %w", r.ID, err)
	}
	b.ID = r.ID
	return &b, nil
}

// GetBusiness loads one business.
func (db *DB) GetBusiness(ctx context.Context, id uint64) (*social.Business, error) {
	var row businessRow
	err := db.conn.GetContext(ctx, &row, "SELECT id, data FROM businesses WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrBusinessNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get business %d: %w", id, err)
	}
	return row.decode()
}

// ListBusinesses loads every business in the world, ordered by id.
func (db *DB) ListBusinesses(ctx context.Context, worldID uint64) ([]*social.Business, error) {
	var rows []businessRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT id, data FROM businesses WHERE world_id = ? ORDER BY id", worldID); err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	out := make([]*social.Business, 0, len(rows))
	for _, r := range rows {
		b, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// CreateBusiness inserts b and sets its id.
func (db *DB) CreateBusiness(ctx context.Context, b *social.Business) (uint64, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return 0, fmt.Errorf("encode business: %w", err)
	}
	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO businesses (world_id, settlement_id, type, data) VALUES (?, ?, ?, ?)",
		b.WorldID, b.SettlementID, b.Type, string(data),
	)
	if err != nil {
		return 0, fmt.Errorf("insert business: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert business id: %w", err)
	}
	b.ID = uint64(id)
	return b.ID, nil
}

// UpdateBusiness rewrites a business.
func (db *DB) UpdateBusiness(ctx context.Context, b *social.Business) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode business %d: %w", b.ID, err)
	}
	res, err := db.conn.ExecContext(ctx,
		"UPDATE businesses SET settlement_id = ?, type = ?, data = ? WHERE id = ?",
		b.SettlementID, b.Type, string(data), b.ID,
	)
	if err != nil {
		return fmt.Errorf("update business %d: %w", b.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrBusinessNotFound, b.ID)
	}
	return nil
}

// GetSettlement loads one settlement.
func (db *DB) GetSettlement(ctx context.Context, id uint64) (*social.Settlement, error) {
	var s social.Settlement
	err := db.conn.GetContext(ctx, &s, "SELECT id, world_id, name, founded, treasury FROM settlements WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrSettlementNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get settlement %d: %w", id, err)
	}
	return &s, nil
}

// ListSettlements loads every settlement in the world.
func (db *DB) ListSettlements(ctx context.Context, worldID uint64) ([]*social.Settlement, error) {
	var out []*social.Settlement
	err := db.conn.SelectContext(ctx, &out,
		"SELECT id, world_id, name, founded, treasury FROM settlements WHERE world_id = ? ORDER BY id", worldID)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return out, nil
}

// CreateSettlement inserts s and sets its id.
func (db *DB) CreateSettlement(ctx context.Context, s *social.Settlement) (uint64, error) {
	res, err := db.conn.NamedExecContext(ctx,
		"INSERT INTO settlements (world_id, name, founded, treasury) VALUES (:world_id, :name, :founded, :treasury)", s)
	if err != nil {
		return 0, fmt.Errorf("insert settlement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert settlement id: %w", err)
	}
	s.ID = uint64(id)
	return s.ID, nil
}

// GetStructure loads one structure.
func (db *DB) GetStructure(ctx context.Context, id uint64) (*social.Structure, error) {
	var s social.Structure
	err := db.conn.GetContext(ctx, &s, "SELECT * FROM structures WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrStructureNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get structure %d: %w", id, err)
	}
	return &s, nil
}

// ListStructures loads every structure in the world.
func (db *DB) ListStructures(ctx context.Context, worldID uint64) ([]*social.Structure, error) {
	var out []*social.Structure
	if err := db.conn.SelectContext(ctx, &out, "SELECT * FROM structures WHERE world_id = ? ORDER BY id", worldID); err != nil {
		return nil, fmt.Errorf("list structures: %w", err)
	}
	return out, nil
}

// CreateStructure inserts s and sets its id.
func (db *DB) CreateStructure(ctx context.Context, s *social.Structure) (uint64, error) {
	res, err := db.conn.NamedExecContext(ctx, `INSERT INTO structures
		(world_id, settlement_id, kind, owner_id, built_at, builder_id)
		VALUES (:world_id, :settlement_id, :kind, :owner_id, :built_at, :builder_id)`, s)
	if err != nil {
		return 0, fmt.Errorf("insert structure: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert structure id: %w", err)
	}
	s.ID = uint64(id)
	return s.ID, nil
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(ctx context.Context, events []chronicle.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		ids, _ := json.Marshal(e.AgentIDs)
		data, _ := json.Marshal(e.Data)
		_, err := tx.ExecContext(ctx,
			"INSERT INTO events (id, tick, kind, category, description, agent_ids, data) VALUES (?, ?, ?, ?, ?, ?, ?)",
			e.ID.String(), e.Tick, e.Kind, e.Category, e.Text, string(ids), string(data),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

type eventRow struct {
	ID          string `db:"id"`
	Tick        uint64 `db:"tick"`
	Kind        string `db:"kind"`
	Category    string `db:"category"`
	Description string `db:"description"`
	AgentIDs    string `db:"agent_ids"`
	Data        string `db:"data"`
}

// RecentEvents returns the most recent events, newest first.
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]chronicle.Event, error) {
	var rows []eventRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT id, tick, kind, category, description, agent_ids, data FROM events ORDER BY seq DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	out := make([]chronicle.Event, 0, len(rows))
	for _, r := range rows {
		ev := chronicle.Event{
			Tick:     r.Tick,
			Kind:     chronicle.Kind(r.Kind),
			Category: chronicle.Category(r.Category),
			Text:     r.Description,
		}
		if err := ev.ID.UnmarshalText([]byte(r.ID)); err != nil {
			slog.Warn("bad event id", "id", r.ID, "error", err)
		}
		_ = json.Unmarshal([]byte(r.AgentIDs), &ev.AgentIDs)
		_ = json.Unmarshal([]byte(r.Data), &ev.Data)
		out = append(out, ev)
	}
	return out, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value, or "" if unset.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
