// Package persistence provides SQLite-based save and resume of agent state.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/drift/components"
)

// ErrNoSave is returned by Load when the store holds no completed save.
var ErrNoSave = errors.New("persistence: no save")

// AgentRecord is the stored form of one agent. State is always a public
// state; transient sub-states are collapsed on save.
type AgentRecord struct {
	ID         uint32              `db:"id"`
	Faction    uint16              `db:"faction"`
	Role       components.Role     `db:"role"`
	Class      string              `db:"class"`
	Home       uint32              `db:"home"`
	Sector     components.SectorID `db:"sector"`
	X          float32             `db:"x"`
	Y          float32             `db:"y"`
	Heading    float32             `db:"heading"`
	State      components.State    `db:"state"`
	TaskJSON   string              `db:"task_json"`
	RouteJSON  string              `db:"route_json"`
	RouteIndex int                 `db:"route_index"`
	Shield     float32             `db:"shield"`
	Armor      float32             `db:"armor"`
	Hull       float32             `db:"hull"`
	Energy     float32             `db:"energy"`
	Ore        float32             `db:"ore"`
	Goods      float32             `db:"goods"`
	Credits    float64             `db:"credits"`
}

// SetTask stores the task as JSON. Nil clears it.
func (r *AgentRecord) SetTask(t *components.Task) {
	if t == nil {
		r.TaskJSON = ""
		return
	}
	data, _ := json.Marshal(t)
	r.TaskJSON = string(data)
}

// Task decodes the stored task. Nil when none was stored.
func (r *AgentRecord) Task() (*components.Task, error) {
	if r.TaskJSON == "" {
		return nil, nil
	}
	var t components.Task
	if err := json.Unmarshal([]byte(r.TaskJSON), &t); err != nil {
		return nil, fmt.Errorf("decoding task of agent %d: %w", r.ID, err)
	}
	return &t, nil
}

// SetRoute stores remaining route progress.
func (r *AgentRecord) SetRoute(route []components.SectorID, index int) {
	r.RouteIndex = index
	if len(route) == 0 {
		r.RouteJSON = ""
		return
	}
	data, _ := json.Marshal(route)
	r.RouteJSON = string(data)
}

// Route decodes the stored route.
func (r *AgentRecord) Route() ([]components.SectorID, error) {
	if r.RouteJSON == "" {
		return nil, nil
	}
	var route []components.SectorID
	if err := json.Unmarshal([]byte(r.RouteJSON), &route); err != nil {
		return nil, fmt.Errorf("decoding route of agent %d: %w", r.ID, err)
	}
	return route, nil
}

// AsteroidRecord is the stored ore level of one asteroid.
type AsteroidRecord struct {
	Sector components.SectorID `db:"sector"`
	X      float32             `db:"x"`
	Y      float32             `db:"y"`
	Ore    float32             `db:"ore"`
}

// Snapshot is one complete save.
type Snapshot struct {
	RunID     string
	Seed      int64
	Tick      int64
	Now       float64
	NextID    uint32
	Agents    []AgentRecord
	Asteroids []AsteroidRecord
}

// DB wraps a SQLite connection for simulation state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

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
		id INTEGER PRIMARY KEY,
		faction INTEGER NOT NULL,
		role INTEGER NOT NULL,
		class TEXT NOT NULL,
		home INTEGER NOT NULL,
		sector INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		heading REAL NOT NULL,
		state INTEGER NOT NULL,
		task_json TEXT NOT NULL,
		route_json TEXT NOT NULL,
		route_index INTEGER NOT NULL,
		shield REAL NOT NULL,
		armor REAL NOT NULL,
		hull REAL NOT NULL,
		energy REAL NOT NULL,
		ore REAL NOT NULL,
		goods REAL NOT NULL,
		credits REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS asteroids (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sector INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		ore REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sim_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agents_sector ON agents(sector);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveAgents writes all agents to the database (full replace).
func (db *DB) SaveAgents(records []AgentRecord) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO agents
		(id, faction, role, class, home, sector, x, y, heading, state,
		 task_json, route_json, route_index, shield, armor, hull, energy, ore, goods, credits)
		VALUES (:id, :faction, :role, :class, :home, :sector, :x, :y, :heading, :state,
		 :task_json, :route_json, :route_index, :shield, :armor, :hull, :energy, :ore, :goods, :credits)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		r.State = r.State.Public()
		if _, err := stmt.Exec(r); err != nil {
			return fmt.Errorf("insert agent %d: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// LoadAgents returns every stored agent ordered by ID.
func (db *DB) LoadAgents() ([]AgentRecord, error) {
	var records []AgentRecord
	err := db.conn.Select(&records, "SELECT * FROM agents ORDER BY id")
	return records, err
}

// SaveAsteroids writes all asteroids to the database (full replace).
func (db *DB) SaveAsteroids(records []AsteroidRecord) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM asteroids"); err != nil {
		return err
	}
	for _, r := range records {
		if _, err := tx.NamedExec("INSERT INTO asteroids (sector, x, y, ore) VALUES (:sector, :x, :y, :ore)", r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadAsteroids returns every stored asteroid in insertion order.
func (db *DB) LoadAsteroids() ([]AsteroidRecord, error) {
	var records []AsteroidRecord
	err := db.conn.Select(&records, "SELECT sector, x, y, ore FROM asteroids ORDER BY id")
	return records, err
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO sim_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM sim_meta WHERE key = ?", key)
	return value, err
}

// Save performs a full save. The tick is written last so a torn save
// is never reported as complete.
func (db *DB) Save(s Snapshot) error {
	slog.Info("saving state", "agents", len(s.Agents), "asteroids", len(s.Asteroids), "tick", s.Tick)

	if err := db.SaveAgents(s.Agents); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	if err := db.SaveAsteroids(s.Asteroids); err != nil {
		return fmt.Errorf("save asteroids: %w", err)
	}
	meta := [][2]string{
		{"run_id", s.RunID},
		{"seed", strconv.FormatInt(s.Seed, 10)},
		{"now", strconv.FormatFloat(s.Now, 'g', -1, 64)},
		{"next_id", strconv.FormatUint(uint64(s.NextID), 10)},
		{"tick", strconv.FormatInt(s.Tick, 10)},
	}
	for _, kv := range meta {
		if err := db.SaveMeta(kv[0], kv[1]); err != nil {
			return fmt.Errorf("save meta %s: %w", kv[0], err)
		}
	}

	slog.Info("state saved")
	return nil
}

// Load reads the last complete save. Returns ErrNoSave for an empty store.
func (db *DB) Load() (Snapshot, error) {
	var s Snapshot

	tick, err := db.GetMeta("tick")
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNoSave
	}
	if err != nil {
		return s, fmt.Errorf("load meta: %w", err)
	}
	if s.Tick, err = strconv.ParseInt(tick, 10, 64); err != nil {
		return s, fmt.Errorf("parse tick: %w", err)
	}

	if s.RunID, err = db.GetMeta("run_id"); err != nil {
		return s, fmt.Errorf("load run id: %w", err)
	}
	if s.Seed, err = db.metaInt("seed"); err != nil {
		return s, err
	}
	nextID, err := db.metaInt("next_id")
	if err != nil {
		return s, err
	}
	s.NextID = uint32(nextID)
	now, err := db.GetMeta("now")
	if err != nil {
		return s, fmt.Errorf("load now: %w", err)
	}
	if s.Now, err = strconv.ParseFloat(now, 64); err != nil {
		return s, fmt.Errorf("parse now: %w", err)
	}

	if s.Agents, err = db.LoadAgents(); err != nil {
		return s, fmt.Errorf("load agents: %w", err)
	}
	if s.Asteroids, err = db.LoadAsteroids(); err != nil {
		return s, fmt.Errorf("load asteroids: %w", err)
	}
	return s, nil
}

func (db *DB) metaInt(key string) (int64, error) {
	v, err := db.GetMeta(key)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", key, err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
