// Package store persists the controller's command log, IR-send log,
// and saved controller state to a local SQLite database, adapted from
// the teacher's pkg/config SQLite provider (same connection pragmas,
// same pattern of one explicit transaction per write).
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/kimmoahola/ilp-commander/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS command_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	command TEXT NOT NULL,
	param TEXT NOT NULL DEFAULT '',
	ts TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ir_send_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	command TEXT NOT NULL,
	ts TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS saved_state (
	name TEXT PRIMARY KEY,
	json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_command_log_ts ON command_log(ts);
CREATE INDEX IF NOT EXISTS idx_ir_send_log_ts ON ir_send_log(ts);
`

// Store wraps the SQLite connection used for all controller
// persistence.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at dbPath,
// with the same busy-timeout/WAL pragmas the teacher's config
// provider uses for a single-writer workload.
func Open(dbPath string) (*Store, error) {
	connStr := fmt.Sprintf("%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendCommandLog records an accepted operator command (spec §3
// CommandLog, §6 persisted layout).
func (s *Store) AppendCommandLog(entry model.CommandLogEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO command_log (command, param, ts) VALUES (?, ?, ?)",
		entry.Command, entry.Param, entry.TS.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting command log row: %w", err)
	}
	return tx.Commit()
}

// MostRecentCommand returns the newest command_log row, or ok=false
// if the table is empty (spec §4.10 ReadLast.run).
func (s *Store) MostRecentCommand() (entry model.CommandLogEntry, ok bool, err error) {
	row := s.db.QueryRow("SELECT id, command, param, ts FROM command_log ORDER BY id DESC LIMIT 1")
	var tsRaw string
	scanErr := row.Scan(&entry.ID, &entry.Command, &entry.Param, &tsRaw)
	if scanErr == sql.ErrNoRows {
		return model.CommandLogEntry{}, false, nil
	}
	if scanErr != nil {
		return model.CommandLogEntry{}, false, fmt.Errorf("scanning command log row: %w", scanErr)
	}
	ts, parseErr := time.Parse(time.RFC3339, tsRaw)
	if parseErr != nil {
		return model.CommandLogEntry{}, false, fmt.Errorf("parsing command log timestamp: %w", parseErr)
	}
	entry.TS = ts
	return entry, true, nil
}

// AppendIRSendLog records a successful IR transmission (spec §3
// IRSendLog).
func (s *Store) AppendIRSendLog(entry model.IRSendLogEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO ir_send_log (command, ts) VALUES (?, ?)",
		entry.Command, entry.TS.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting ir send log row: %w", err)
	}
	return tx.Commit()
}

const savedStateName = "auto"

// LoadSavedState reads the controller's persisted state (spec §3
// SavedState, §6: "only Auto.controller is stored"; SPEC_FULL.md §3.1
// widens the record to include the edge-policy fields needed to
// survive a restart without resetting the minimum-on-time guarantee).
// Returns ok=false if nothing has been saved yet.
func (s *Store) LoadSavedState() (state model.SavedState, ok bool, err error) {
	row := s.db.QueryRow("SELECT json FROM saved_state WHERE name = ?", savedStateName)
	var blob string
	scanErr := row.Scan(&blob)
	if scanErr == sql.ErrNoRows {
		return model.SavedState{}, false, nil
	}
	if scanErr != nil {
		return model.SavedState{}, false, fmt.Errorf("scanning saved state row: %w", scanErr)
	}
	parsed, parseErr := decodeSavedState(blob)
	if parseErr != nil {
		return model.SavedState{}, false, fmt.Errorf("decoding saved state: %w", parseErr)
	}
	return parsed, true, nil
}

// SaveState persists the controller's state. A failure here is not
// fatal to the pipeline (spec §7 "Persistence failure": log and
// continue, the integral is recomputed over time from live errors) —
// callers are expected to log the error and carry on.
func (s *Store) SaveState(state model.SavedState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	blob := encodeSavedState(state)
	_, err = tx.Exec(
		"INSERT INTO saved_state (name, json) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET json = excluded.json",
		savedStateName, blob,
	)
	if err != nil {
		return fmt.Errorf("upserting saved state row: %w", err)
	}
	return tx.Commit()
}

// savedStateJSON mirrors model.SavedState for JSON (de)serialization;
// the integral is kept as a decimal string per spec §9 ("keep the
// integral as Decimal persisted as its decimal string").
type savedStateJSON struct {
	Integral         string     `json:"integral"`
	LastCommandToken string     `json:"last_command_token,omitempty"`
	HeatingStartTime *time.Time `json:"heating_start_time,omitempty"`
}

func encodeSavedState(s model.SavedState) string {
	j := savedStateJSON{
		Integral:         s.Integral.String(),
		LastCommandToken: s.LastCommandToken,
		HeatingStartTime: s.HeatingStartTime,
	}
	b, _ := json.Marshal(j)
	return string(b)
}

func decodeSavedState(blob string) (model.SavedState, error) {
	var j savedStateJSON
	if err := json.Unmarshal([]byte(blob), &j); err != nil {
		return model.SavedState{}, fmt.Errorf("unmarshaling saved state json: %w", err)
	}
	integral, err := decimal.NewFromString(j.Integral)
	if err != nil {
		return model.SavedState{}, fmt.Errorf("parsing saved integral %q: %w", j.Integral, err)
	}
	return model.SavedState{
		Integral:         integral,
		LastCommandToken: j.LastCommandToken,
		HeatingStartTime: j.HeatingStartTime,
	}, nil
}
