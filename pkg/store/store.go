// Package store persists turnwheel save files.
//
// A save file is one world snapshot plus the action log that produced it,
// the turnwheel cursor, and the uses spent so far. Saves live in named
// slots; every save gets a ULID so the newest in a slot sorts last. Two
// backends exist: SQLite in WAL mode (Store) and bbolt (BoltStore).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/daviddao/turnwheel/pkg/action"
	"github.com/daviddao/turnwheel/pkg/actionlog"
	"github.com/daviddao/turnwheel/pkg/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no save matches a lookup.
var ErrNotFound = errors.New("save not found")

// SaveFile is everything needed to resume a game at a save point.
type SaveFile struct {
	ID        string             `json:"id"`
	Slot      string             `json:"slot"`
	CreatedAt time.Time          `json:"created_at"`
	World     model.Snapshot     `json:"world"`
	Log       actionlog.Snapshot `json:"log"`
	UsesSpent int                `json:"uses_spent"`
	// Active is set when the save was taken mid turnwheel session.
	Active bool `json:"active"`
}

// SaveInfo summarizes a save without its payload.
type SaveInfo struct {
	ID        string    `json:"id"`
	Slot      string    `json:"slot"`
	CreatedAt time.Time `json:"created_at"`
	Actions   int       `json:"actions"`
	Cursor    int       `json:"cursor"`
	UsesSpent int       `json:"uses_spent"`
	Active    bool      `json:"active"`
}

// Info returns the summary of f.
func (f *SaveFile) Info() SaveInfo {
	return SaveInfo{
		ID:        f.ID,
		Slot:      f.Slot,
		CreatedAt: f.CreatedAt,
		Actions:   len(f.Log.Records),
		Cursor:    f.Log.Cursor,
		UsesSpent: f.UsesSpent,
		Active:    f.Active,
	}
}

// stamp fills in the ID and creation time of a new save.
func stamp(f *SaveFile) error {
	if f.Slot == "" {
		return fmt.Errorf("save slot is required")
	}
	if f.ID == "" {
		f.ID = ulid.Make().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Store keeps saves in SQLite with WAL mode.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// retryOnContention wraps retryOp from retry.go with the default config.
// All store write operations should use this to handle transient SQLite
// errors (BUSY, LOCKED, IOERR_SHORT_READ) under concurrent access.
func retryOnContention(ctx context.Context, fn func() error) error {
	return retryOp(ctx, defaultRetryConfig, fn)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		id         TEXT PRIMARY KEY,
		slot       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		world      TEXT NOT NULL,
		cursor     INTEGER NOT NULL,
		first_free INTEGER NOT NULL,
		uses_spent INTEGER NOT NULL DEFAULT 0,
		active     INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_saves_slot ON saves(slot, id);

	CREATE TABLE IF NOT EXISTS actions (
		save_id TEXT NOT NULL REFERENCES saves(id) ON DELETE CASCADE,
		seq     INTEGER NOT NULL,
		kind    TEXT NOT NULL,
		fields  TEXT NOT NULL,
		PRIMARY KEY (save_id, seq)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Saves
// ---------------------------------------------------------------------------

// Save writes f as a new save and returns its ID. An empty ID is assigned
// a fresh ULID and a zero CreatedAt is set to now.
func (s *Store) Save(ctx context.Context, f *SaveFile) (string, error) {
	if err := stamp(f); err != nil {
		return "", err
	}
	world, err := json.Marshal(f.World)
	if err != nil {
		return "", fmt.Errorf("marshal world: %w", err)
	}
	fields := make([][]byte, len(f.Log.Records))
	for i, rec := range f.Log.Records {
		if fields[i], err = json.Marshal(rec.Fields); err != nil {
			return "", fmt.Errorf("marshal action %d: %w", i, err)
		}
	}

	err = retryOnContention(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO saves (id, slot, created_at, world, cursor, first_free, uses_spent, active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.Slot, f.CreatedAt.UTC().Format(time.RFC3339Nano), string(world),
			f.Log.Cursor, f.Log.FirstFree, f.UsesSpent, f.Active,
		); err != nil {
			return err
		}
		for i, rec := range f.Log.Records {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO actions (save_id, seq, kind, fields) VALUES (?, ?, ?, ?)`,
				f.ID, i, string(rec.Kind), string(fields[i]),
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", fmt.Errorf("save %s: %w", f.ID, err)
	}
	return f.ID, nil
}

// Get loads the save with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*SaveFile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, slot, created_at, world, cursor, first_free, uses_spent, active
		 FROM saves WHERE id = ?`, id,
	)
	return s.load(ctx, row)
}

// Latest loads the newest save in slot.
func (s *Store) Latest(ctx context.Context, slot string) (*SaveFile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, slot, created_at, world, cursor, first_free, uses_spent, active
		 FROM saves WHERE slot = ? ORDER BY id DESC LIMIT 1`, slot,
	)
	return s.load(ctx, row)
}

func (s *Store) load(ctx context.Context, row *sql.Row) (*SaveFile, error) {
	f, err := scanSave(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, fields FROM actions WHERE save_id = ? ORDER BY seq`, f.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	f.Log.Records = []action.Record{}
	for rows.Next() {
		var kind, fields string
		if err := rows.Scan(&kind, &fields); err != nil {
			return nil, err
		}
		rec := action.Record{Kind: action.Kind(kind)}
		if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal action %d of save %s: %w", len(f.Log.Records), f.ID, err)
		}
		f.Log.Records = append(f.Log.Records, rec)
	}
	return f, rows.Err()
}

func scanSave(row *sql.Row) (*SaveFile, error) {
	var f SaveFile
	var createdStr, worldStr string
	if err := row.Scan(&f.ID, &f.Slot, &createdStr, &worldStr,
		&f.Log.Cursor, &f.Log.FirstFree, &f.UsesSpent, &f.Active); err != nil {
		return nil, err
	}
	var err error
	f.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for save %s: %w", f.ID, err)
	}
	if err := json.Unmarshal([]byte(worldStr), &f.World); err != nil {
		return nil, fmt.Errorf("unmarshal world for save %s: %w", f.ID, err)
	}
	return &f, nil
}

// ListSaves returns summaries of every save in slot, newest first. An
// empty slot lists all slots.
func (s *Store) ListSaves(ctx context.Context, slot string) ([]SaveInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.slot, s.created_at, s.cursor, s.uses_spent, s.active,
		        (SELECT COUNT(*) FROM actions a WHERE a.save_id = s.id)
		 FROM saves s WHERE ? = '' OR s.slot = ?
		 ORDER BY s.id DESC`, slot, slot,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []SaveInfo
	for rows.Next() {
		var info SaveInfo
		var createdStr string
		if err := rows.Scan(&info.ID, &info.Slot, &createdStr, &info.Cursor,
			&info.UsesSpent, &info.Active, &info.Actions); err != nil {
			return nil, err
		}
		if info.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return nil, fmt.Errorf("parse created_at for save %s: %w", info.ID, err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Rotate deletes all but the newest keep saves in slot and returns how
// many were removed.
func (s *Store) Rotate(ctx context.Context, slot string, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("rotate %s: keep must be at least 1, got %d", slot, keep)
	}
	var removed int64
	err := retryOnContention(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM saves WHERE slot = ? AND id NOT IN (
				SELECT id FROM saves WHERE slot = ? ORDER BY id DESC LIMIT ?
			)`, slot, slot, keep,
		)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("rotate %s: %w", slot, err)
	}
	return int(removed), nil
}
