package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kalambet/mentor/internal/roadmap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width so that lexical order on the TEXT column matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store wraps a SQLite database holding generated roadmaps.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "mentor.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Roadmaps ---

// CreateRoadmap assigns the next id and a creation timestamp, persists the
// roadmap and returns the stored record.
func (s *Store) CreateRoadmap(r NewRoadmap) (Roadmap, error) {
	visual, err := encodeVisualData(r.VisualData)
	if err != nil {
		return Roadmap{}, err
	}

	createdAt := s.now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO roadmaps (user_query, title, content, visual_data, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.UserQuery, r.Title, r.Content, visual, createdAt.Format(timeLayout),
	)
	if err != nil {
		return Roadmap{}, fmt.Errorf("inserting roadmap: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Roadmap{}, fmt.Errorf("reading roadmap id: %w", err)
	}

	return Roadmap{
		ID:         id,
		UserQuery:  r.UserQuery,
		Title:      r.Title,
		Content:    r.Content,
		VisualData: r.VisualData,
		CreatedAt:  createdAt,
	}, nil
}

// GetRoadmap returns the roadmap with the given id or ErrNotFound.
func (s *Store) GetRoadmap(id int64) (Roadmap, error) {
	var (
		r         Roadmap
		visual    sql.NullString
		createdAt string
		updatedAt sql.NullString
	)
	err := s.db.QueryRow(`
		SELECT id, user_query, title, content, visual_data, created_at, updated_at
		FROM roadmaps WHERE id = ?`, id,
	).Scan(&r.ID, &r.UserQuery, &r.Title, &r.Content, &visual, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Roadmap{}, ErrNotFound
	}
	if err != nil {
		return Roadmap{}, err
	}

	if r.VisualData, err = decodeVisualData(visual); err != nil {
		return Roadmap{}, fmt.Errorf("roadmap %d: %w", id, err)
	}
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Roadmap{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if updatedAt.Valid {
		t, err := time.Parse(timeLayout, updatedAt.String)
		if err != nil {
			return Roadmap{}, fmt.Errorf("parsing updated_at: %w", err)
		}
		r.UpdatedAt = &t
	}
	return r, nil
}

// ListRoadmaps returns one page of summaries, newest first, along with the
// total number of stored roadmaps regardless of the page window.
func (s *Store) ListRoadmaps(skip, limit int) ([]RoadmapSummary, int, error) {
	if skip < 0 {
		return nil, 0, fmt.Errorf("skip must be non-negative, got %d", skip)
	}
	if limit <= 0 {
		return nil, 0, fmt.Errorf("limit must be positive, got %d", limit)
	}

	total, err := s.CountRoadmaps()
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT id, user_query, title, created_at
		FROM roadmaps ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, skip,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := []RoadmapSummary{}
	for rows.Next() {
		var r RoadmapSummary
		var createdAt string
		if err := rows.Scan(&r.ID, &r.UserQuery, &r.Title, &createdAt); err != nil {
			return nil, 0, err
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, 0, fmt.Errorf("parsing created_at: %w", err)
		}
		r.CreatedAt = t
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// CountRoadmaps returns the number of stored roadmaps.
func (s *Store) CountRoadmaps() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM roadmaps").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting roadmaps: %w", err)
	}
	return n, nil
}

// DeleteRoadmap removes the roadmap permanently. Deleting a missing id
// returns ErrNotFound.
func (s *Store) DeleteRoadmap(id int64) error {
	res, err := s.db.Exec(`DELETE FROM roadmaps WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeVisualData(v *roadmap.VisualData) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshaling visual data: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeVisualData(raw sql.NullString) (*roadmap.VisualData, error) {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil, nil
	}
	var v roadmap.VisualData
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return nil, fmt.Errorf("decoding visual data: %w", err)
	}
	return &v, nil
}
