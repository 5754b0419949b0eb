// Package record persists episode rollouts to sqlite for offline
// analysis: one row per episode (seed, outcome) and one row per control
// step (action, reward, agent tip position). The trajectory-plot tool
// reads this store.
package record

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed episode archive. Safe for use from a single
// writer goroutine.
type Store struct {
	db *sql.DB
}

// Episode is one archived rollout.
type Episode struct {
	ID        string
	Seed      int64
	ObsMode   string
	Steps     int
	Success   bool
	CreatedAt time.Time
}

// Step is one archived control step.
type Step struct {
	EpisodeID string
	Index     int
	Action    []float64
	Reward    float64
	Success   bool
	TipX      float64
	TipY      float64
}

// Open opens (or creates) the store at path. Call MigrateUp before first
// use of a fresh database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open episode store: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// MigrateUp runs all pending migrations up to the latest version.
// Returns nil if the schema is already current.
func (s *Store) MigrateUp(migrationsDir string) error {
	absPath, err := filepath.Abs(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", absPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Note: m is not closed here because that would close the
	// underlying DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// BeginEpisode inserts an episode row and returns its id.
func (s *Store) BeginEpisode(seed int64, obsMode string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO episodes (id, seed, obs_mode, steps, success)
		VALUES (?, ?, ?, 0, 0)
	`, id, seed, obsMode)
	if err != nil {
		return "", fmt.Errorf("begin episode: %w", err)
	}
	return id, nil
}

// RecordStep appends one control step to an episode.
func (s *Store) RecordStep(step Step) error {
	actionJSON, err := json.Marshal(step.Action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO steps (episode_id, step_index, action, reward, success, tip_x, tip_y)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, step.EpisodeID, step.Index, string(actionJSON), step.Reward, step.Success, step.TipX, step.TipY)
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// FinishEpisode stamps the episode's final step count and outcome.
func (s *Store) FinishEpisode(id string, steps int, success bool) error {
	res, err := s.db.Exec(`
		UPDATE episodes SET steps = ?, success = ? WHERE id = ?
	`, steps, success, id)
	if err != nil {
		return fmt.Errorf("finish episode: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("finish episode: unknown episode %q", id)
	}
	return nil
}

// Episodes lists archived episodes, newest first.
func (s *Store) Episodes() ([]Episode, error) {
	rows, err := s.db.Query(`
		SELECT id, seed, obs_mode, steps, success, created_at
		FROM episodes ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var out []Episode
	for rows.Next() {
		var ep Episode
		if err := rows.Scan(&ep.ID, &ep.Seed, &ep.ObsMode, &ep.Steps, &ep.Success, &ep.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// Trajectory returns an episode's steps in step order.
func (s *Store) Trajectory(episodeID string) ([]Step, error) {
	rows, err := s.db.Query(`
		SELECT episode_id, step_index, action, reward, success, tip_x, tip_y
		FROM steps WHERE episode_id = ? ORDER BY step_index
	`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("load trajectory: %w", err)
	}
	defer rows.Close()

	var out []Step
	for rows.Next() {
		var st Step
		var actionJSON string
		if err := rows.Scan(&st.EpisodeID, &st.Index, &actionJSON, &st.Reward, &st.Success, &st.TipX, &st.TipY); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if err := json.Unmarshal([]byte(actionJSON), &st.Action); err != nil {
			return nil, fmt.Errorf("decode action for episode %s step %d: %w", st.EpisodeID, st.Index, err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
