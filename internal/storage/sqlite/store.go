// Package sqlite persists labeling runs and their per-event labels in a
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/voxlabel/internal/config"
	"github.com/banshee-data/voxlabel/internal/label"
	"github.com/banshee-data/voxlabel/internal/monitoring"
	"github.com/banshee-data/voxlabel/internal/timeutil"
	"github.com/banshee-data/voxlabel/internal/voxel"
)

// ErrNotFound is returned when a run or event does not exist.
var ErrNotFound = errors.New("not found")

// connPragmas are applied by the driver to every pooled connection.
const connPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Run is one labeling pass over a set of events with a fixed
// configuration.
type Run struct {
	RunID          string           `json:"run_id"`
	BBoxAlgorithm  string           `json:"bbox_algorithm"`
	LabelAlgorithm string           `json:"label_algorithm"`
	Config         config.RunConfig `json:"config"`
	CreatedAt      time.Time        `json:"created_at"`
	NumEvents      int              `json:"num_events"`
}

// EventSummary describes a stored label without decoding it.
type EventSummary struct {
	RunID           string    `json:"run_id"`
	EventID         string    `json:"event_id"`
	NumParticles    int       `json:"num_particles"`
	NumVoxels       int       `json:"num_voxels"`
	TotalEnergy     float64   `json:"total_energy"`
	DroppedDeposits int       `json:"dropped_deposits"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store reads and writes labels.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
	log   *monitoring.Logger
}

// Open opens or creates the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?"+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	s := &Store{
		db:    db,
		clock: timeutil.RealClock{},
		log:   monitoring.NewLogger("migrate", monitoring.LevelWarning),
	}
	if err := migrateUp(db, s.log); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetClock replaces the clock used for created_at timestamps.
func (s *Store) SetClock(c timeutil.Clock) { s.clock = c }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// CreateRun records a new run for rc and returns it with a fresh id.
func (s *Store) CreateRun(ctx context.Context, rc config.RunConfig) (*Run, error) {
	cfg, err := json.Marshal(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run config: %w", err)
	}
	run := &Run{
		RunID:          uuid.New().String(),
		BBoxAlgorithm:  rc.BBox.Name,
		LabelAlgorithm: rc.Label.Name,
		Config:         rc,
		CreatedAt:      s.clock.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO label_runs (run_id, bbox_algorithm, label_algorithm, config_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.BBoxAlgorithm, run.LabelAlgorithm, string(cfg), run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// SaveEvent stores l under runID, replacing any label stored for the same
// event.
func (s *Store) SaveEvent(ctx context.Context, runID string, l *label.Label) error {
	particles, err := encodeParticles(l.Particles)
	if err != nil {
		return fmt.Errorf("event %s: %w", l.EventID, err)
	}
	owners, err := encodeOwners(l.Owners)
	if err != nil {
		return fmt.Errorf("event %s: %w", l.EventID, err)
	}
	m := l.Meta
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO label_events (
			run_id, event_id,
			origin_x, origin_y, origin_z, pitch_x, pitch_y, pitch_z, nx, ny, nz,
			energy_blob, dedx_blob, particles_cbor, owners_cbor,
			dropped_deposits, num_particles, num_voxels, total_energy, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, l.EventID,
		m.Origin.X, m.Origin.Y, m.Origin.Z, m.Pitch.X, m.Pitch.Y, m.Pitch.Z, m.NX, m.NY, m.NZ,
		encodeVoxels(l.Energy), encodeVoxels(l.DEDX), particles, owners,
		l.DroppedDeposits, len(l.Particles), l.Energy.Len(), l.TotalEnergy(), s.clock.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", l.EventID, err)
	}
	return nil
}

// LoadEvent returns the label stored for eventID in runID.
func (s *Store) LoadEvent(ctx context.Context, runID, eventID string) (*label.Label, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT origin_x, origin_y, origin_z, pitch_x, pitch_y, pitch_z, nx, ny, nz,
		       energy_blob, dedx_blob, particles_cbor, owners_cbor, dropped_deposits
		FROM label_events
		WHERE run_id = ? AND event_id = ?`, runID, eventID)

	l := &label.Label{EventID: eventID}
	var m voxel.ImageMeta
	var energy, dedx, particles, owners []byte
	err := row.Scan(
		&m.Origin.X, &m.Origin.Y, &m.Origin.Z, &m.Pitch.X, &m.Pitch.Y, &m.Pitch.Z, &m.NX, &m.NY, &m.NZ,
		&energy, &dedx, &particles, &owners, &l.DroppedDeposits,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s in run %s: %w", eventID, runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}
	l.Meta = m

	if l.Energy, err = decodeVoxels(energy); err != nil {
		return nil, fmt.Errorf("event %s energy: %w", eventID, err)
	}
	if l.DEDX, err = decodeVoxels(dedx); err != nil {
		return nil, fmt.Errorf("event %s dedx: %w", eventID, err)
	}
	if l.Particles, err = decodeParticles(particles); err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	if l.Owners, err = decodeOwners(owners); err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	return l, nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	runs, err := s.queryRuns(ctx, "WHERE r.run_id = ?", runID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return runs[0], nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	return s.queryRuns(ctx, "")
}

func (s *Store) queryRuns(ctx context.Context, where string, args ...interface{}) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.bbox_algorithm, r.label_algorithm, r.config_json, r.created_at,
		       (SELECT COUNT(*) FROM label_events e WHERE e.run_id = r.run_id)
		FROM label_runs r `+where+`
		ORDER BY r.created_at DESC, r.run_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var cfg string
		var created int64
		if err := rows.Scan(&r.RunID, &r.BBoxAlgorithm, &r.LabelAlgorithm, &cfg, &created, &r.NumEvents); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(cfg), &r.Config); err != nil {
			return nil, fmt.Errorf("run %s config: %w", r.RunID, err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// ListEvents summarizes the events stored for runID in insertion order.
func (s *Store) ListEvents(ctx context.Context, runID string) ([]EventSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, num_particles, num_voxels, total_energy, dropped_deposits, created_at
		FROM label_events
		WHERE run_id = ?
		ORDER BY created_at, event_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventSummary
	for rows.Next() {
		e := EventSummary{RunID: runID}
		var created int64
		if err := rows.Scan(&e.EventID, &e.NumParticles, &e.NumVoxels, &e.TotalEnergy, &e.DroppedDeposits, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
