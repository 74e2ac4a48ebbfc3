package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/pixelreco/internal/pixel"
	"github.com/banshee-data/pixelreco/internal/pixel/detset"
	"github.com/banshee-data/pixelreco/internal/pixel/producer"
)

// ErrNoActiveRun is returned when clusters are written outside a run.
var ErrNoActiveRun = errors.New("no active run")

// ClusterStore writes each event's clusters under the run that is open
// in its RunManager.
type ClusterStore struct {
	db   *DB
	runs *RunManager
}

// NewClusterStore creates a cluster store. With a nil runs every
// WriteEvent fails with ErrNoActiveRun; reads still work.
func NewClusterStore(db *DB, runs *RunManager) *ClusterStore {
	return &ClusterStore{db: db, runs: runs}
}

// WriteEvent stores an event's clusters in one transaction. Events with
// no clusters write nothing.
func (s *ClusterStore) WriteEvent(ctx context.Context, eventID int64, out *producer.Output, _ producer.Report) error {
	if s.runs == nil {
		return ErrNoActiveRun
	}
	runID := s.runs.RunID()
	if runID == "" {
		return ErrNoActiveRun
	}
	if out.Empty() {
		return nil
	}

	err := retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pixel_clusters (
				run_id, event_id, det_unit_id, seq, size, charge, x, y,
				min_row, max_row, min_col, max_col, global_x, global_y, global_z, pixels_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for id, clusters := range out.All() {
			for seq, c := range clusters {
				pixels, err := json.Marshal(c.Pixels)
				if err != nil {
					return fmt.Errorf("marshal pixels: %w", err)
				}
				if _, err := stmt.ExecContext(ctx,
					runID, eventID, uint32(id), seq, c.Size(), c.Charge, c.X, c.Y,
					c.MinRow, c.MaxRow, c.MinCol, c.MaxCol, c.GlobalX, c.GlobalY, c.GlobalZ, string(pixels),
				); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("write event %d: %w", eventID, err)
	}
	return nil
}

// LoadEvent rebuilds an event's output collection, preserving the key
// order and per-unit cluster order it was written in.
func (s *ClusterStore) LoadEvent(ctx context.Context, runID string, eventID int64) (*producer.Output, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT det_unit_id, charge, x, y, min_row, max_row, min_col, max_col,
			global_x, global_y, global_z, pixels_json
		FROM pixel_clusters
		WHERE run_id = ? AND event_id = ?
		ORDER BY cluster_id`, runID, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", eventID, err)
	}
	defer rows.Close()

	out := detset.New[pixel.DetUnitID, pixel.Cluster](0, 0)
	var (
		current pixel.DetUnitID
		group   []pixel.Cluster
	)
	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		err := out.Put(current, group)
		group = nil
		return err
	}

	for rows.Next() {
		var (
			c      pixel.Cluster
			id     uint32
			pixels string
		)
		if err := rows.Scan(&id, &c.Charge, &c.X, &c.Y, &c.MinRow, &c.MaxRow, &c.MinCol, &c.MaxCol,
			&c.GlobalX, &c.GlobalY, &c.GlobalZ, &pixels); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		if err := json.Unmarshal([]byte(pixels), &c.Pixels); err != nil {
			return nil, fmt.Errorf("unmarshal pixels: %w", err)
		}
		c.DetUnitID = pixel.DetUnitID(id)
		if c.DetUnitID != current || len(group) == 0 {
			if err := flush(); err != nil {
				return nil, err
			}
			current = c.DetUnitID
		}
		group = append(group, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountClusters returns the number of clusters stored for a run.
func (s *ClusterStore) CountClusters(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pixel_clusters WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}
