package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/banshee-data/pixelreco/internal/pixel"
	"github.com/banshee-data/pixelreco/internal/pixel/geometry"
)

// GeometryStore resolves detector geometry from pixel_geometry with a TTL
// cache in front. Resolved descriptors are shared and must not be modified.
type GeometryStore struct {
	db    *DB
	cache *cache.Cache
}

// NewGeometryStore creates a geometry store. A non-positive ttl caches
// entries until they are overwritten.
func NewGeometryStore(db *DB, ttl time.Duration) *GeometryStore {
	if ttl <= 0 {
		return &GeometryStore{db: db, cache: cache.New(cache.NoExpiration, 0)}
	}
	return &GeometryStore{db: db, cache: cache.New(ttl, ttl*2)}
}

func cacheKey(id pixel.DetUnitID) string { return strconv.FormatUint(uint64(id), 10) }

// Put validates and upserts descriptors in one transaction.
func (s *GeometryStore) Put(ctx context.Context, geoms ...*pixel.Geometry) error {
	for _, g := range geoms {
		if err := g.Validate(); err != nil {
			return err
		}
	}

	now := time.Now().UnixNano()
	err := retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, g := range geoms {
			transform, err := json.Marshal(g.T)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pixel_geometry (
					det_unit_id, rows, cols, pitch_x, pitch_y, thickness, transform_json, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(det_unit_id) DO UPDATE SET
					rows = excluded.rows, cols = excluded.cols,
					pitch_x = excluded.pitch_x, pitch_y = excluded.pitch_y,
					thickness = excluded.thickness, transform_json = excluded.transform_json,
					updated_at = excluded.updated_at`,
				uint32(g.DetUnitID), g.Rows, g.Cols, g.PitchX, g.PitchY, g.Thickness, string(transform), now,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("store geometry: %w", err)
	}
	for _, g := range geoms {
		s.cache.Delete(cacheKey(g.DetUnitID))
	}
	return nil
}

// Import copies every descriptor of an in-memory resolver into the store.
func (s *GeometryStore) Import(ctx context.Context, m *geometry.MapResolver) error {
	return s.Put(ctx, m.All()...)
}

// resolveTimeout bounds a cache-miss lookup in Resolve. It matches the
// busy_timeout pragma so a locked database fails rather than blocks.
const resolveTimeout = 5 * time.Second

// Resolve implements geometry.Resolver. The interface carries no context,
// so a cache miss runs under its own resolveTimeout.
func (s *GeometryStore) Resolve(id pixel.DetUnitID) (*pixel.Geometry, error) {
	key := cacheKey(id)
	if v, ok := s.cache.Get(key); ok {
		return v.(*pixel.Geometry), nil
	}

	var (
		g         = pixel.Geometry{DetUnitID: id}
		transform string
	)
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	err := s.db.QueryRowContext(ctx, `
		SELECT rows, cols, pitch_x, pitch_y, thickness, transform_json
		FROM pixel_geometry WHERE det_unit_id = ?`, uint32(id),
	).Scan(&g.Rows, &g.Cols, &g.PitchX, &g.PitchY, &g.Thickness, &transform)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("det unit %d: %w", id, geometry.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve det unit %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(transform), &g.T); err != nil {
		return nil, fmt.Errorf("det unit %d: decode transform: %w", id, err)
	}

	s.cache.SetDefault(key, &g)
	return &g, nil
}

// IDs returns the stored detector unit ids in ascending order.
func (s *GeometryStore) IDs(ctx context.Context) ([]pixel.DetUnitID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT det_unit_id FROM pixel_geometry ORDER BY det_unit_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []pixel.DetUnitID
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, pixel.DetUnitID(id))
	}
	return ids, rows.Err()
}

// CachedUnits returns the number of descriptors currently cached.
func (s *GeometryStore) CachedUnits() int { return s.cache.ItemCount() }

var _ geometry.Resolver = (*GeometryStore)(nil)
