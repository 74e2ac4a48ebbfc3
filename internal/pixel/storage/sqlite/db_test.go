package sqlite

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tailscale.com/tsweb"
)

func TestOpen_MigratesToLatest(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	for _, table := range []string{"pixel_runs", "pixel_clusters", "pixel_geometry"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	db := openTestDB(t)

	var mode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, path, db.Path())
}

func TestMigrateDownUp(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, db.MigrateUp())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	// Already at latest.
	assert.NoError(t, db.MigrateUp())
}

func TestAttachAdminRoutes_TailsqlEndpoint(t *testing.T) {
	db := openTestDB(t)

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(tsweb.Debugger(mux)))

	req := httptest.NewRequest(http.MethodGet, "/debug/tailsql/", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	// May be rejected for other reasons, but must be routed.
	if w.Code == http.StatusNotFound {
		t.Error("Expected /debug/tailsql/ to be registered, got 404")
	}
}
