package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pixelreco/internal/pixel"
	"github.com/banshee-data/pixelreco/internal/pixel/ingest"
	"github.com/banshee-data/pixelreco/internal/pixel/pipeline"
	"github.com/banshee-data/pixelreco/internal/pixel/storage/sqlite"
	"github.com/banshee-data/pixelreco/internal/pixel/synthetic"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"version only", []string{"-version"}, false},
		{"geometry file", []string{"-geometry", "g.json"}, false},
		{"db only", []string{"-db", "x.db", "-input", "ev.jsonl"}, false},
		{"no geometry source", []string{"-input", "ev.jsonl"}, true},
		{"serve without listener", []string{"-geometry", "g.json", "-serve"}, true},
		{"serve with grpc", []string{"-geometry", "g.json", "-serve", "-grpc-listen", ":0"}, false},
		{"stray argument", []string{"-geometry", "g.json", "extra"}, true},
		{"unknown flag", []string{"-nope"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	o, err := parseFlags([]string{"-geometry", "g.json"})
	require.NoError(t, err)
	assert.Equal(t, "-", o.inputPath)
	assert.Equal(t, "stderr", o.logOps)
	assert.Empty(t, o.logDiag)
	assert.False(t, o.serve)
}

// writeFixtures writes a geometry file and an events file produced by the
// synthetic generator. The last unit has no geometry when missing is set.
func writeFixtures(t *testing.T, events int, missing bool) (geomPath, eventsPath string) {
	t.Helper()
	dir := t.TempDir()
	cfg := synthetic.DefaultConfig()
	cfg.DetUnits = 4
	if missing {
		cfg.MissingUnits = 1
	}
	gen := synthetic.NewGenerator(cfg)

	res, err := gen.Resolver()
	require.NoError(t, err)
	geomPath = filepath.Join(dir, "geometry.json")
	gf, err := os.Create(geomPath)
	require.NoError(t, err)
	require.NoError(t, res.WriteJSON(gf))
	require.NoError(t, gf.Close())

	eventsPath = filepath.Join(dir, "events.jsonl")
	ef, err := os.Create(eventsPath)
	require.NoError(t, err)
	w := ingest.NewWriter(ef)
	for i := 0; i < events; i++ {
		require.NoError(t, w.Write(gen.Next()))
	}
	require.NoError(t, ef.Close())
	return geomPath, eventsPath
}

func TestRun_StoresRunAndClusters(t *testing.T) {
	geomPath, eventsPath := writeFixtures(t, 3, false)
	dbPath := filepath.Join(t.TempDir(), "pixel.db")

	o, err := parseFlags([]string{"-geometry", geomPath, "-input", eventsPath, "-db", dbPath})
	require.NoError(t, err)
	require.NoError(t, run(context.Background(), o))

	db, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	runs, err := sqlite.NewRunStore(db).ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sqlite.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, eventsPath, runs[0].SourcePath)

	n, err := sqlite.NewClusterStore(db, nil).CountClusters(context.Background(), runs[0].RunID)
	require.NoError(t, err)
	assert.Positive(t, n)

	ids, err := sqlite.NewGeometryStore(db, 0).IDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 4)
}

func TestRun_GeometryMismatchStopsRun(t *testing.T) {
	geomPath, eventsPath := writeFixtures(t, 2, true)
	o, err := parseFlags([]string{"-geometry", geomPath, "-input", eventsPath})
	require.NoError(t, err)

	err = run(context.Background(), o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geometry mismatch")
}

func TestRun_BadConfig(t *testing.T) {
	geomPath, eventsPath := writeFixtures(t, 1, false)
	cfgPath := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"workers": 0}`), 0o644))

	o, err := parseFlags([]string{"-config", cfgPath, "-geometry", geomPath, "-input", eventsPath})
	require.NoError(t, err)
	assert.Error(t, run(context.Background(), o))
}

func TestOpenLogs_File(t *testing.T) {
	t.Cleanup(func() {
		pixel.SetLogWriters(pixel.LogWriters{})
		pipeline.SetLogWriters(nil, nil, nil)
	})

	path := filepath.Join(t.TempDir(), "ops.log")
	logs, err := openLogs(&options{logOps: path})
	require.NoError(t, err)

	pixel.Opsf("hello %d", 7)
	logs.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[pixel] "))
	assert.Contains(t, string(data), "hello 7")
}

func TestOpenLogs_BadPath(t *testing.T) {
	_, err := openLogs(&options{logDiag: filepath.Join(t.TempDir(), "missing", "diag.log")})
	assert.Error(t, err)
}
