package testutil

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pixelreco/internal/pixel"
)

// recordingTB captures failures instead of failing the surrounding test.
type recordingTB struct {
	testing.TB
	failed bool
	fatal  bool
}

func (r *recordingTB) Helper()                           {}
func (r *recordingTB) Errorf(format string, args ...any) { r.failed = true }
func (r *recordingTB) Fatalf(format string, args ...any) { r.failed, r.fatal = true, true }

func TestAssertStatusCode(t *testing.T) {
	rt := &recordingTB{TB: t}
	AssertStatusCode(rt, http.StatusOK, http.StatusOK)
	assert.False(t, rt.failed)

	AssertStatusCode(rt, http.StatusOK, http.StatusBadRequest)
	assert.True(t, rt.failed)
	assert.False(t, rt.fatal)
}

func TestAssertNoError(t *testing.T) {
	rt := &recordingTB{TB: t}
	AssertNoError(rt, nil)
	assert.False(t, rt.failed)

	AssertNoError(rt, errors.New("boom"))
	assert.True(t, rt.fatal)
}

func TestServeAndDecode(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"method":"` + r.Method + `","path":"` + r.URL.Path + `"}`))
	})

	rec := Serve(h, http.MethodPost, "/api/x")
	AssertStatusCode(t, rec.Code, http.StatusOK)

	got := DecodeJSON[map[string]string](t, rec)
	assert.Equal(t, map[string]string{"method": "POST", "path": "/api/x"}, got)
}

func TestSquareGeometry(t *testing.T) {
	g := SquareGeometry(7, 10)
	require.NoError(t, g.Validate())
	assert.Equal(t, pixel.DetUnitID(7), g.DetUnitID)
	assert.Equal(t, 100, g.Channels())

	x, y, z := g.GlobalPosition(3.5, 4.5)
	assert.InDelta(t, -1.5, x, 1e-12)
	assert.InDelta(t, -0.5, y, 1e-12)
	assert.Zero(t, z)
}
