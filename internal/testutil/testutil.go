// Package testutil provides shared test helpers: HTTP round trips against
// handlers and small detector fixtures.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/pixelreco/internal/pixel"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// Serve sends a request with no body to h and returns the recorded response.
func Serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, NewTestRequest(method, path))
	return rec
}

// DecodeJSON unmarshals a recorded JSON response body into a T.
func DecodeJSON[T any](t testing.TB, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

// SquareGeometry returns an n x n unit-pitch detector unit with an identity
// placement, so pixel (r, c) has local centre (r+0.5-n/2, c+0.5-n/2).
func SquareGeometry(id pixel.DetUnitID, n int) *pixel.Geometry {
	return &pixel.Geometry{
		DetUnitID: id,
		Rows:      n,
		Cols:      n,
		PitchX:    1,
		PitchY:    1,
		Thickness: 0.03,
		T:         pixel.IdentityTransform4x4,
	}
}
