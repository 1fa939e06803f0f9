package server

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetPath(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/assets/app.js", "app.js", true},
		{"/assets/chunks/post.js", "chunks/post.js", true},
		{"/assets/", "", false},
		{"/other/app.js", "", false},
		{"/assets/../secret.txt", "", false},
		{"/assets/chunks/../../secret.txt", "", false},
		{"/assets/./app.js", "", false},
		{"/assets//etc/passwd", "", false},
		{"/assets/a\\b.js", "", false},
		{"/assets/a\x00.js", "", false},
	}
	for _, tt := range tests {
		got, ok := assetPath("/assets/", tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestIsFingerprinted(t *testing.T) {
	tests := map[string]bool{
		"app.a1b2c3d4.js":        true,
		"chunks/post-0123abcd.js": true,
		"app.js":                 false,
		"app.abc.js":             false,
		"my-component.js":        false,
		"app.a1b2c3d4":           false,
	}
	for name, want := range tests {
		assert.Equal(t, want, isFingerprinted(name), name)
	}
}

func TestServeAssets(t *testing.T) {
	assets := fstest.MapFS{
		"app.a1b2c3d4.js": {Data: []byte("export default 1")},
		"dev.js":          {Data: []byte("export default 2")},
		"chunks":          {Mode: fs.ModeDir | 0o755},
	}
	s := New(&Config{Assets: assets}, blogRouter(), blogRegistry())
	defer s.Close()

	get := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}

	rec := get(http.MethodGet, "/assets/app.a1b2c3d4.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "export default 1", rec.Body.String())
	assert.Equal(t, cacheImmutable, rec.Header().Get("Cache-Control"))

	rec = get(http.MethodGet, "/assets/dev.js")
	assert.Equal(t, cacheRevalidate, rec.Header().Get("Cache-Control"))

	assert.Equal(t, http.StatusNotFound, get(http.MethodGet, "/assets/missing.js").Code)
	assert.Equal(t, http.StatusNotFound, get(http.MethodGet, "/assets/chunks").Code)
	assert.Equal(t, http.StatusNotFound, get(http.MethodGet, "/assets/../secret.txt").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, get(http.MethodDelete, "/assets/dev.js").Code)

	dev := New(&Config{Assets: assets, AssetsPrefix: "/@modules", AssetsNoCache: true}, blogRouter(), blogRegistry())
	defer dev.Close()
	rec = httptest.NewRecorder()
	dev.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/@modules/app.a1b2c3d4.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cacheNone, rec.Header().Get("Cache-Control"))
}
