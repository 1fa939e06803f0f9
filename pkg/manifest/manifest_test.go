package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/vango-dev/flight/internal/errors"
)

const blogYAML = `
routes:
  - id: root
    path: /
    component: layouts/root
  - id: posts
    parentId: root
    path: posts
  - id: posts-index
    parentId: posts
    index: true
    component: posts/index
  - id: post
    parentId: posts
    path: ":id"
    component: posts/show
`

const blogJSON = `[
  {"id": "root", "path": "/", "component": "layouts/root"},
  {"id": "posts", "parentId": "root", "path": "posts"},
  {"id": "posts-index", "parentId": "posts", "index": true, "component": "posts/index"},
  {"id": "post", "parentId": "posts", "path": ":id", "component": "posts/show"}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"yaml object", blogYAML, FormatYAML},
		{"json list", blogJSON, FormatJSON},
		{"json object", `{"routes":` + blogJSON + `}`, FormatJSON},
		{"yaml list", "- id: root\n  path: /\n  component: layouts/root\n- id: posts\n  path: posts\n- id: posts-index\n  parentId: posts\n  index: true\n- id: post\n  parentId: posts\n  path: ':id'\n", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.data), tt.format)
			require.NoError(t, err)
			require.Len(t, m.Routes, 4)
			assert.Equal(t, "root", m.Routes[0].ID)
			require.NotNil(t, m.Routes[3].Path)
			assert.Equal(t, ":id", *m.Routes[3].Path)
			assert.Nil(t, m.Routes[2].Path)
			assert.True(t, m.Routes[2].Index)

			r, err := m.Router()
			require.NoError(t, err)
			ms, err := r.Match("/posts/42")
			require.NoError(t, err)
			assert.Equal(t, []string{"root", "posts", "42"}, ms.SegmentKeys())
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("routes: [unclosed"), FormatYAML)
	assert.True(t, ferrors.HasCode(err, "E200"))

	_, err = Parse([]byte(`{"routes": 3}`), FormatJSON)
	assert.True(t, ferrors.HasCode(err, "E200"))

	m, err := Parse(nil, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, m.Routes)
}

func TestFormatFor(t *testing.T) {
	f, err := FormatFor("routes.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = FormatFor("a/b/routes.json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = FormatFor("routes.toml")
	assert.True(t, ferrors.HasCode(err, "E200"))
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "routes.yaml", blogYAML)
	m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.Source)
	assert.Len(t, m.Routes, 4)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, ferrors.HasCode(err, "E200"))
}

func TestBuildErrorCarriesSource(t *testing.T) {
	path := writeFile(t, "routes.json", `[
		{"id": "root", "path": "/"},
		{"id": "a", "path": "a"},
		{"id": "a", "path": "b"}
	]`)
	m, err := LoadFile(path)
	require.NoError(t, err)

	_, err = m.Build()
	var fe *ferrors.FlightError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "E201", fe.Code)
	require.NotNil(t, fe.Source)
	assert.Equal(t, path, fe.Source.File)
	assert.Equal(t, 2, fe.Source.Entry)
}

func TestManifestString(t *testing.T) {
	m, err := Parse([]byte(blogJSON), FormatJSON)
	require.NoError(t, err)
	s := m.String()
	assert.Contains(t, s, "posts/show")
	assert.Contains(t, s, "(pathless)")
	assert.Contains(t, s, "index")
}
