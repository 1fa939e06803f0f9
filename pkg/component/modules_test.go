package component

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/flight/pkg/render"
)

var (
	_ ModuleMap             = DevModuleMap{}
	_ ModuleMap             = (*BuildModuleMap)(nil)
	_ render.ModuleResolver = ModuleMap(nil)
)

func TestDevModuleMap(t *testing.T) {
	ref, err := DevModuleMap{}.Resolve("widgets/counter")
	require.NoError(t, err)
	assert.Equal(t, "widgets/counter", ref.ID)
	assert.Equal(t, []string{"/@modules/widgets/counter"}, ref.Chunks)
	assert.Equal(t, []string{"default"}, ref.Exports)

	ref, err = DevModuleMap{Prefix: "/dev/"}.Resolve("/x")
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/x"}, ref.Chunks)

	_, err = DevModuleMap{}.Resolve("")
	assert.ErrorIs(t, err, ErrUnknownModule)
}

func TestBuildModuleMap(t *testing.T) {
	m := NewBuildModuleMap(map[string]BuildEntry{
		"counter": {File: "counter.3f2a.js", Imports: []string{"_shared", "_react"}, Exports: []string{"Counter"}},
		"_shared": {File: "shared.91bc.js", Imports: []string{"_react"}},
		"_react":  {File: "react.00aa.js"},
		"broken":  {File: "broken.js", Imports: []string{"_missing"}},
	}, "/assets/")

	ref, err := m.Resolve("counter")
	require.NoError(t, err)
	assert.Equal(t, []string{"/assets/counter.3f2a.js", "/assets/shared.91bc.js", "/assets/react.00aa.js"}, ref.Chunks)
	assert.Equal(t, []string{"Counter"}, ref.Exports)

	ref, err = m.Resolve("_react")
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, ref.Exports)

	_, err = m.Resolve("nope")
	assert.ErrorIs(t, err, ErrUnknownModule)
	_, err = m.Resolve("broken")
	assert.ErrorIs(t, err, ErrUnknownModule)

	assert.Equal(t, []string{"_react", "_shared", "broken", "counter"}, m.IDs())
}

func TestLoadBuildModuleMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client-manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"counter":{"file":"counter.js"}}`), 0o644))

	m, err := LoadBuildModuleMap(path, "/static/")
	require.NoError(t, err)
	ref, err := m.Resolve("counter")
	require.NoError(t, err)
	assert.Equal(t, []string{"/static/counter.js"}, ref.Chunks)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = LoadBuildModuleMap(path, "")
	assert.Error(t, err)

	_, err = LoadBuildModuleMap(filepath.Join(dir, "missing.json"), "")
	assert.Error(t, err)
}
