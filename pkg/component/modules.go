package component

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/vango-dev/flight/pkg/protocol"
)

// ErrUnknownModule is returned by a ModuleMap for an id it has no entry for.
var ErrUnknownModule = errors.New("component: unknown client module")

// ModuleMap resolves client module ids to the chunks that load them.
type ModuleMap interface {
	Resolve(id string) (protocol.ModuleRef, error)
}

// DefaultDevPrefix is where DevModuleMap points chunks by default.
const DefaultDevPrefix = "/@modules/"

// DevModuleMap serves every module as a single chunk under Prefix, as a dev
// server with on-demand transforms would.
type DevModuleMap struct {
	// Prefix defaults to DefaultDevPrefix.
	Prefix string
}

// Resolve implements ModuleMap.
func (m DevModuleMap) Resolve(id string) (protocol.ModuleRef, error) {
	if id == "" {
		return protocol.ModuleRef{}, fmt.Errorf("%w: empty id", ErrUnknownModule)
	}
	prefix := m.Prefix
	if prefix == "" {
		prefix = DefaultDevPrefix
	}
	return protocol.ModuleRef{
		ID:      id,
		Chunks:  []string{prefix + strings.TrimPrefix(id, "/")},
		Exports: []string{"default"},
	}, nil
}

// BuildEntry is one module in a client build manifest.
type BuildEntry struct {
	// File is the entry chunk, relative to the asset prefix.
	File string `json:"file"`

	// Imports are the keys of other entries this one statically imports.
	Imports []string `json:"imports,omitempty"`

	Exports []string `json:"exports,omitempty"`
}

// BuildModuleMap resolves modules from a bundler's client manifest. A
// module's chunks are its own file followed by every file it imports,
// transitively, each once.
type BuildModuleMap struct {
	entries map[string]BuildEntry
	prefix  string
}

// NewBuildModuleMap returns a map over entries. prefix is prepended to every
// chunk path.
func NewBuildModuleMap(entries map[string]BuildEntry, prefix string) *BuildModuleMap {
	return &BuildModuleMap{entries: entries, prefix: prefix}
}

// LoadBuildModuleMap reads a JSON client manifest:
//
//	{
//	  "counter": {"file": "counter.3f2a.js", "imports": ["_shared"], "exports": ["default"]},
//	  "_shared": {"file": "shared.91bc.js"}
//	}
func LoadBuildModuleMap(path, prefix string) (*BuildModuleMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries map[string]BuildEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("component: parse client manifest %s: %w", path, err)
	}
	return NewBuildModuleMap(entries, prefix), nil
}

// Resolve implements ModuleMap.
func (m *BuildModuleMap) Resolve(id string) (protocol.ModuleRef, error) {
	entry, ok := m.entries[id]
	if !ok {
		return protocol.ModuleRef{}, fmt.Errorf("%w: %q", ErrUnknownModule, id)
	}

	seen := map[string]bool{id: true}
	chunks := []string{m.prefix + entry.File}
	queue := append([]string(nil), entry.Imports...)
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if seen[key] {
			continue
		}
		seen[key] = true
		dep, ok := m.entries[key]
		if !ok {
			return protocol.ModuleRef{}, fmt.Errorf("%w: %q imported by %q", ErrUnknownModule, key, id)
		}
		chunks = append(chunks, m.prefix+dep.File)
		queue = append(queue, dep.Imports...)
	}

	exports := entry.Exports
	if len(exports) == 0 {
		exports = []string{"default"}
	}
	return protocol.ModuleRef{ID: id, Chunks: chunks, Exports: exports}, nil
}

// IDs returns the module ids in the manifest, sorted.
func (m *BuildModuleMap) IDs() []string {
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
