package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "github.com/vango-dev/flight/internal/errors"
	"github.com/vango-dev/flight/pkg/router"
)

// Entry is one route in a manifest.
type Entry = router.Definition

// Manifest is a decoded route manifest. Entry order is declaration order.
type Manifest struct {
	Routes []Entry `json:"routes" yaml:"routes"`

	// Source names where the manifest came from, for error messages.
	Source string `json:"-" yaml:"-"`
}

// Format is a manifest encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// FormatFor picks the format from a file name's extension.
func FormatFor(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, ferrors.New("E200").
			WithDetailf("unsupported manifest extension %q", filepath.Ext(name)).
			WithSuggestion("Use a .json, .yaml or .yml file")
	}
}

// Parse decodes a manifest. Both {"routes": [...]} and a bare list are
// accepted.
func Parse(data []byte, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatYAML:
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, ferrors.New("E200").Wrap(err)
		}
		if len(doc.Content) == 0 {
			return &m, nil
		}
		var err error
		if doc.Content[0].Kind == yaml.SequenceNode {
			err = doc.Content[0].Decode(&m.Routes)
		} else {
			err = doc.Content[0].Decode(&m)
		}
		if err != nil {
			return nil, ferrors.New("E200").Wrap(err)
		}
	default:
		trimmed := bytes.TrimSpace(data)
		var err error
		if len(trimmed) > 0 && trimmed[0] == '[' {
			err = json.Unmarshal(trimmed, &m.Routes)
		} else {
			err = json.Unmarshal(trimmed, &m)
		}
		if err != nil {
			return nil, ferrors.New("E200").Wrap(err)
		}
	}
	return &m, nil
}

// LoadFile reads and decodes a manifest file.
func LoadFile(path string) (*Manifest, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, withFile(err, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.New("E200").Wrap(err).WithSource(path, -1)
	}
	m, err := Parse(data, format)
	if err != nil {
		return nil, withFile(err, path)
	}
	m.Source = path
	return m, nil
}

// Build links the entries into a route tree. Configuration errors carry the
// manifest's source and the index of the offending entry.
func (m *Manifest) Build() ([]*router.RouteNode, error) {
	routes, err := router.BuildTree(m.Routes)
	if err != nil {
		return nil, withFile(err, m.Source)
	}
	return routes, nil
}

// Router builds the tree and wraps it in a router.
func (m *Manifest) Router(opts ...router.Option) (*router.Router, error) {
	routes, err := m.Build()
	if err != nil {
		return nil, err
	}
	r := router.New(routes, opts...)
	if _, err := r.Branches(); err != nil {
		return nil, withFile(err, m.Source)
	}
	return r, nil
}

func withFile(err error, file string) error {
	var fe *ferrors.FlightError
	if file == "" || !errors.As(err, &fe) {
		return err
	}
	if fe.Source == nil {
		fe.WithSource(file, -1)
	} else if fe.Source.File == "" {
		fe.Source.File = file
	}
	return fe
}

// String lists the entries one per line, for the CLI.
func (m *Manifest) String() string {
	var b strings.Builder
	for _, e := range m.Routes {
		path := "(pathless)"
		if e.Path != nil {
			path = *e.Path
		}
		parent := e.ParentID
		if parent == "" && e.ID != router.RootID {
			parent = router.RootID
		}
		fmt.Fprintf(&b, "%-16s %-16s %-20s", e.ID, parent, path)
		if e.Index {
			b.WriteString(" index")
		}
		if e.Component != "" {
			b.WriteString(" -> " + e.Component)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
