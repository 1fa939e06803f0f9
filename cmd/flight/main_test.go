package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/flight/internal/config"
	ferrors "github.com/vango-dev/flight/internal/errors"
	"github.com/vango-dev/flight/pkg/component"
	"github.com/vango-dev/flight/pkg/manifest"
	"github.com/vango-dev/flight/pkg/protocol"
	"github.com/vango-dev/flight/pkg/render"
	"github.com/vango-dev/flight/pkg/server"
)

const blogYAML = `
routes:
  - id: root
    path: /
    component: layouts/root
  - id: posts
    parentId: root
    path: posts
    component: posts/layout
  - id: posts-index
    parentId: posts
    index: true
    component: posts/index
  - id: post
    parentId: posts
    path: ":id"
    component: posts/show
`

// project writes a flight.json and routes.yaml and returns the config path.
func project(t *testing.T) string {
	t.Helper()
	return projectWith(t, blogYAML)
}

func projectWith(t *testing.T, routes string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "routes.yaml"), []byte(routes), 0o644))
	cfgPath := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"routes": {"manifest": "routes.yaml"}, "server": {"port": 0}}`), 0o644))
	return cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoutesCommand(t *testing.T) {
	out, err := run(t, "routes", "--config", project(t))
	require.NoError(t, err)
	assert.Contains(t, out, "(4 routes)")
	assert.Contains(t, out, "-> posts/show")
	assert.Regexp(t, `17\s+/posts/:id\s+root > posts > post`, out)
	assert.Regexp(t, `17\s+/posts/\s+root > posts > posts-index`, out)
	// Equal scores keep declaration order.
	assert.Less(t, strings.Index(out, "> posts-index"), strings.Index(out, "> post\n"))
}

func TestMatchCommand(t *testing.T) {
	cfg := project(t)

	out, err := run(t, "match", "/posts/42", "--config", cfg, "--state", "root,posts,7")
	require.NoError(t, err)
	assert.Regexp(t, `2\s+42\s+post\s+/posts/42\s+posts/show`, out)
	assert.Contains(t, out, "params: map[id:42]")
	assert.Contains(t, out, "skipped: root, posts")
	assert.Contains(t, out, "render:  42")

	out, err = run(t, "match", "/nowhere", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "no route matches /nowhere")

	_, err = run(t, "match", "--config", cfg)
	assert.Error(t, err)
}

func TestResolveCommand(t *testing.T) {
	cfg := project(t)
	tests := []struct {
		to, from, want string
	}{
		{"..", "/posts/42", "/posts"},
		{"../7?tab=comments", "/posts/42", "/posts/7?tab=comments"},
		{"/about", "/posts/42", "/about"},
	}
	for _, tt := range tests {
		out, err := run(t, "resolve", tt.to, "--from", tt.from, "--config", cfg)
		require.NoError(t, err)
		assert.Equal(t, tt.want, strings.TrimSpace(out), tt.to)
	}
}

func TestResolvePathRelative(t *testing.T) {
	cfg := projectWith(t, blogYAML+`  - id: docs
    parentId: root
    path: docs/:section/:page
`)
	out, err := run(t, "resolve", "..", "--from", "/docs/guide/intro", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "/", strings.TrimSpace(out))

	out, err = run(t, "resolve", "..", "--from", "/docs/guide/intro", "--path", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "/docs/guide", strings.TrimSpace(out))
}

func TestLinkCommand(t *testing.T) {
	cfg := project(t)
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"post", "id=42"}, "/posts/42"},
		{[]string{"posts-index"}, "/posts"},
		{[]string{"root"}, "/"},
	}
	for _, tt := range tests {
		out, err := run(t, append([]string{"link", "--config", cfg}, tt.args...)...)
		require.NoError(t, err, tt.args)
		assert.Equal(t, tt.want, strings.TrimSpace(out), tt.args)
	}

	_, err := run(t, "link", "post", "--config", cfg)
	assert.True(t, ferrors.HasCode(err, "E208"), err)

	_, err = run(t, "link", "nope", "--config", cfg)
	assert.True(t, ferrors.HasCode(err, "E500"), err)

	_, err = run(t, "link", "post", "42", "--config", cfg)
	assert.True(t, ferrors.HasCode(err, "E500"), err)
}

func TestErrorsCommand(t *testing.T) {
	ferrors.DisableColors()
	defer ferrors.EnableColors()

	out, err := run(t, "errors")
	require.NoError(t, err)
	assert.Regexp(t, `E206\s+routing\s+`, out)
	assert.Regexp(t, `E500\s+cli\s+Invalid command arguments`, out)

	out, err = run(t, "errors", "e102")
	require.NoError(t, err)
	assert.Contains(t, out, "ERROR E102: Invalid config value")

	_, err = run(t, "errors", "E999")
	assert.True(t, ferrors.HasCode(err, "E500"), err)
}

func TestExecutePrintsCodedErrors(t *testing.T) {
	defer ferrors.EnableColors()
	cfg := project(t)
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"full", []string{"routes", "--config", cfg, "--manifest", missing}, []string{"ERROR E200:", "missing.yaml"}},
		{"compact", []string{"routes", "--config", cfg, "--manifest", missing, "--error-format", "compact"}, []string{"E200: "}},
		{"json", []string{"routes", "--config", cfg, "--manifest", missing, "--error-format", "json"}, []string{`"code":"E200"`, `"category":"routing"`}},
		{"unknown flag", []string{"routes", "--bogus"}, []string{"ERROR E500:", "unknown flag: --bogus", "flight routes --help"}},
		{"missing argument", []string{"match", "--error-format", "compact"}, []string{"E500: Invalid command arguments: accepts 1 arg(s), received 0"}},
		{"bad error format", []string{"version", "--error-format", "xml"}, []string{"ERROR E500:", `unknown error format "xml"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := execute(tt.args, &stdout, &stderr, false)
			assert.Equal(t, 1, code)
			for _, want := range tt.want {
				assert.Contains(t, stderr.String(), want)
			}
			assert.NotContains(t, stderr.String(), "\033[")
		})
	}

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, execute([]string{"version", "--short"}, &stdout, &stderr, false))
	assert.Equal(t, "dev\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestManifestFlagOverridesConfig(t *testing.T) {
	cfg := project(t)
	_, err := run(t, "routes", "--config", cfg, "--manifest", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E200")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestFetchCommand(t *testing.T) {
	m, err := manifest.Parse([]byte(blogYAML), manifest.FormatYAML)
	require.NoError(t, err)
	rt, err := m.Router()
	require.NoError(t, err)
	srv := server.New(nil, rt, component.OutlineLoader{})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	for _, transport := range [][]string{nil, {"--ws"}} {
		args := append([]string{"fetch", "/posts/42", "--server", ts.URL, "--state", "root,posts"}, transport...)
		out, err := run(t, args...)
		require.NoError(t, err)
		assert.Contains(t, out, "head     /posts/42 skipped=[root,posts]")
		assert.Contains(t, out, `segment  2 42 route=post <div data-component="posts/show" data-route="post"><p>posts/show (id=42)</p></div>`)
		assert.True(t, strings.HasSuffix(out, "end\n"), out)
	}
}

func TestFetchData(t *testing.T) {
	m, err := manifest.Parse([]byte(blogYAML), manifest.FormatYAML)
	require.NoError(t, err)
	rt, err := m.Router()
	require.NoError(t, err)

	reg := component.NewRegistry()
	for _, ref := range []string{"layouts/root", "posts/layout"} {
		c, err := component.OutlineLoader{}.Load(context.Background(), ref)
		require.NoError(t, err)
		reg.Register(ref, c)
	}
	reg.RegisterFunc("posts/show", func(c *render.Ctx) (render.Outcome, error) {
		if err := c.Push("post:"+c.Param("id"), map[string]string{"title": "Hello"}); err != nil {
			return render.Outcome{}, err
		}
		return render.Ok(protocol.Text("post")), nil
	})
	srv := server.New(nil, rt, reg)
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	out, err := run(t, "fetch", "/posts/42", "--server", ts.URL, "--data")
	require.NoError(t, err)
	assert.Contains(t, out, `data     post:42 {"title":"Hello"}`)
	assert.Contains(t, out, "store    post:42 = ")
	assert.Less(t, strings.Index(out, "data     post:42"), strings.Index(out, "store    post:42"))

	out, err = run(t, "fetch", "/posts/42", "--server", ts.URL)
	require.NoError(t, err)
	assert.NotContains(t, out, "store    ")
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:3000"+server.WebSocketPath, websocketURL("http://localhost:3000/"))
	assert.Equal(t, "wss://example.com"+server.WebSocketPath, websocketURL("https://example.com"))
}

func TestReloadKeepsRoutesOnError(t *testing.T) {
	cfgPath := project(t)
	cfg, err := config.LoadFile(cfgPath)
	require.NoError(t, err)
	m, err := manifest.LoadFile(cfg.ManifestPath())
	require.NoError(t, err)
	rt, err := m.Router()
	require.NoError(t, err)

	loader := component.NewCachingLoader(component.OutlineLoader{})
	srv := server.New(nil, rt, loader)
	defer srv.Close()

	reload(srv, loader, cfg, nil, errors.New("parse failed"))
	assert.Same(t, rt, srv.Router())

	broken := &manifest.Manifest{Routes: []manifest.Entry{{ID: "orphan"}}}
	reload(srv, loader, cfg, broken, nil)
	assert.Same(t, rt, srv.Router())

	next, err := manifest.Parse([]byte(blogYAML+"  - id: about\n    parentId: root\n    path: about\n"), manifest.FormatYAML)
	require.NoError(t, err)
	reload(srv, loader, cfg, next, nil)
	_, ok := srv.Router().Route("about")
	assert.True(t, ok)
}

func TestRunServe(t *testing.T) {
	cfg, err := config.LoadFile(project(t))
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Routes.Watch = true

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var out bytes.Buffer
	require.NoError(t, runServe(ctx, cfg, &out, io.Discard))
	assert.Contains(t, out.String(), "Serving 4 routes")
	assert.Contains(t, out.String(), "watching")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("Warning").String())
	assert.Equal(t, "INFO", parseLevel("").String())
}
