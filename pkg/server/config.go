package server

import (
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vango-dev/flight/pkg/render"
)

// Config configures a Server.
type Config struct {
	// Address is the listen address for Run.
	Address string

	// Workers is the number of render workers.
	Workers int

	// Document is the HTML shell for full-page responses.
	Document render.Document

	// Assets, when set, is served under AssetsPrefix: the client chunks
	// the module map points at.
	Assets       fs.FS
	AssetsPrefix string

	// AssetsNoCache disables caching of assets, for development builds
	// that reuse file names.
	AssetsNoCache bool

	// WebSocket enables /_flight/ws.
	WebSocket bool

	// CheckOrigin validates websocket origins. Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	ReadBufferSize  int
	WriteBufferSize int

	// MaxMessageSize bounds websocket requests and action bodies.
	MaxMessageSize int64

	// WriteTimeout bounds each websocket write.
	WriteTimeout time.Duration

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":3000",
		Workers:           4,
		AssetsPrefix:      defaultAssetsPrefix,
		WebSocket:         true,
		CheckOrigin:       SameOriginCheck,
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		MaxMessageSize:    1 << 20,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.Workers <= 0 {
		out.Workers = d.Workers
	}
	if out.AssetsPrefix == "" {
		out.AssetsPrefix = d.AssetsPrefix
	}
	if !strings.HasSuffix(out.AssetsPrefix, "/") {
		out.AssetsPrefix += "/"
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = d.CheckOrigin
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = d.IdleTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	return &out
}

// SameOriginCheck accepts websocket upgrades whose Origin host matches the
// request host, or that carry no Origin at all.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return r.Host != "" && u.Host == r.Host
}
