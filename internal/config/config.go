package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	ferrors "github.com/vango-dev/flight/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "flight.json"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "FLIGHT"

	// DefaultPort is the default server port.
	DefaultPort = 3000

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultManifest is the default route manifest path.
	DefaultManifest = "routes.yaml"

	// DefaultWorkers is the default number of render workers.
	DefaultWorkers = 4
)

// Module map modes.
const (
	ModulesDev   = "dev"
	ModulesBuild = "build"
)

// Config represents the complete flight.json configuration.
type Config struct {
	Server ServerConfig `json:"server" mapstructure:"server"`
	Routes RoutesConfig `json:"routes" mapstructure:"routes"`
	Render RenderConfig `json:"render" mapstructure:"render"`
	Log    LogConfig    `json:"log" mapstructure:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty" mapstructure:"host"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty" mapstructure:"port"`

	// WebSocket enables the websocket segment transport.
	WebSocket bool `json:"websocket" mapstructure:"websocket"`

	// Metrics exposes prometheus metrics on /metrics.
	Metrics bool `json:"metrics" mapstructure:"metrics"`

	// Tracing wraps requests in OpenTelemetry spans.
	Tracing bool `json:"tracing" mapstructure:"tracing"`
}

// RoutesConfig describes where the route manifest comes from.
type RoutesConfig struct {
	// Manifest is a local manifest path (JSON or YAML).
	Manifest string `json:"manifest,omitempty" mapstructure:"manifest"`

	// Bucket and Key select a manifest stored in S3. When Bucket is set the
	// local Manifest path is ignored.
	Bucket string `json:"bucket,omitempty" mapstructure:"bucket"`
	Key    string `json:"key,omitempty" mapstructure:"key"`

	// Basename is stripped from every incoming pathname before matching.
	Basename string `json:"basename,omitempty" mapstructure:"basename"`

	// Watch reloads the local manifest when it changes on disk.
	Watch bool `json:"watch" mapstructure:"watch"`
}

// RenderConfig contains render worker settings.
type RenderConfig struct {
	// Workers is the number of render workers.
	Workers int `json:"workers,omitempty" mapstructure:"workers"`

	// Modules selects the client module map: "dev" or "build".
	Modules string `json:"modules,omitempty" mapstructure:"modules"`

	// ClientManifest is the bundler's client manifest, used in build mode.
	ClientManifest string `json:"clientManifest,omitempty" mapstructure:"clientManifest"`

	// Assets is a directory of client chunks to serve under the module
	// prefix. Empty means chunks are served elsewhere.
	Assets string `json:"assets,omitempty" mapstructure:"assets"`
}

// LogConfig controls the default slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" mapstructure:"level"`

	// JSON switches the handler to JSON output.
	JSON bool `json:"json" mapstructure:"json"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      DefaultHost,
			Port:      DefaultPort,
			WebSocket: true,
			Metrics:   true,
		},
		Routes: RoutesConfig{
			Manifest: DefaultManifest,
			Basename: "/",
		},
		Render: RenderConfig{
			Workers: DefaultWorkers,
			Modules: ModulesDev,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// newViper returns a viper instance seeded with defaults and wired to the
// FLIGHT_ environment.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := New()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.websocket", d.Server.WebSocket)
	v.SetDefault("server.metrics", d.Server.Metrics)
	v.SetDefault("server.tracing", d.Server.Tracing)
	v.SetDefault("routes.manifest", d.Routes.Manifest)
	v.SetDefault("routes.bucket", "")
	v.SetDefault("routes.key", "")
	v.SetDefault("routes.basename", d.Routes.Basename)
	v.SetDefault("routes.watch", d.Routes.Watch)
	v.SetDefault("render.workers", d.Render.Workers)
	v.SetDefault("render.modules", d.Render.Modules)
	v.SetDefault("render.clientManifest", "")
	v.SetDefault("render.assets", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	return v
}

// Load reads configuration from the specified directory.
// It looks for flight.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path, then applies
// environment overrides.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ferrors.New("E100").
				WithDetail("no " + ConfigFileName + " in " + filepath.Dir(path)).
				WithSuggestion("Create " + ConfigFileName + " or run without --config to use defaults")
		}
		return nil, ferrors.New("E101").Wrap(err).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// FromEnv builds a configuration from defaults and FLIGHT_ environment
// variables only.
func FromEnv() (*Config, error) {
	return decode(newViper())
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := New()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, ferrors.New("E101").Wrap(err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified path as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return ferrors.New("E101").Wrap(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return ferrors.New("E101").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Routes.Manifest == "" {
		c.Routes.Manifest = DefaultManifest
	}
	if c.Routes.Basename == "" {
		c.Routes.Basename = "/"
	}
	if c.Render.Workers == 0 {
		c.Render.Workers = DefaultWorkers
	}
	if c.Render.Modules == "" {
		c.Render.Modules = ModulesDev
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return ferrors.New("E102").
			WithDetail("server.port must be between 0 and 65535")
	}
	if c.Render.Workers < 1 {
		return ferrors.New("E102").
			WithDetail("render.workers must be at least 1")
	}
	switch c.Render.Modules {
	case ModulesDev:
	case ModulesBuild:
		if c.Render.ClientManifest == "" {
			return ferrors.New("E102").
				WithDetail(`render.clientManifest is required when render.modules is "build"`)
		}
	default:
		return ferrors.New("E102").
			WithDetailf("render.modules must be %q or %q, got %q", ModulesDev, ModulesBuild, c.Render.Modules)
	}
	if !strings.HasPrefix(c.Routes.Basename, "/") {
		return ferrors.New("E102").
			WithDetail("routes.basename must start with /")
	}
	if c.Routes.Bucket != "" && c.Routes.Key == "" {
		return ferrors.New("E102").
			WithDetail("routes.key is required when routes.bucket is set")
	}
	return nil
}

// Address returns the listen address.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// ManifestPath returns the absolute path to the local route manifest.
func (c *Config) ManifestPath() string {
	return c.resolve(c.Routes.Manifest)
}

// ClientManifestPath returns the absolute path to the client module manifest.
func (c *Config) ClientManifestPath() string {
	if c.Render.ClientManifest == "" {
		return ""
	}
	return c.resolve(c.Render.ClientManifest)
}

// AssetsPath returns the absolute path to the client assets directory.
func (c *Config) AssetsPath() string {
	if c.Render.Assets == "" {
		return ""
	}
	return c.resolve(c.Render.Assets)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing flight.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ferrors.New("E100").
				WithDetail("no " + ConfigFileName + " in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}
