package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vango-dev/flight/internal/config"
	"github.com/vango-dev/flight/pkg/component"
	"github.com/vango-dev/flight/pkg/manifest"
	"github.com/vango-dev/flight/pkg/middleware"
	"github.com/vango-dev/flight/pkg/render"
	"github.com/vango-dev/flight/pkg/router"
	"github.com/vango-dev/flight/pkg/server"
)

// buildAssetsPrefix is where production client chunks are served from.
const buildAssetsPrefix = "/assets/"

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		port  int
		host  string
		trace bool
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the route manifest",
		Long: `Serve the route manifest over HTTP and websocket.

Every route component renders as an outline of its route, so a manifest
can be served and navigated before its components exist. Applications
with real components build their own binary around pkg/server.

Examples:
  flight serve
  flight serve --port=8080 --watch
  flight serve --manifest=routes.json --trace`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if trace {
				cfg.Server.Tracing = true
			}
			if watch {
				cfg.Routes.Watch = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from flight.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from flight.json)")
	cmd.Flags().BoolVar(&trace, "trace", false, "Print OpenTelemetry spans to stderr")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the manifest when it changes")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, out, errOut io.Writer) error {
	logger := setupLogging(errOut, cfg.Log)

	m, err := loadManifest(ctx, cfg)
	if err != nil {
		return err
	}
	rt, err := m.Router(router.WithBasename(cfg.Routes.Basename), router.WithLogger(logger))
	if err != nil {
		return err
	}

	modules, err := moduleMap(cfg)
	if err != nil {
		return err
	}
	loader := component.NewCachingLoader(component.OutlineLoader{})

	opts := []server.Option{
		server.WithModules(modules),
		server.WithLogger(logger),
	}
	if cfg.Server.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, server.WithMetrics(middleware.NewMetrics(middleware.WithRegistry(reg)), reg))
	}
	if cfg.Server.Tracing {
		tp, err := stdoutTracerProvider(errOut)
		if err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()
		otel.SetTracerProvider(tp)
		opts = append(opts, server.WithTracing(middleware.WithTracerProvider(tp)))
	}

	scfg := server.DefaultConfig()
	scfg.Address = cfg.Address()
	scfg.Workers = cfg.Render.Workers
	scfg.WebSocket = cfg.Server.WebSocket
	scfg.Document = render.Document{Title: "flight"}
	if cfg.Render.Assets != "" {
		scfg.Assets = os.DirFS(cfg.AssetsPath())
		scfg.AssetsPrefix = buildAssetsPrefix
		if cfg.Render.Modules == config.ModulesDev {
			scfg.AssetsPrefix = component.DefaultDevPrefix
			scfg.AssetsNoCache = true
		}
	}
	srv := server.New(scfg, rt, loader, opts...)

	if cfg.Routes.Watch && cfg.Routes.Bucket == "" {
		w, err := manifest.NewWatcher(cfg.ManifestPath(), manifest.DefaultDebounce, func(m *manifest.Manifest, err error) {
			reload(srv, loader, cfg, m, err)
		})
		if err != nil {
			return err
		}
		defer w.Close()
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("manifest watcher stopped", "error", err)
			}
		}()
	}

	success(out, "Serving %d routes on http://%s", len(m.Routes), cfg.Address())
	if cfg.Server.WebSocket {
		info(out, "websocket  ws://%s%s", cfg.Address(), server.WebSocketPath)
	}
	if cfg.Render.Assets != "" {
		info(out, "assets     %s -> %s", scfg.AssetsPrefix, cfg.AssetsPath())
	}
	if cfg.Server.Metrics {
		info(out, "metrics    http://%s/metrics", cfg.Address())
	}
	if cfg.Routes.Watch {
		if cfg.Routes.Bucket != "" {
			warn(out, "--watch ignored for manifests stored in S3")
		} else {
			info(out, "watching   %s", cfg.ManifestPath())
		}
	}
	return srv.Run(ctx)
}

// reload swaps in a changed manifest. A manifest that fails to load or
// build keeps the previous routes.
func reload(srv *server.Server, loader *component.CachingLoader, cfg *config.Config, m *manifest.Manifest, err error) {
	logger := srv.Logger()
	if err != nil {
		logger.Warn("manifest reload failed, keeping previous routes", "error", err)
		return
	}
	rt, err := m.Router(router.WithBasename(cfg.Routes.Basename), router.WithLogger(logger))
	if err != nil {
		logger.Warn("manifest reload failed, keeping previous routes", "error", err)
		return
	}
	loader.Invalidate()
	srv.SetRouter(rt)
}

// loadManifest reads the manifest from S3 when routes.bucket is set,
// otherwise from the local file.
func loadManifest(ctx context.Context, cfg *config.Config) (*manifest.Manifest, error) {
	var src manifest.Source = manifest.FileSource{Path: cfg.ManifestPath()}
	if cfg.Routes.Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		src = manifest.NewS3Source(s3.NewFromConfig(awsCfg), cfg.Routes.Bucket, cfg.Routes.Key)
	}
	return src.Load(ctx)
}

func moduleMap(cfg *config.Config) (component.ModuleMap, error) {
	if cfg.Render.Modules == config.ModulesBuild {
		return component.LoadBuildModuleMap(cfg.ClientManifestPath(), buildAssetsPrefix)
	}
	return component.DevModuleMap{}, nil
}

func stdoutTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp)), nil
}
