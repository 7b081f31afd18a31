// CLAUDE:SUMMARY CLI entry point for savedtabs: watcher plus tab registry, registry-only server, or a one-off HTML check.
// Command savedtabs counts saved items in open tabs and shows the count as
// each tab's indicator.
//
// Usage:
//
//	savedtabs -config savedtabs.yaml                  # watch Chrome with a YAML config
//	savedtabs -url https://bsky.app/saved             # open one page and watch it
//	savedtabs -remote ws://127.0.0.1:9222/devtools/browser/...  # attach to a running Chrome
//	savedtabs -no-browser -listen :8720 -mcp          # registry only (HTTP + MCP)
//	savedtabs -registry http://host:8720 -url ...     # watch, report to a remote registry
//	savedtabs -check page.html -location https://bsky.app/saved
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/savedtabs/pagewatch"
	"github.com/hazyhaar/savedtabs/pagewatch/scan"
	"github.com/hazyhaar/savedtabs/tabregistry"
	"github.com/hazyhaar/savedtabs/tabregistry/sink"
)

const version = "0.1.0"

type options struct {
	configPath string
	url        string
	check      string
	location   string
	listen     string
	remote     string
	registry   string
	mcp        bool
	noBrowser  bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to savedtabs.yaml config file")
	flag.StringVar(&o.url, "url", "", "open this URL at start (added to browser.start_urls)")
	flag.StringVar(&o.check, "check", "", "scan a static HTML file and exit")
	flag.StringVar(&o.location, "location", "", "page URL the -check file was saved from")
	flag.StringVar(&o.listen, "listen", "", "registry HTTP API address (overrides registry.listen)")
	flag.StringVar(&o.remote, "remote", "", "DevTools WebSocket URL of a running Chrome (overrides browser.remote)")
	flag.StringVar(&o.registry, "registry", "", "report to the registry at this base URL instead of an in-process one")
	flag.BoolVar(&o.mcp, "mcp", false, "serve the registry MCP tools over stdio")
	flag.BoolVar(&o.noBrowser, "no-browser", false, "run the registry only")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("savedtabs: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg := pagewatch.DefaultConfig()
	if o.configPath != "" {
		c, err := pagewatch.LoadConfigFile(o.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	if o.url != "" {
		cfg.Browser.StartURLs = append(cfg.Browser.StartURLs, o.url)
	}
	if o.listen != "" {
		cfg.Registry.Listen = o.listen
	}
	if o.remote != "" {
		cfg.Browser.Remote = o.remote
	}
	if o.registry != "" {
		cfg.Registry.Remote = o.registry
	}
	if o.mcp {
		cfg.Registry.MCP = true
	}

	if o.check != "" {
		return runCheck(cfg, o.check, o.location)
	}
	if cfg.Registry.Remote != "" {
		return runRemote(ctx, logger, cfg)
	}
	return runLocal(ctx, logger, cfg, o.noBrowser)
}

// runCheck scans a saved HTML page and prints the result.
func runCheck(cfg *pagewatch.Config, path, location string) error {
	if location == "" {
		location = "https://localhost" + cfg.Route.Prefix
	}
	sc, err := cfg.ScanConfig()
	if err != nil {
		return err
	}
	scanner, err := scan.NewScanner(sc)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	defer f.Close()
	doc, err := scan.ParseHTML(f, location)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	res := scanner.Scan(doc)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		OnRoute bool     `json:"on_route"`
		Count   int      `json:"count"`
		Paths   []string `json:"paths"`
		Handles int      `json:"handles"`
	}{res.OnRoute, res.Count(), res.Paths, len(res.Handles)})
}

// runRemote watches the browser and reports to a registry elsewhere.
func runRemote(ctx context.Context, logger *slog.Logger, cfg *pagewatch.Config) error {
	w, err := pagewatch.New(cfg, logger)
	if err != nil {
		return err
	}
	client := tabregistry.NewClient(cfg.Registry.Remote, nil)
	if err := w.Start(ctx, client); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	logger.Info("savedtabs: reporting to remote registry", "registry", cfg.Registry.Remote)

	<-ctx.Done()
	w.Stop()
	return nil
}

func runLocal(ctx context.Context, logger *slog.Logger, cfg *pagewatch.Config, noBrowser bool) error {
	var w *pagewatch.Watcher
	if !noBrowser {
		var err error
		if w, err = pagewatch.New(cfg, logger); err != nil {
			return err
		}
	}

	appliers, err := buildAppliers(cfg, w, logger)
	if err != nil {
		return err
	}
	reg, err := tabregistry.New(cfg.RegistryOptions(), sink.NewRouter(logger, appliers...), logger)
	if err != nil {
		return err
	}
	reg.Start(ctx)
	defer func() {
		if err := reg.Stop(); err != nil {
			logger.Warn("savedtabs: stop registry", "error", err)
		}
	}()

	var srv *http.Server
	if cfg.Registry.Listen != "" {
		srv = &http.Server{
			Addr:              cfg.Registry.Listen,
			Handler:           reg.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("savedtabs: registry API listening", "addr", cfg.Registry.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("savedtabs: http server", "error", err)
			}
		}()
	}

	if cfg.Registry.MCP {
		srvMCP := mcp.NewServer(&mcp.Implementation{Name: "savedtabs", Version: version}, nil)
		reg.RegisterMCP(srvMCP)
		go func() {
			if err := srvMCP.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("savedtabs: mcp server", "error", err)
			}
		}()
	}

	if w != nil {
		if err := w.Start(ctx, reg); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}

	<-ctx.Done()

	if w != nil {
		w.Stop()
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("savedtabs: http shutdown", "error", err)
		}
	}
	return nil
}

func buildAppliers(cfg *pagewatch.Config, w *pagewatch.Watcher, logger *slog.Logger) ([]sink.Applier, error) {
	var out []sink.Applier
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "favicon":
			if w == nil {
				logger.Info("savedtabs: favicon sink skipped without a browser")
				continue
			}
			out = append(out, w.Applier(sc.Size, sc.Title))
		case "stdout":
			if cfg.Registry.MCP {
				return nil, fmt.Errorf("stdout sink cannot share stdout with the MCP transport")
			}
			out = append(out, sink.NewStdout(os.Stdout, sc.Images))
		case "webhook":
			out = append(out, sink.NewWebhook(sc.URL,
				sink.WithWebhookRetries(sc.Retries),
				sink.WithWebhookImages(sc.Images),
				sink.WithWebhookLogger(logger),
			))
		default:
			logger.Warn("savedtabs: unknown sink type", "type", sc.Type)
		}
	}
	return out, nil
}
