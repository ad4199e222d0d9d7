// CLAUDE:SUMMARY CLI entry point for domveil — HTTP/MCP server, one-shot apply, stylesheet export, live injection.
// Command domveil is the DOM suppression service.
//
// Usage:
//
//	domveil -config domveil.yaml                     # run the HTTP/MCP server
//	domveil -apply page.html -origin https://a.com   # one-shot: apply stored rules, print HTML
//	domveil -css -origin https://a.com               # export stored rules as CSS
//	domveil -live https://a.com                      # open the page in Chrome with rules injected
//	domveil -hash-password secret                    # print a bcrypt hash for auth_hash
//	domveil -mcp                                     # serve the MCP tools over stdio
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domveil"
	"github.com/hazyhaar/domveil/browser"
	"github.com/hazyhaar/domveil/observer"
	"github.com/hazyhaar/domveil/report"
	"github.com/hazyhaar/domveil/server"
	"github.com/hazyhaar/domveil/session"
	"github.com/hazyhaar/domveil/store"
	"github.com/hazyhaar/domveil/suggest"
)

func main() {
	configPath := flag.String("config", "", "path to domveil.yaml config file")
	applyPath := flag.String("apply", "", "one-shot: apply stored rules to an HTML file and print the result")
	origin := flag.String("origin", "", "page origin for -apply, -css and -live")
	cssMode := flag.Bool("css", false, "export stored rules for -origin as a stylesheet")
	liveURL := flag.String("live", "", "open a URL in Chrome with stored rules injected")
	mcpMode := flag.Bool("mcp", false, "serve the MCP tools over stdio instead of HTTP")
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash of the given password and exit")
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

	if *hashPassword != "" {
		hash, err := server.HashPassword(*hashPassword)
		if err != nil {
			logger.Error("domveil: hash password", "error", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *applyPath, *origin, *cssMode, *liveURL, *mcpMode); err != nil {
		logger.Error("domveil: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, applyPath, origin string, cssMode bool, liveURL string, mcpMode bool) error {
	cfg := domveil.DefaultConfig()
	if configPath != "" {
		loaded, err := domveil.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	switch {
	case applyPath != "":
		return runApply(ctx, logger, cfg, st, applyPath, origin)
	case cssMode:
		return runCSS(ctx, st, origin)
	case liveURL != "":
		return runLive(ctx, logger, cfg, st, liveURL, origin)
	case mcpMode:
		return runMCP(ctx, logger, cfg, st)
	default:
		return runServe(ctx, logger, cfg, st)
	}
}

// buildServer assembles the session server with its optional
// collaborators from config.
func buildServer(logger *slog.Logger, cfg *domveil.Config, st *store.Store) (*server.Server, func(), error) {
	opts := []server.Option{}
	cleanup := func() {}

	if cfg.Suggest.URL != "" {
		opts = append(opts, server.WithSuggester(suggest.NewRemote(cfg.Suggest.URL, nil)))
	}
	if cfg.Report.Path != "" {
		f, err := os.OpenFile(cfg.Report.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open report file: %w", err)
		}
		cleanup = func() { f.Close() }
		opts = append(opts, server.WithRecorder(report.NewRecorder(f, logger)))
	}

	srv := server.New(server.Config{
		Addr:     cfg.Server.Addr,
		AuthUser: cfg.Server.AuthUser,
		AuthHash: cfg.Server.AuthHash,
		Logger:   logger,
	}, st, opts...)
	return srv, cleanup, nil
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *domveil.Config, st *store.Store) error {
	srv, cleanup, err := buildServer(logger, cfg, st)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		logger.Info("domveil: shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

// runMCP serves the tool surface over stdio. Logs stay on stderr so
// they never corrupt the JSON-RPC stream.
func runMCP(ctx context.Context, logger *slog.Logger, cfg *domveil.Config, st *store.Store) error {
	srv, cleanup, err := buildServer(logger, cfg, st)
	if err != nil {
		return err
	}
	defer cleanup()

	mcpSrv := mcp.NewServer(&mcp.Implementation{
		Name:    "domveil",
		Version: "1.0.0",
	}, nil)
	srv.RegisterMCP(mcpSrv)

	logger.Info("domveil: MCP serving on stdio")
	return mcpSrv.Run(ctx, &mcp.StdioTransport{})
}

func runApply(ctx context.Context, logger *slog.Logger, cfg *domveil.Config, st *store.Store, path, origin string) error {
	if origin == "" {
		return fmt.Errorf("-apply requires -origin")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	sess, err := session.New(ctx, string(raw), origin, st,
		session.WithLogger(logger),
		session.WithObserverConfig(observer.Config{
			Debounce: cfg.Observer.Debounce,
			Settle:   cfg.Observer.Settle,
		}))
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	out, err := sess.Document().Render()
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	fmt.Println(out)
	return nil
}

func runCSS(ctx context.Context, st *store.Store, origin string) error {
	if origin == "" {
		return fmt.Errorf("-css requires -origin")
	}
	rules, err := st.LoadRules(ctx, origin)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	fmt.Print(browser.Stylesheet(rules))
	return nil
}

func runLive(ctx context.Context, logger *slog.Logger, cfg *domveil.Config, st *store.Store, pageURL, origin string) error {
	if origin == "" {
		origin = pageURL
	}
	rules, err := st.LoadRules(ctx, origin)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	css := browser.Stylesheet(rules)

	bridge := browser.NewBridge(browser.Config{
		RemoteURL:  cfg.Browser.RemoteURL,
		Headless:   *cfg.Browser.Headless,
		NavTimeout: cfg.Browser.NavTimeout,
		Logger:     logger,
	})
	if err := bridge.Connect(ctx); err != nil {
		return err
	}
	defer bridge.Close()

	page, err := bridge.Open(ctx, pageURL, css)
	if err != nil {
		return err
	}
	defer page.Close()

	logger.Info("domveil: rules injected, press Ctrl-C to exit", "url", pageURL, "rules", len(rules))
	<-ctx.Done()
	return nil
}
