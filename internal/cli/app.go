// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/jeranaias/ragchat/internal/api"
	"github.com/jeranaias/ragchat/internal/chat"
	"github.com/jeranaias/ragchat/internal/config"
	"github.com/jeranaias/ragchat/internal/documents"
	"github.com/jeranaias/ragchat/internal/logging"
	"github.com/jeranaias/ragchat/internal/presentation"
	"github.com/jeranaias/ragchat/internal/session"
	"github.com/jeranaias/ragchat/internal/storage"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App holds everything a command needs, built once from config and flags.
type App struct {
	Config        *config.Config
	ConfigPath    string
	Logger        *zap.Logger
	Client        *api.Client
	Chat          *chat.Service
	Presentations *presentation.Service
	Render        *Renderer

	Out    io.Writer
	ErrOut io.Writer
	JSON   bool

	closers []func() error
}

// NewApp loads configuration, applies command-line overrides and wires the
// client stack.
func NewApp(args Args, out, errOut io.Writer) (*App, error) {
	path := args.ConfigPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if args.RAG != nil {
		cfg.Chat.UseRAG = *args.RAG
	}
	if args.TopK > 0 {
		cfg.Chat.TopK = args.TopK
	}

	logger, err := logging.New(cfg.Logging, logging.Options{Verbose: args.Verbose, Console: errOut})
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		ConfigPath: path,
		Logger:     logger,
		Out:        out,
		ErrOut:     errOut,
		JSON:       args.JSON,
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		app.closers = append(app.closers, closeStore)
	}

	app.Client = api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.Timeout()),
		api.WithMaxRetries(cfg.API.MaxRetries),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
		api.WithLogger(logger.Named("api")),
	)
	app.Chat = chat.NewService(app.Client, store, chatOptions(cfg), logger.Named("chat"),
		documents.WithTTL(cfg.CacheTTL()))
	app.Presentations = presentation.NewService(app.Client, logger.Named("presentation"))

	color := setupColors(out, cfg.UI.Color)
	app.Render = NewRenderer(out, cfg.UI.Markdown && !args.NoMarkdown && isTerminal(out), color)

	logger.Debug("app ready",
		zap.String("base_url", cfg.API.BaseURL),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("use_rag", cfg.Chat.UseRAG))
	return app, nil
}

func chatOptions(cfg *config.Config) chat.Options {
	return chat.Options{
		MaxNewTokens: cfg.Chat.MaxNewTokens,
		Temperature:  cfg.Chat.Temperature,
		DoSample:     cfg.Chat.DoSample,
		UseRAG:       cfg.Chat.UseRAG,
		TopK:         cfg.Chat.TopK,
	}
}

// openStore opens the session store the config selects. The returned
// close func is nil when there is nothing to release.
func openStore(cfg *config.Config) (session.Store, func() error, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return session.NewMemoryStore(), nil, nil
	case "sqlite":
		s, err := storage.OpenSQLiteStore(cfg.StoragePath())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := storage.NewFileStore(cfg.StoragePath())
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
}

// Close releases the store and flushes the logger.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	_ = a.Logger.Sync()
	return first
}

// printJSON writes v as indented JSON to the app's output.
func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

func (a *App) warnf(format string, args ...any) {
	fmt.Fprintln(a.ErrOut, WarningStyle.Render(fmt.Sprintf(format, args...)))
}

// =============================================================================
// DISPATCH
// =============================================================================

type handler func(ctx context.Context, app *App, args Args) error

var handlers = map[Command]handler{
	CmdChat:          HandleChat,
	CmdAsk:           HandleAsk,
	CmdDocs:          HandleDocs,
	CmdSession:       HandleSession,
	CmdHealth:        HandleHealth,
	CmdPresentations: HandlePresentations,
}

// Run parses argv, runs the command and returns the process exit code.
func Run(ctx context.Context, argv []string, out, errOut io.Writer) int {
	cmd, args, err := Parse(argv)
	if err != nil {
		fmt.Fprintf(errOut, "%s %v\n\n", ErrorStyle.Render("Error:"), err)
		PrintUsage(errOut)
		return ExitCode(err)
	}

	switch cmd {
	case CmdHelp:
		PrintUsage(out)
		return ExitSuccess
	case CmdVersion:
		PrintVersion(out)
		return ExitSuccess
	case CmdConfig:
		return report(errOut, HandleConfig(args, out))
	case CmdLogs:
		return report(errOut, HandleLogs(args, out))
	}

	app, err := NewApp(args, out, errOut)
	if err != nil {
		return report(errOut, err)
	}
	defer app.Close()

	return report(errOut, handlers[cmd](ctx, app, args))
}

func report(errOut io.Writer, err error) int {
	if err != nil {
		fmt.Fprintf(errOut, "%s %v\n", ErrorStyle.Render("Error:"), err)
	}
	return ExitCode(err)
}
