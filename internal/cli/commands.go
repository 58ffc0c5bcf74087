// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/ragchat/internal/config"
	"github.com/jeranaias/ragchat/internal/export"
	"github.com/jeranaias/ragchat/internal/logging"
	"github.com/jeranaias/ragchat/internal/presentation"
	"github.com/jeranaias/ragchat/internal/util"
)

// =============================================================================
// ASK
// =============================================================================

// HandleAsk sends a single question in the current session and prints the
// answer.
func HandleAsk(ctx context.Context, app *App, args Args) error {
	text := strings.TrimSpace(args.Text())
	if text == "" {
		return usagef("usage: ragchat ask QUESTION")
	}
	if _, err := app.Chat.Start(ctx); err != nil {
		return err
	}

	if app.JSON {
		res, err := app.Chat.Send(ctx, text, nil)
		if err != nil {
			return err
		}
		return app.printJSON(res.Message)
	}
	return newREPL(app).ask(ctx, text)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// HandleDocs handles "docs list|upload|delete".
func HandleDocs(ctx context.Context, app *App, args Args) error {
	switch args.Subcommand {
	case "", "list", "ls":
		if _, ok := app.Chat.Sessions().Get(); !ok {
			app.printf("%s\n", DimStyle.Render("No active session."))
			return nil
		}
		docs, err := app.Chat.ListDocuments(ctx, args.Flags.BoolFlag("refresh"))
		if err != nil {
			return err
		}
		if app.JSON {
			return app.printJSON(docs)
		}
		fmt.Fprint(app.Out, app.Render.Documents(docs))
		return nil

	case "upload", "add":
		if len(args.Rest) == 0 {
			return usagef("usage: ragchat docs upload FILE...")
		}
		return uploadFiles(ctx, app, args.Rest)

	case "delete", "rm":
		if len(args.Rest) != 1 {
			return usagef("usage: ragchat docs delete ID")
		}
		return deleteDocument(ctx, app, args.Rest[0])

	default:
		return usagef(fmt.Sprintf("unknown docs subcommand %q", args.Subcommand))
	}
}

// =============================================================================
// SESSION
// =============================================================================

// HandleSession handles "session show|new|reset|export".
func HandleSession(ctx context.Context, app *App, args Args) error {
	sessions := app.Chat.Sessions()
	switch args.Subcommand {
	case "", "show":
		if app.JSON {
			rec, ok := sessions.Info()
			if !ok {
				return app.printJSON(nil)
			}
			return app.printJSON(rec)
		}
		printSession(app)
		return nil

	case "new":
		id, err := app.Chat.NewSession(ctx)
		if err != nil {
			return err
		}
		app.printf("%s %s\n", SuccessStyle.Render("[New session]"), id)
		return nil

	case "reset", "clear":
		if err := sessions.Reset(); err != nil {
			return err
		}
		app.printf("%s\n", SuccessStyle.Render("[Session cleared]"))
		return nil

	case "export":
		if _, ok := sessions.Get(); !ok {
			return fmt.Errorf("no active session to export")
		}
		if err := app.Chat.LoadHistory(ctx); err != nil {
			return err
		}
		return exportSession(app, args.Flags.Flag("format", "f"), args.Flags.Flag("output", "o"))

	default:
		return usagef(fmt.Sprintf("unknown session subcommand %q", args.Subcommand))
	}
}

// exportSession writes the transcript held in memory to a file.
func exportSession(app *App, format, output string) error {
	opts := export.DefaultOptions()
	opts.Path = output
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return usagef(err.Error())
	}
	id, _ := app.Chat.Sessions().Get()
	conv := export.NewConversation(id, app.Chat.Transcript().Messages())
	path, err := export.ToFile(conv, exp, opts)
	if err != nil {
		return err
	}
	app.Logger.Info("session exported", zap.String("path", path), zap.Int("messages", len(conv.Messages)))
	if app.JSON {
		return app.printJSON(map[string]any{"path": path, "messages": len(conv.Messages)})
	}
	app.printf("%s %s\n", SuccessStyle.Render("[Exported]"), path)
	return nil
}

// =============================================================================
// HEALTH
// =============================================================================

// HandleHealth prints the backend's health report. An unhealthy backend is
// an error so scripts can test the exit code.
func HandleHealth(ctx context.Context, app *App, args Args) error {
	return printHealth(ctx, app)
}

// =============================================================================
// PRESENTATIONS
// =============================================================================

// HandlePresentations handles "presentations list|analyze TOPIC".
func HandlePresentations(ctx context.Context, app *App, args Args) error {
	switch args.Subcommand {
	case "", "list", "ls":
		id, ok := app.Chat.Sessions().Get()
		if !ok {
			app.printf("%s\n", DimStyle.Render("No active session."))
			return nil
		}
		ps, err := app.Presentations.List(ctx, id)
		if err != nil {
			return err
		}
		if app.JSON {
			return app.printJSON(ps)
		}
		fmt.Fprint(app.Out, app.Render.Presentations(ps))
		return nil

	case "analyze":
		topic := strings.TrimSpace(strings.Join(args.Rest, " "))
		if topic == "" {
			return usagef("usage: ragchat presentations analyze TOPIC")
		}
		id, err := app.Chat.Sessions().Ensure(ctx)
		if err != nil {
			return err
		}
		return analyzeTopic(ctx, app, id, topic)

	default:
		return usagef(fmt.Sprintf("unknown presentations subcommand %q", args.Subcommand))
	}
}

func analyzeTopic(ctx context.Context, app *App, sessionID, topic string) error {
	markdown := app.Render.Markdown()
	res, err := app.Presentations.Analyze(ctx, sessionID, topic, func(f presentation.Frame) {
		switch f.Type {
		case presentation.FrameStart, presentation.FrameProgress:
			if f.Message != "" {
				fmt.Fprintln(app.ErrOut, DimStyle.Render("» "+f.Message))
			}
		case presentation.FrameStepComplete:
			fmt.Fprintln(app.ErrOut, SuccessStyle.Render("✓ ")+DimStyle.Render(f.Step))
		case presentation.FrameContentChunk:
			if !markdown && !app.JSON {
				io.WriteString(app.Out, f.Content)
			}
		}
	})
	if err != nil {
		return err
	}

	if app.JSON {
		return app.printJSON(map[string]any{
			"topic":     topic,
			"content":   res.Content,
			"analysis":  res.Analysis,
			"steps":     res.Steps,
			"completed": res.Completed,
		})
	}
	if markdown {
		fmt.Fprint(app.Out, app.Render.Answer(res.Content))
	} else {
		fmt.Fprintln(app.Out)
	}
	if !res.Completed {
		fmt.Fprintln(app.ErrOut, DimStyle.Render("[analysis ended before completion]"))
	}
	return nil
}

// =============================================================================
// CONFIG
// =============================================================================

// HandleConfig handles "config show|get|set|path". It reads the file
// without validating so that an invalid setting can be fixed with set.
func HandleConfig(args Args, out io.Writer) error {
	path := args.ConfigPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadTOML(path)
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "", "show":
		for _, key := range cfg.Keys() {
			v, _ := cfg.Get(key)
			fmt.Fprintf(out, "%s = %v\n", util.PadRight(key, 34), v)
		}
		return nil

	case "get":
		if len(args.Rest) != 1 {
			return usagef("usage: ragchat config get KEY")
		}
		v, err := cfg.Get(args.Rest[0])
		if err != nil {
			return usagef(err.Error())
		}
		fmt.Fprintln(out, v)
		return nil

	case "set":
		if len(args.Rest) != 2 {
			return usagef("usage: ragchat config set KEY VALUE")
		}
		if err := cfg.Set(args.Rest[0], args.Rest[1]); err != nil {
			return usagef(err.Error())
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.SaveTOML(path); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s = %s\n", SuccessStyle.Render("[Saved]"), args.Rest[0], args.Rest[1])
		return nil

	case "path":
		fmt.Fprintln(out, path)
		return nil

	default:
		return usagef(fmt.Sprintf("unknown config subcommand %q", args.Subcommand))
	}
}

// =============================================================================
// LOGS
// =============================================================================

// HandleLogs prints recent entries from the JSON log file, newest first.
func HandleLogs(args Args, out io.Writer) error {
	path := args.ConfigPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadTOML(path)
	if err != nil {
		return err
	}
	if cfg.Logging.File == "" {
		return usagef("no log file configured (set logging.file)")
	}

	n, _, err := args.Flags.FlagInt("n", "lines")
	if err != nil {
		return usagef(err.Error())
	}
	if n <= 0 {
		n = 50
	}

	entries, err := logging.Tail(cfg.Logging.File, args.Flags.Flag("level"), n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := ""
		for _, k := range keys {
			fields += fmt.Sprintf(" %s=%v", k, e.Fields[k])
		}
		fmt.Fprintf(out, "%s %s %s%s\n",
			DimStyle.Render(e.Timestamp),
			util.PadRight(e.Level, 5),
			e.Message,
			DimStyle.Render(fields))
	}
	return nil
}
