// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/jeranaias/ragchat/internal/api"
	"github.com/jeranaias/ragchat/internal/config"
	"github.com/jeranaias/ragchat/internal/documents"
	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/stream"
	"github.com/jeranaias/ragchat/internal/util"
)

// =============================================================================
// REPL STATE
// =============================================================================

// repl runs chat turns and slash commands against one App.
type repl struct {
	app *App

	mu     sync.Mutex
	cancel context.CancelFunc
	// fileChat is the [chat] section last read from the config file.
	fileChat config.ChatConfig
}

func newREPL(app *App) *repl {
	return &repl{app: app, fileChat: app.Config.Chat}
}

// interrupt stops the turn being streamed. It reports whether there was one.
func (r *repl) interrupt() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat runs the interactive chat REPL.
func HandleChat(ctx context.Context, app *App, args Args) error {
	id, err := app.Chat.Start(ctx)
	if err != nil {
		return err
	}

	r := newREPL(app)
	r.printWelcome(id)

	bg, stop := context.WithCancel(ctx)
	defer stop()
	r.startBackground(bg, args)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	historyPath := app.Config.HistoryPath()
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer saveHistory(line, historyPath, app.Logger)

	// Ctrl+C while an answer streams cancels that answer only. At the
	// prompt liner handles it and aborts the REPL.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	done := make(chan struct{})
	defer close(done)
	go r.forwardInterrupts(sigs, done)

	for {
		input, err := line.Prompt("ragchat> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(app.Out)
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		quit, err := r.handleLine(ctx, input)
		if err != nil {
			fmt.Fprintf(app.ErrOut, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
		if quit {
			return nil
		}
	}
}

// forwardInterrupts cancels the current turn on every signal until done
// is closed.
func (r *repl) forwardInterrupts(sigs <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-sigs:
			if r.interrupt() {
				fmt.Fprintln(r.app.ErrOut, "\n"+WarningStyle.Render("[Cancelled]"))
			}
		}
	}
}

// applyConfig pushes [chat] settings that changed in the file. Settings
// given on the command line keep their flag value.
func (r *repl) applyConfig(c *config.Config, args Args) {
	r.mu.Lock()
	prev := r.fileChat
	r.fileChat = c.Chat
	r.mu.Unlock()

	if args.RAG == nil && c.Chat.UseRAG != prev.UseRAG {
		r.app.Chat.SetRAG(c.Chat.UseRAG)
	}
	if args.TopK == 0 && c.Chat.TopK != prev.TopK {
		r.app.Chat.SetTopK(c.Chat.TopK)
	}
}

// startBackground polls backend health and follows config edits until ctx
// ends.
func (r *repl) startBackground(ctx context.Context, args Args) {
	app := r.app

	monitor := api.NewHealthMonitor(app.Client, app.Config.HealthInterval(), app.Logger.Named("health"))
	monitor.OnChange(func(h model.HealthStatus) {
		if !h.Healthy() {
			app.warnf("[Backend %s]", h.Status)
		}
	})
	go monitor.Run(ctx)

	go func() {
		err := config.Watch(ctx, app.ConfigPath, app.Logger.Named("config"), func(c *config.Config) {
			r.applyConfig(c, args)
		})
		if err != nil {
			app.Logger.Debug("config watch disabled", zap.Error(err))
		}
	}()
}

func saveHistory(line *liner.State, path string, logger *zap.Logger) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		logger.Debug("history not saved", zap.Error(err))
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		logger.Debug("history not saved", zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := line.WriteHistory(f); err != nil {
		logger.Debug("history not saved", zap.Error(err))
	}
}

func (r *repl) printWelcome(sessionID string) {
	app := r.app
	opts := app.Chat.Options()
	fmt.Fprintln(app.Out, TitleStyle.Render("ragchat")+" "+DimStyle.Render(app.Client.BaseURL()))
	fmt.Fprintln(app.Out, RenderField("Session", sessionID))
	fmt.Fprintln(app.Out, RenderField("Expires in", app.Chat.Sessions().FormatTimeUntilExpiry()))
	fmt.Fprintln(app.Out, RenderField("Retrieval", ragLabel(opts.UseRAG, opts.TopK)))
	if n := len(app.Chat.Documents().Documents(sessionID)); n > 0 {
		fmt.Fprintln(app.Out, RenderField("Documents", strconv.Itoa(n)))
	}
	if n := app.Chat.Transcript().Len(); n > 0 {
		fmt.Fprintln(app.Out, RenderField("History", strconv.Itoa(n)+" message(s)"))
	}
	fmt.Fprintln(app.Out, DimStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Fprintln(app.Out)
}

func ragLabel(on bool, topK int) string {
	if !on {
		return "off"
	}
	return "on (top " + strconv.Itoa(topK) + ")"
}

// =============================================================================
// LINE HANDLING
// =============================================================================

// handleLine runs one line of REPL input. quit is true when the user asked
// to leave.
func (r *repl) handleLine(ctx context.Context, input string) (quit bool, err error) {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return false, nil
	case strings.EqualFold(input, "exit"), strings.EqualFold(input, "quit"):
		return true, nil
	case strings.HasPrefix(input, "/"):
		return r.slash(ctx, strings.Fields(input))
	default:
		return false, r.ask(ctx, input)
	}
}

// ask sends one message and prints the answer as it streams.
func (r *repl) ask(ctx context.Context, text string) error {
	app := r.app

	turnCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	markdown := app.Render.Markdown()
	printer := &streamPrinter{w: app.Out}
	start := time.Now()

	res, err := app.Chat.Send(turnCtx, text, func(m model.Message) {
		if !markdown {
			printer.update(m.Content)
		}
	})

	content := res.Message.Content
	if markdown && content != "" {
		fmt.Fprint(app.Out, app.Render.Answer(content))
	} else if content != "" {
		fmt.Fprintln(app.Out)
	}

	var protocol *stream.ProtocolError
	switch {
	case err == nil:
	case turnCtx.Err() != nil && ctx.Err() == nil:
		return nil
	case errors.As(err, &protocol):
		return fmt.Errorf("the server could not answer: %s", protocol.Message)
	default:
		return err
	}

	if cites := app.Render.Citations(res.Message.Citations); cites != "" {
		fmt.Fprint(app.Out, cites)
	}
	if !res.Completed {
		fmt.Fprintln(app.ErrOut, DimStyle.Render("[stream ended before the answer was complete]"))
	}
	app.Logger.Debug("turn finished", zap.Duration("elapsed", time.Since(start)))
	fmt.Fprintln(app.Out)
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (r *repl) slash(ctx context.Context, parts []string) (bool, error) {
	app := r.app
	cmd := strings.ToLower(parts[0])
	rest := parts[1:]

	switch cmd {
	case "/help", "/h", "/?", "/":
		r.printHelp()

	case "/quit", "/q", "/exit":
		return true, nil

	case "/new":
		id, err := app.Chat.NewSession(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(app.Out, SuccessStyle.Render("[New session]")+" "+id)

	case "/session":
		printSession(app)

	case "/rag":
		opts := app.Chat.Options()
		on := !opts.UseRAG
		if len(rest) > 0 {
			v, err := ParseBoolString(rest[0])
			if err != nil {
				return false, usagef("usage: /rag [on|off]")
			}
			on = v
		}
		app.Chat.SetRAG(on)
		fmt.Fprintln(app.Out, RenderField("Retrieval", ragLabel(on, opts.TopK)))

	case "/topk":
		if len(rest) != 1 {
			return false, usagef("usage: /topk N")
		}
		k, err := strconv.Atoi(rest[0])
		if err != nil || k < 1 || k > 50 {
			return false, usagef("top k must be between 1 and 50")
		}
		app.Chat.SetTopK(k)
		fmt.Fprintln(app.Out, RenderField("Retrieval", ragLabel(app.Chat.Options().UseRAG, k)))

	case "/docs", "/documents":
		docs, err := app.Chat.ListDocuments(ctx, false)
		if err != nil {
			return false, err
		}
		fmt.Fprint(app.Out, app.Render.Documents(docs))

	case "/refresh":
		docs, err := app.Chat.ListDocuments(ctx, true)
		if err != nil {
			return false, err
		}
		fmt.Fprint(app.Out, app.Render.Documents(docs))

	case "/upload":
		if len(rest) == 0 {
			return false, usagef("usage: /upload PATH")
		}
		return false, uploadFiles(ctx, app, []string{strings.Join(rest, " ")})

	case "/delete", "/rm":
		if len(rest) != 1 {
			return false, usagef("usage: /delete ID")
		}
		return false, deleteDocument(ctx, app, rest[0])

	case "/history":
		r.printHistory()

	case "/export":
		format := ""
		if len(rest) > 0 {
			format = rest[0]
		}
		return false, exportSession(app, format, strings.Join(rest[min(len(rest), 1):], " "))

	case "/health":
		return false, printHealth(ctx, app)

	default:
		return false, usagef(fmt.Sprintf("unknown command: %s (type /help for commands)", cmd))
	}
	return false, nil
}

func (r *repl) printHelp() {
	out := r.app.Out
	fmt.Fprintln(out, TitleStyle.Render("Commands"))
	for _, c := range [][2]string{
		{"/new", "Start a new session"},
		{"/session", "Show the session id and time left"},
		{"/rag [on|off]", "Show or toggle retrieval"},
		{"/topk N", "Set how many chunks retrieval attaches"},
		{"/docs", "List documents"},
		{"/refresh", "Reload the document list"},
		{"/upload PATH", "Upload a document"},
		{"/delete ID", "Delete a document"},
		{"/history", "Show this session's messages"},
		{"/export [FMT] [PATH]", "Save the conversation (md, json, txt)"},
		{"/health", "Check the backend"},
		{"/quit", "Exit"},
	} {
		fmt.Fprintln(out, "  "+util.PadRight(c[0], 16)+DimStyle.Render(c[1]))
	}
}

func (r *repl) printHistory() {
	app := r.app
	msgs := app.Chat.Transcript().Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(app.Out, DimStyle.Render("No messages yet."))
		return
	}
	for _, m := range msgs {
		label := m.Role.DisplayName()
		if m.Role == model.RoleUser {
			label = PromptStyle.Render(label)
		} else {
			label = SourceStyle.Render(label)
		}
		fmt.Fprintf(app.Out, "%s: %s\n", label, util.Preview(m.Content, app.Render.width-12))
	}
}

// =============================================================================
// SHARED ACTIONS
// =============================================================================

func uploadFiles(ctx context.Context, app *App, paths []string) error {
	for _, p := range paths {
		res, err := app.Chat.UploadFile(ctx, p)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if app.JSON {
			if err := app.printJSON(res); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(app.Out, "%s %s %s\n",
			SuccessStyle.Render("[Uploaded]"),
			res.Filename,
			DimStyle.Render(fmt.Sprintf("(%s, %d chunks)", res.DocumentID, res.ChunksCount)))
	}
	return nil
}

func deleteDocument(ctx context.Context, app *App, id string) error {
	err := app.Chat.DeleteDocument(ctx, id)
	var inconsistent *documents.CacheInconsistencyError
	if errors.As(err, &inconsistent) {
		if inconsistent.ReloadErr == nil {
			app.warnf("Delete failed; the document list was reloaded from the server.")
		}
		return inconsistent.Err
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Out, SuccessStyle.Render("[Deleted]")+" "+id)
	return nil
}

func printSession(app *App) {
	rec, ok := app.Chat.Sessions().Info()
	if !ok {
		fmt.Fprintln(app.Out, DimStyle.Render("No active session."))
		return
	}
	fmt.Fprintln(app.Out, RenderField("Session", rec.SessionID))
	fmt.Fprintln(app.Out, RenderField("Created", rec.CreatedTime().Local().Format(time.DateTime)))
	fmt.Fprintln(app.Out, RenderField("Expires", rec.ExpiresTime().Local().Format(time.DateTime)))
	fmt.Fprintln(app.Out, RenderField("Time left", app.Chat.Sessions().FormatTimeUntilExpiry()))
}

func printHealth(ctx context.Context, app *App) error {
	h, err := app.Chat.Health(ctx)
	if app.JSON {
		if jerr := app.printJSON(h); jerr != nil {
			return jerr
		}
		return err
	}
	fmt.Fprintln(app.Out, RenderField("Backend", RenderStatus(h.Status)+" "+app.Client.BaseURL()))
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Out, RenderField("LLM server", RenderStatus(availability(h.LLMServerAvailable))))
	fmt.Fprintln(app.Out, RenderField("Database", RenderStatus(availability(h.DatabaseConnected))))
	if !h.Healthy() {
		return fmt.Errorf("backend reports %s", h.Status)
	}
	return nil
}

func availability(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
