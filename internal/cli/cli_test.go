// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragchat/internal/api"
	"github.com/jeranaias/ragchat/internal/config"
	"github.com/jeranaias/ragchat/internal/documents"
	"github.com/jeranaias/ragchat/internal/model"
)

// =============================================================================
// ARG PARSER TESTS
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"list"},
			wantSub: "list",
		},
		{
			name:    "flag with value",
			args:    []string{"logs", "-n", "20"},
			wantSub: "logs",
			validate: func(t *testing.T, p *ArgParser) {
				n, ok, err := p.FlagInt("n")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, 20, n)
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"chat", "--rag=off"},
			wantSub: "chat",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "off", p.Flag("rag"))
			},
		},
		{
			name:    "explicit boolean",
			args:    []string{"--json=false", "docs"},
			wantSub: "docs",
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.HasFlag("json"))
				assert.False(t, p.BoolFlag("json"))
			},
		},
		{
			name:    "declared boolean does not swallow positional",
			args:    []string{"--json", "docs", "list"},
			bools:   []string{"json"},
			wantSub: "docs",
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("json"))
				assert.Equal(t, []string{"list"}, p.PositionalFrom(1))
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"ask", "--", "-what", "is", "--this"},
			wantSub: "ask",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, 4, p.PositionalCount())
				assert.Equal(t, "-what is --this", strings.Join(p.PositionalFrom(1), " "))
			},
		},
		{
			name:    "aliases",
			args:    []string{"-k", "8"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "8", p.Flag("top-k", "k"))
				assert.Equal(t, "", p.Positional(3))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			assert.Equal(t, tt.wantSub, p.Subcommand())
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_FlagIntErrors(t *testing.T) {
	p := NewArgParser([]string{"--top-k", "many"})
	_, ok, err := p.FlagInt("top-k")
	assert.True(t, ok)
	assert.ErrorContains(t, err, "must be an integer")

	_, ok, err = NewArgParser(nil).FlagInt("top-k")
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"on", "YES", "true", "1", "y"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"off", "No", "false", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("sometimes")
	assert.Error(t, err)
}

// =============================================================================
// COMMAND PARSING TESTS
// =============================================================================

func TestParse(t *testing.T) {
	cmd, args, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, CmdChat, cmd)
	assert.Nil(t, args.RAG)

	cmd, args, err = Parse([]string{"--rag", "off", "-k", "9", "ask", "what", "is", "RAG?"})
	require.NoError(t, err)
	assert.Equal(t, CmdAsk, cmd)
	require.NotNil(t, args.RAG)
	assert.False(t, *args.RAG)
	assert.Equal(t, 9, args.TopK)
	assert.Equal(t, "what is RAG?", args.Text())

	cmd, args, err = Parse([]string{"docs", "upload", "a.pdf", "b.txt", "--json"})
	require.NoError(t, err)
	assert.Equal(t, CmdDocs, cmd)
	assert.Equal(t, "upload", args.Subcommand)
	assert.Equal(t, []string{"a.pdf", "b.txt"}, args.Rest)
	assert.True(t, args.JSON)

	cmd, _, err = Parse([]string{"status"})
	require.NoError(t, err)
	assert.Equal(t, CmdHealth, cmd)

	cmd, _, err = Parse([]string{"docs", "--help"})
	require.NoError(t, err)
	assert.Equal(t, CmdHelp, cmd)
}

func TestParse_Errors(t *testing.T) {
	for _, argv := range [][]string{
		{"frobnicate"},
		{"--rag", "sometimes"},
		{"--top-k", "0"},
		{"--top-k", "51"},
		{"--top-k", "five"},
	} {
		_, _, err := Parse(argv)
		var usage *UsageError
		assert.ErrorAs(t, err, &usage, "%v", argv)
		assert.Equal(t, ExitUsageError, ExitCode(err))
	}
}

// =============================================================================
// EXIT CODE TESTS
// =============================================================================

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitGeneralError, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitConfigError, ExitCode(config.ValidationErrors{{Field: "chat.top_k", Message: "bad"}}))
	assert.Equal(t, ExitUsageError, ExitCode(&documents.UploadError{Filename: "x.exe", Reason: "type"}))
	assert.Equal(t, ExitNetworkError, ExitCode(fmt.Errorf("wrap: %w", &api.TransportError{Op: "health check", StatusCode: 502})))
	assert.Equal(t, ExitNotFoundError, ExitCode(&api.TransportError{Op: "delete document", StatusCode: 404}))
	assert.Equal(t, ExitTimeoutError, ExitCode(fmt.Errorf("send: %w", context.DeadlineExceeded)))
}

// =============================================================================
// RENDERING TESTS
// =============================================================================

func TestRenderer_Citations(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, false, false)
	assert.Empty(t, r.Citations(nil))

	out := r.Citations([]model.Citation{
		{DocumentTitle: "handbook.pdf", ChunkContent: "Leave   requests\nneed two weeks.", SimilarityScore: 0.873},
		{DocumentID: "doc-2", SimilarityScore: 1.7},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Sources")
	assert.Contains(t, lines[1], "[1] handbook.pdf")
	assert.Contains(t, lines[1], "87%")
	assert.Contains(t, lines[1], "Leave requests need two weeks.")
	assert.Contains(t, lines[2], "doc-2")
	assert.Contains(t, lines[2], "100%")
}

func TestRenderer_PlainAnswer(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, false, false)
	assert.False(t, r.Markdown())
	assert.Equal(t, "**bold**", r.Answer("**bold**"))
}

func TestRenderer_MarkdownAnswer(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, true, false)
	require.True(t, r.Markdown())
	out := r.Answer("# Title\n\nSome **bold** text.")
	assert.Contains(t, out, "Title")
	assert.NotContains(t, out, "**")
}

func TestStreamPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &streamPrinter{w: &buf}
	p.update("Hel")
	p.update("Hello")
	p.update("Hello")
	assert.Equal(t, "Hello", buf.String())

	p.update("Goodbye")
	assert.Equal(t, "Hello\nGoodbye", buf.String())
}

// =============================================================================
// END-TO-END COMMAND TESTS
// =============================================================================

// fakeBackend serves just enough of the backend API for the commands.
type fakeBackend struct {
	mu       sync.Mutex
	sessions int
	docs     []string
	health   string
	frames   []string
	history  string
	lastChat api.ChatRequest
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/sessions":
		f.sessions++
		fmt.Fprintf(w, `{"session_id":"sess-%d"}`, f.sessions)

	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/messages"):
		if f.history == "" {
			f.history = `{"messages":[]}`
		}
		w.Write([]byte(f.history))

	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/documents"):
		var items []string
		for _, d := range f.docs {
			items = append(items, fmt.Sprintf(`{"document_id":%q,"title":%q}`, d, d+".pdf"))
		}
		fmt.Fprintf(w, `{"documents":[%s],"total_count":%d}`, strings.Join(items, ","), len(items))

	case r.URL.Path == "/documents/upload":
		_, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		id := fmt.Sprintf("doc-%d", len(f.docs)+1)
		f.docs = append(f.docs, id)
		fmt.Fprintf(w, `{"document_id":%q,"filename":%q,"chunks_count":3}`, id, header.Filename)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/documents/"):
		w.Write([]byte(`{}`))

	case r.URL.Path == "/health":
		fmt.Fprintf(w, `{"status":%q,"llm_server_available":true,"database_connected":true}`, f.health)

	case r.URL.Path == "/chat/stream":
		json.NewDecoder(r.Body).Decode(&f.lastChat)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range f.frames {
			io.WriteString(w, frame+"\n\n")
		}

	default:
		http.NotFound(w, r)
	}
}

// testEnv is a config file pointing at a fake backend, with file storage
// in a temp dir so the session survives between runs.
type testEnv struct {
	backend    *fakeBackend
	configPath string
	dir        string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, k := range []string{"BASE_URL", "STORAGE", "STORAGE_PATH", "USE_RAG", "TOP_K", "LOG_FILE", "LOG_LEVEL"} {
		t.Setenv(config.EnvPrefix+k, "")
	}
	t.Setenv("FORCE_COLOR", "")

	f := &fakeBackend{
		health: "healthy",
		frames: []string{
			`data: {"type":"start"}`,
			`data: {"type":"token","content":"Paris is "}`,
			`data: {"type":"token","content":"the capital."}`,
			`data: {"type":"complete","rag_context":[{"document_title":"atlas.pdf","chunk_content":"Paris, capital of France","similarity_score":0.91}]}`,
		},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	cfg.API.RateLimit = 0
	cfg.API.MaxRetries = 0
	cfg.Storage.Backend = "file"
	cfg.Storage.Path = filepath.Join(dir, "state")
	cfg.Logging.File = filepath.Join(dir, "ragchat.log")
	cfg.Logging.Level = "debug"
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, cfg.SaveTOML(path))

	return &testEnv{backend: f, configPath: path, dir: dir}
}

func (e *testEnv) run(t *testing.T, argv ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Run(context.Background(), append([]string{"--config", e.configPath}, argv...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_VersionAndHelp(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, ExitSuccess, Run(context.Background(), []string{"version"}, &out, io.Discard))
	assert.Contains(t, out.String(), "ragchat version "+Version)

	out.Reset()
	assert.Equal(t, ExitSuccess, Run(context.Background(), []string{"--help"}, &out, io.Discard))
	assert.Contains(t, out.String(), "ragchat docs upload FILE")

	var errOut bytes.Buffer
	assert.Equal(t, ExitUsageError, Run(context.Background(), []string{"nope"}, io.Discard, &errOut))
	assert.Contains(t, errOut.String(), `unknown command "nope"`)
}

func TestRun_SessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	code, out, _ := env.run(t, "session", "show")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "No active session.")

	code, out, _ = env.run(t, "session", "new")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "sess-1")

	code, out, _ = env.run(t, "session", "--json")
	require.Equal(t, ExitSuccess, code)
	var rec struct {
		SessionID string `json:"sessionId"`
		ExpiresAt int64  `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.NotZero(t, rec.ExpiresAt)

	code, out, _ = env.run(t, "session", "reset")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Session cleared")

	_, out, _ = env.run(t, "session")
	assert.Contains(t, out, "No active session.")
}

func TestRun_SessionExport(t *testing.T) {
	env := newTestEnv(t)

	code, _, errOut := env.run(t, "session", "export")
	assert.Equal(t, ExitGeneralError, code)
	assert.Contains(t, errOut, "no active session")

	code, _, _ = env.run(t, "session", "new")
	require.Equal(t, ExitSuccess, code)

	code, _, errOut = env.run(t, "session", "export")
	assert.Equal(t, ExitGeneralError, code)
	assert.Contains(t, errOut, "no messages")

	env.backend.mu.Lock()
	env.backend.history = `{"session_id":"sess-1","messages":[
		{"message_id":"m1","role":"user","content":"Capital of France?","created_at":"2025-03-01T09:30:00"},
		{"message_id":"m2","role":"assistant","content":"Paris.","created_at":"2025-03-01T09:30:02",
		 "rag_context":[{"document_title":"atlas.pdf","chunk_content":"Paris","similarity_score":0.9}]}]}`
	env.backend.mu.Unlock()

	target := filepath.Join(env.dir, "out.md")
	code, out, errOut := env.run(t, "session", "export", "--format", "md", "--output", target)
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "[Exported] "+target)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Capital of France?")
	assert.Contains(t, string(data), "atlas.pdf (90%)")

	code, _, errOut = env.run(t, "session", "export", "-f", "pdf")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, "unknown export format")
}

func TestRun_DocsUploadListDelete(t *testing.T) {
	env := newTestEnv(t)

	code, out, _ := env.run(t, "docs", "list")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "No active session.")

	file := filepath.Join(env.dir, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("notes"), 0600))

	code, out, errOut := env.run(t, "docs", "upload", file)
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "[Uploaded] notes.txt")
	assert.Contains(t, out, "3 chunks")

	code, out, _ = env.run(t, "docs", "list", "--json")
	require.Equal(t, ExitSuccess, code)
	var docs []model.Document
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0].ID)

	code, out, _ = env.run(t, "docs", "delete", "doc-1")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "[Deleted] doc-1")
}

func TestRun_DocsUploadRejectsType(t *testing.T) {
	env := newTestEnv(t)
	file := filepath.Join(env.dir, "tool.exe")
	require.NoError(t, os.WriteFile(file, []byte("MZ"), 0600))

	code, _, errOut := env.run(t, "docs", "upload", file)
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, "tool.exe")

	env.backend.mu.Lock()
	defer env.backend.mu.Unlock()
	assert.Empty(t, env.backend.docs)
}

func TestRun_Health(t *testing.T) {
	env := newTestEnv(t)

	code, out, _ := env.run(t, "health")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "[OK]")

	env.backend.mu.Lock()
	env.backend.health = "degraded"
	env.backend.mu.Unlock()

	code, _, errOut := env.run(t, "health")
	assert.Equal(t, ExitGeneralError, code)
	assert.Contains(t, errOut, "backend reports degraded")
}

func TestRun_AskStreamsAnswerWithSources(t *testing.T) {
	env := newTestEnv(t)

	code, out, errOut := env.run(t, "--rag", "on", "-k", "3", "ask", "capital", "of", "France?")
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Contains(t, out, "Paris is the capital.")
	assert.Contains(t, out, "Sources")
	assert.Contains(t, out, "atlas.pdf")
	assert.Contains(t, out, "91%")

	env.backend.mu.Lock()
	defer env.backend.mu.Unlock()
	assert.Equal(t, "capital of France?", env.backend.lastChat.Message)
	assert.True(t, env.backend.lastChat.UseRAG)
	assert.Equal(t, 3, env.backend.lastChat.TopK)
	assert.Equal(t, "sess-1", env.backend.lastChat.SessionID)
}

func TestRun_AskReportsServerError(t *testing.T) {
	env := newTestEnv(t)
	env.backend.frames = []string{
		`data: {"type":"token","content":"Par"}`,
		`data: {"type":"error","message":"model overloaded"}`,
	}

	code, _, errOut := env.run(t, "ask", "hi")
	assert.Equal(t, ExitGeneralError, code)
	assert.Contains(t, errOut, "model overloaded")
}

func TestRun_InvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.configPath, []byte("[chat]\ntop_k = 99\n"), 0600))

	code, _, errOut := env.run(t, "health")
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, errOut, "chat.top_k")

	// config set still works on an invalid file
	code, _, errOut = env.run(t, "config", "set", "chat.top_k", "6")
	require.Equal(t, ExitSuccess, code, errOut)
	_, out, _ := env.run(t, "config", "get", "chat.top_k")
	assert.Equal(t, "6\n", out)
}

func TestRun_ConfigSetRejectsInvalidValue(t *testing.T) {
	env := newTestEnv(t)

	code, _, errOut := env.run(t, "config", "set", "chat.temperature", "9")
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, errOut, "chat.temperature")

	_, out, _ := env.run(t, "config", "get", "chat.temperature")
	assert.Equal(t, "0.7\n", out)
}

func TestRun_LogsShowsRecentEntries(t *testing.T) {
	env := newTestEnv(t)
	code, _, _ := env.run(t, "session", "new")
	require.Equal(t, ExitSuccess, code)

	code, out, _ := env.run(t, "logs", "-n", "5")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "app ready")
	assert.LessOrEqual(t, strings.Count(out, "\n"), 5)
}

// =============================================================================
// REPL TESTS
// =============================================================================

func newTestREPL(t *testing.T) (*repl, *testEnv, *bytes.Buffer) {
	t.Helper()
	env := newTestEnv(t)
	var out bytes.Buffer
	app, err := NewApp(Args{ConfigPath: env.configPath}, &out, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return newREPL(app), env, &out
}

func TestREPL_SlashCommands(t *testing.T) {
	r, env, out := newTestREPL(t)
	ctx := context.Background()

	quit, err := r.handleLine(ctx, "/rag off")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.False(t, r.app.Chat.Options().UseRAG)
	assert.Contains(t, out.String(), "Retrieval")

	_, err = r.handleLine(ctx, "/topk 12")
	require.NoError(t, err)
	assert.Equal(t, 12, r.app.Chat.Options().TopK)

	_, err = r.handleLine(ctx, "/topk 99")
	assert.ErrorAs(t, err, new(*UsageError))

	_, err = r.handleLine(ctx, "/new")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "sess-1")

	out.Reset()
	_, err = r.handleLine(ctx, "What is the capital?")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Paris is the capital.")

	env.backend.mu.Lock()
	assert.False(t, env.backend.lastChat.UseRAG)
	assert.Equal(t, 12, env.backend.lastChat.TopK)
	env.backend.mu.Unlock()

	out.Reset()
	_, err = r.handleLine(ctx, "/history")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "What is the capital?")
	assert.Contains(t, out.String(), "Paris is the capital.")

	target := filepath.Join(env.dir, "chat.txt")
	_, err = r.handleLine(ctx, "/export txt "+target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "You:\nWhat is the capital?")
	assert.Contains(t, string(data), "[1] atlas.pdf (91%)")

	_, err = r.handleLine(ctx, "/bogus")
	assert.ErrorContains(t, err, "unknown command")

	quit, err = r.handleLine(ctx, "/quit")
	require.NoError(t, err)
	assert.True(t, quit)

	quit, _ = r.handleLine(ctx, "exit")
	assert.True(t, quit)
}

func TestREPL_ConfigReloadKeepsFlagOverrides(t *testing.T) {
	env := newTestEnv(t)
	off := false
	args := Args{ConfigPath: env.configPath, RAG: &off, TopK: 7}
	app, err := NewApp(args, io.Discard, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	r := newREPL(app)

	cfg, err := config.Load(env.configPath)
	require.NoError(t, err)
	cfg.UI.Color = false
	r.applyConfig(cfg, args)
	assert.False(t, app.Chat.Options().UseRAG)
	assert.Equal(t, 7, app.Chat.Options().TopK)

	cfg.Chat.TopK = 9
	cfg.Chat.UseRAG = true
	r.applyConfig(cfg, args)
	assert.False(t, app.Chat.Options().UseRAG)
	assert.Equal(t, 7, app.Chat.Options().TopK)
}

func TestREPL_ConfigReloadPushesChangedKeysOnly(t *testing.T) {
	r, env, _ := newTestREPL(t)
	ctx := context.Background()

	_, err := r.handleLine(ctx, "/rag off")
	require.NoError(t, err)

	cfg, err := config.Load(env.configPath)
	require.NoError(t, err)
	cfg.UI.Markdown = false
	r.applyConfig(cfg, Args{})
	assert.False(t, r.app.Chat.Options().UseRAG, "unrelated edit keeps /rag off")

	cfg.Chat.TopK = 9
	r.applyConfig(cfg, Args{})
	assert.Equal(t, 9, r.app.Chat.Options().TopK)
	assert.False(t, r.app.Chat.Options().UseRAG)
}

func TestREPL_ForwardInterruptsStopsWhenDone(t *testing.T) {
	r, _, _ := newTestREPL(t)
	var errOut bytes.Buffer
	r.app.ErrOut = &errOut

	sigs := make(chan os.Signal)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		r.forwardInterrupts(sigs, done)
		close(finished)
	}()

	cancelled := make(chan struct{})
	r.mu.Lock()
	r.cancel = func() { close(cancelled) }
	r.mu.Unlock()
	sigs <- os.Interrupt
	<-cancelled

	close(done)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt forwarding did not stop")
	}
	assert.Contains(t, errOut.String(), "[Cancelled]")
}

func TestREPL_InterruptWithoutTurn(t *testing.T) {
	r, _, _ := newTestREPL(t)
	assert.False(t, r.interrupt())
}
