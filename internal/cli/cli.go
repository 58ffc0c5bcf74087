// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
)

// Version information (overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the top-level command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdAsk
	CmdDocs
	CmdSession
	CmdHealth
	CmdPresentations
	CmdConfig
	CmdLogs
	CmdVersion
	CmdHelp
)

var commandNames = map[string]Command{
	"chat":          CmdChat,
	"ask":           CmdAsk,
	"docs":          CmdDocs,
	"documents":     CmdDocs,
	"session":       CmdSession,
	"health":        CmdHealth,
	"status":        CmdHealth,
	"presentations": CmdPresentations,
	"pres":          CmdPresentations,
	"config":        CmdConfig,
	"logs":          CmdLogs,
	"version":       CmdVersion,
	"help":          CmdHelp,
}

// Args holds parsed command-line arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Verbose    bool
	JSON       bool
	NoMarkdown bool
	RAG        *bool
	TopK       int

	// Subcommand is the first argument after the command, if any.
	Subcommand string
	// Rest holds positionals after the subcommand.
	Rest []string

	Flags *ArgParser
}

// Text joins every positional after the command, for commands that take
// free text such as ask.
func (a Args) Text() string {
	parts := a.Rest
	if a.Subcommand != "" {
		parts = append([]string{a.Subcommand}, parts...)
	}
	return strings.Join(parts, " ")
}

var boolFlagNames = []string{"verbose", "v", "json", "no-markdown", "help", "h", "version", "refresh", "yes", "y"}

// Parse parses argv (without the program name). No command means chat.
func Parse(argv []string) (Command, Args, error) {
	p := NewArgParser(argv, boolFlagNames...)
	args := Args{
		ConfigPath: p.Flag("config", "c"),
		Verbose:    p.BoolFlag("verbose", "v"),
		JSON:       p.BoolFlag("json"),
		NoMarkdown: p.BoolFlag("no-markdown"),
		Flags:      p,
	}

	if v := p.Flag("rag"); v != "" {
		on, err := ParseBoolString(v)
		if err != nil {
			return CmdHelp, args, &UsageError{Msg: "--rag expects on or off"}
		}
		args.RAG = &on
	}
	if n, ok, err := p.FlagInt("top-k", "k"); err != nil {
		return CmdHelp, args, &UsageError{Msg: err.Error()}
	} else if ok {
		if n < 1 || n > 50 {
			return CmdHelp, args, &UsageError{Msg: "--top-k must be between 1 and 50"}
		}
		args.TopK = n
	}

	if p.BoolFlag("help", "h") {
		return CmdHelp, args, nil
	}
	if p.BoolFlag("version") {
		return CmdVersion, args, nil
	}

	name := strings.ToLower(p.Positional(0))
	if name == "" {
		return CmdChat, args, nil
	}
	cmd, ok := commandNames[name]
	if !ok {
		return CmdHelp, args, &UsageError{Msg: fmt.Sprintf("unknown command %q", name)}
	}
	args.Subcommand = p.Positional(1)
	args.Rest = p.PositionalFrom(2)
	return cmd, args, nil
}

const usageText = `ragchat - chat with your documents from the terminal

Usage:
  ragchat [chat]                      Interactive chat (default)
  ragchat ask QUESTION                Ask one question and print the answer
  ragchat docs [list|upload|delete]   Manage documents in the current session
  ragchat session [show|new|reset|export]
                                      Inspect, replace or export the current session
  ragchat health                      Check the backend
  ragchat presentations [list|analyze TOPIC]
                                      Presentation decks and topic analysis
  ragchat config [show|get|set|path]  Configuration
  ragchat logs [-n N] [--level L]     Recent entries from the log file
  ragchat version                     Version information

Document Commands:
  ragchat docs list [--refresh]       List documents (cached for a few minutes)
  ragchat docs upload FILE...         Upload PDF, DOCX or TXT (max 10 MiB)
  ragchat docs delete ID              Delete a document

Session Commands:
  ragchat session export [-f md|json|txt] [-o FILE]
                                      Save the conversation to a file

Chat Commands (inside the REPL):
  /new                Start a new session
  /session            Show the session id and time left
  /rag [on|off]       Show or toggle retrieval
  /topk N             Set how many chunks retrieval attaches
  /docs               List documents
  /refresh            Reload the document list from the backend
  /upload PATH        Upload a document
  /delete ID          Delete a document
  /history            Show this session's messages
  /export [FMT] [PATH] Save the conversation (md, json, txt)
  /health             Check the backend
  /help               Show this list
  /quit               Exit
  Ctrl+C              Stop the answer being streamed

Global Flags:
  -c, --config PATH   Config file (default ~/.ragchat/config.toml)
  -v, --verbose       Debug logging on stderr
  --rag on|off        Override retrieval for this run
  -k, --top-k N       Override retrieved chunk count (1-50)
  --json              JSON output where supported
  --no-markdown       Print answers as plain text

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "ragchat version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}
