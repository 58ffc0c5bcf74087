// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
)

// TextExporter exports a plain transcript.
type TextExporter struct {
	options *Options
}

// NewTextExporter creates a new plain text exporter.
func NewTextExporter(opts *Options) *TextExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &TextExporter{options: opts}
}

// Export writes one block per message.
func (e *TextExporter) Export(conv *Conversation) ([]byte, error) {
	if err := conv.validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Session %s, exported %s\n\n", conv.SessionID, formatTimestamp(conv.ExportedAt))

	for _, msg := range conv.Messages {
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "[%s] ", formatTimestamp(msg.CreatedAt.Time))
		}
		fmt.Fprintf(&sb, "%s:\n%s\n", msg.Role.DisplayName(), strings.TrimSpace(msg.Content))
		if e.options.IncludeCitations {
			for i, c := range msg.Citations {
				title := c.DocumentTitle
				if title == "" {
					title = c.DocumentID
				}
				fmt.Fprintf(&sb, "  [%d] %s (%d%%)\n", i+1, title, c.ScorePercent())
			}
		}
		sb.WriteString("\n")
	}
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for text.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}
