// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"errors"
	"io"
)

// =============================================================================
// DECODER CONSTANTS
// =============================================================================

const (
	// MaxLineSize bounds the pending buffer. A line longer than this
	// without a terminator fails the stream.
	MaxLineSize = 1024 * 1024

	// readChunkSize is how much the Decoder asks the transport for per read.
	readChunkSize = 4 * 1024
)

// =============================================================================
// LINE BUFFER
// =============================================================================

// LineBuffer reassembles newline-terminated lines from chunks that arrive
// at arbitrary boundaries. The zero value is ready to use.
type LineBuffer struct {
	pending []byte
}

// Feed appends a chunk and returns every line it completed, in order.
// The trailing fragment stays pending until a later chunk terminates it.
// A "\r" before the "\n" is stripped.
func (b *LineBuffer) Feed(chunk []byte) []string {
	b.pending = append(b.pending, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(b.pending[:i], []byte("\r"))))
		b.pending = b.pending[i+1:]
	}

	// Drop the consumed prefix so the backing array does not grow forever.
	if len(b.pending) == 0 {
		b.pending = nil
	} else if cap(b.pending) > 2*MaxLineSize {
		b.pending = append([]byte(nil), b.pending...)
	}
	return lines
}

// Flush returns the remaining fragment as a final line when the stream
// has ended. It reports false when nothing is pending.
func (b *LineBuffer) Flush() (string, bool) {
	if len(b.pending) == 0 {
		return "", false
	}
	line := string(bytes.TrimSuffix(b.pending, []byte("\r")))
	b.pending = nil
	return line, true
}

// Pending returns the number of buffered bytes not yet part of a line.
func (b *LineBuffer) Pending() int {
	return len(b.pending)
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder yields complete lines from a transport. It is single use: a new
// stream needs a new Decoder.
type Decoder struct {
	r     io.Reader
	buf   LineBuffer
	ready []string
	chunk []byte
	done  bool
	err   error
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:     r,
		chunk: make([]byte, readChunkSize),
	}
}

// Next returns the next complete line. It returns io.EOF once the transport
// has ended and every buffered line has been returned.
func (d *Decoder) Next() (string, error) {
	for len(d.ready) == 0 {
		if d.err != nil {
			return "", d.err
		}
		if d.done {
			return "", io.EOF
		}
		d.fill()
	}
	line := d.ready[0]
	d.ready = d.ready[1:]
	return line, nil
}

// fill performs one read from the transport and queues any completed
// lines.
func (d *Decoder) fill() {
	n, err := d.r.Read(d.chunk)
	if n > 0 {
		d.ready = append(d.ready, d.buf.Feed(d.chunk[:n])...)
		if d.buf.Pending() > MaxLineSize {
			d.err = &FrameTooLargeError{Size: d.buf.Pending(), Limit: MaxLineSize}
			return
		}
	}
	if err == nil {
		return
	}
	if errors.Is(err, io.EOF) {
		if line, ok := d.buf.Flush(); ok {
			d.ready = append(d.ready, line)
		}
		d.done = true
		return
	}
	d.err = err
}
