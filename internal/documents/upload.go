// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// MaxUploadSize is the largest file the backend accepts.
const MaxUploadSize = 10 * 1024 * 1024

// allowedExtensions lists the file types the backend can index.
var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

// AllowedExtensions returns the accepted file extensions.
func AllowedExtensions() []string {
	return []string{".pdf", ".docx", ".txt"}
}

// ContentType returns the MIME type for an accepted file name.
func ContentType(filename string) string {
	if ct, ok := allowedExtensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ValidateFile checks a file's name and size before it is read.
func ValidateFile(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return &UploadError{Filename: filename, Reason: "file name is empty"}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return &UploadError{
			Filename: filename,
			Reason:   fmt.Sprintf("unsupported file type %q (allowed: %s)", ext, strings.Join(AllowedExtensions(), ", ")),
		}
	}
	if size == 0 {
		return &UploadError{Filename: filename, Reason: "file is empty"}
	}
	if size > MaxUploadSize {
		return &UploadError{
			Filename: filename,
			Reason:   fmt.Sprintf("file is %d bytes, the limit is %d", size, MaxUploadSize),
		}
	}
	return nil
}

// readUpload validates and buffers r, reading at most one byte past the
// limit.
func readUpload(filename string, r io.Reader) ([]byte, error) {
	if err := ValidateFile(filename, 1); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := ValidateFile(filename, int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}
