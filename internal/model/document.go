// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Document is the metadata of a document uploaded into a session.
type Document struct {
	ID        string         `json:"document_id"`
	Title     string         `json:"title"`
	FileType  string         `json:"file_type"`
	CreatedAt Timestamp      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// DocumentList is the backend's listing of a session's documents.
type DocumentList struct {
	SessionID  string     `json:"session_id"`
	Documents  []Document `json:"documents"`
	TotalCount int        `json:"total_count"`
}

// UploadResult describes a document accepted by the backend.
type UploadResult struct {
	DocumentID   string   `json:"document_id"`
	Filename     string   `json:"filename"`
	ChunksCount  int      `json:"chunks_count"`
	EmbeddingIDs []string `json:"embedding_ids"`
}

// CloneDocuments copies a document slice so callers cannot mutate cached
// state through it.
func CloneDocuments(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	out := make([]Document, len(docs))
	copy(out, docs)
	return out
}
