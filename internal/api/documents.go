// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/jeranaias/ragchat/internal/documents"
	"github.com/jeranaias/ragchat/internal/model"
)

// ListDocuments returns the documents uploaded to a session.
func (c *Client) ListDocuments(ctx context.Context, sessionID string) ([]model.Document, error) {
	if sessionID == "" {
		return nil, ErrEmptyID
	}
	var list model.DocumentList
	path := "/sessions/" + url.PathEscape(sessionID) + "/documents"
	if err := c.doJSON(ctx, "list documents", http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	if list.Documents == nil {
		list.Documents = []model.Document{}
	}
	return list.Documents, nil
}

// UploadDocument streams a file to the backend as multipart form data with
// the fields "file" and "session_id".
func (c *Client) UploadDocument(ctx context.Context, sessionID, filename string, r io.Reader) (*model.UploadResult, error) {
	if sessionID == "" {
		return nil, ErrEmptyID
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, sessionID, filename, r))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents/upload", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	// Uploads can be slow; only the context bounds them.
	resp, err := c.send(c.streamClient, "upload document", req)
	if err != nil {
		pr.Close()
		return nil, err
	}

	var res model.UploadResult
	if err := decodeResponse("upload document", resp, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeUploadForm(mw *multipart.Writer, sessionID, filename string, r io.Reader) error {
	if err := mw.WriteField("session_id", sessionID); err != nil {
		return err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filepath.Base(filename))))
	h.Set("Content-Type", documents.ContentType(filename))
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return ErrEmptyID
	}
	return c.doJSON(ctx, "delete document", http.MethodDelete, "/documents/"+url.PathEscape(documentID), nil, nil)
}
