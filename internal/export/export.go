// Package export writes a run's deduplicated corpus to blob storage as JSON.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
)

// FileName is the object name of every exported corpus.
const FileName = "academic_data.json"

// ContentType is attached to exported objects.
const ContentType = "application/json; charset=utf-8"

// BlobStore persists exported artifacts and returns their URI.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}

// Exporter uploads corpora under <prefix>/<run_id>/academic_data.json.
type Exporter struct {
	blobs  BlobStore
	prefix string
}

// New returns an Exporter writing to blobs.
func New(blobs BlobStore, prefix string) (*Exporter, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	return &Exporter{blobs: blobs, prefix: strings.Trim(prefix, "/")}, nil
}

// ObjectPath returns the object key for runID.
func (e *Exporter) ObjectPath(runID string) string {
	return path.Join(e.prefix, runID, FileName)
}

// Export encodes records and uploads them, returning the blob URI.
func (e *Exporter) Export(ctx context.Context, runID string, records any) (string, error) {
	if strings.TrimSpace(runID) == "" {
		return "", fmt.Errorf("run id is required")
	}
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return "", err
	}
	uri, err := e.blobs.PutObject(ctx, e.ObjectPath(runID), ContentType, &buf)
	if err != nil {
		return "", fmt.Errorf("upload corpus: %w", err)
	}
	return uri, nil
}

// Encode writes v as indented JSON with non-ASCII text left unescaped.
func Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	return nil
}
