package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maltedev/outlet-scraper/internal/models"
)

const (
	DataFile       = "data.json"
	ScreenshotFile = "section.png"
	HTMLFile       = "section.html"
)

// FileSink writes data.json, section.png and section.html into a directory.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

func (s *FileSink) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileSink) Save(_ context.Context, c *Capture) error {
	if err := s.WriteRecords(c.Records); err != nil {
		return err
	}
	if c.Screenshot != nil {
		if err := writeAtomic(s.Path(ScreenshotFile), c.Screenshot); err != nil {
			return fmt.Errorf("failed to write screenshot: %w", err)
		}
	}
	if c.HTML != "" {
		if err := writeAtomic(s.Path(HTMLFile), []byte(c.HTML)); err != nil {
			return fmt.Errorf("failed to write html: %w", err)
		}
	}
	return nil
}

// WriteRecords writes records as an indented JSON array; nil becomes [].
func (s *FileSink) WriteRecords(records []models.Record) error {
	data, err := MarshalRecords(records)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.Path(DataFile), data); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	return nil
}

// MarshalRecords encodes records with two-space indentation and without
// HTML escaping.
func MarshalRecords(records []models.Record) ([]byte, error) {
	if records == nil {
		records = []models.Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	return buf.Bytes(), nil
}

func writeAtomic(path string, data []byte) error {
	// Write to temp file first for atomicity
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpFile, path)
}
