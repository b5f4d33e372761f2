package scraper

import (
	"context"
	"errors"
)

var (
	ErrMissingTarget    = errors.New("target URL is required")
	ErrNoSource         = errors.New("no document source configured")
	ErrUnknownExtractor = errors.New("unknown extractor")
)

// Snapshot is a rendered page as handed to the engine.
type Snapshot struct {
	HTML       string
	Screenshot []byte
	Charset    string
}

// Source renders a target and returns its serialized DOM.
type Source interface {
	Snapshot(ctx context.Context, target, selector string) (*Snapshot, error)
	Close() error
}
