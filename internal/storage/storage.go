package storage

import (
	"context"
	"errors"

	"github.com/maltedev/outlet-scraper/internal/models"
)

// Capture is everything one run produces.
type Capture struct {
	Run        models.Run
	Records    []models.Record
	Screenshot []byte
	HTML       string
}

// Sink persists captures.
type Sink interface {
	Save(ctx context.Context, c *Capture) error
	Close() error
}

// MultiSink fans a capture out to several sinks. Every sink is attempted;
// failures are joined.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Add(s Sink) {
	m.sinks = append(m.sinks, s)
}

func (m *MultiSink) Len() int {
	return len(m.sinks)
}

func (m *MultiSink) Save(ctx context.Context, c *Capture) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Save(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
