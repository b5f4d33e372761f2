package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/outlet-scraper/internal/browser"
)

// BrowserSource renders targets with a headless browser.
type BrowserSource struct {
	browser *browser.Browser
	logger  *slog.Logger
}

func NewBrowserSource(b *browser.Browser, logger *slog.Logger) *BrowserSource {
	return &BrowserSource{
		browser: b,
		logger:  logger.With("component", "browser_source"),
	}
}

func (s *BrowserSource) Snapshot(ctx context.Context, target, selector string) (*Snapshot, error) {
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	loaded, err := s.browser.Load(page, target)
	if err != nil {
		return nil, err
	}
	if loaded.Local {
		s.logger.Info("local file loaded", "charset", loaded.Charset, "source", loaded.Source)
	}

	s.logger.Info("scrolling page to trigger lazy loading")
	if err := s.browser.AutoScroll(ctx, page); err != nil {
		return nil, err
	}

	shot, err := s.browser.Screenshot(page, selector)
	if err != nil {
		return nil, err
	}

	html, err := s.browser.Content(page)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", target, err)
	}

	return &Snapshot{
		HTML:       html,
		Screenshot: shot,
		Charset:    loaded.Charset,
	}, nil
}

func (s *BrowserSource) Close() error {
	return s.browser.Close()
}
