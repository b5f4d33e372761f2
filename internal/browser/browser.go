package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/maltedev/outlet-scraper/internal/charset"
	"github.com/maltedev/outlet-scraper/internal/config"
	"github.com/playwright-community/playwright-go"
)

const fileScheme = "file://"

var windowsDrive = regexp.MustCompile(`^/([a-zA-Z]:)`)

// autoScrollScript scrolls by step pixels every interval milliseconds until
// the scrolled distance reaches the document height minus one viewport.
const autoScrollScript = `({step, interval}) => new Promise((resolve) => {
	let total = 0;
	const timer = setInterval(() => {
		const height = document.body.scrollHeight;
		window.scrollBy(0, step);
		total += step;
		if (total >= height - window.innerHeight) {
			clearInterval(timer);
			resolve();
		}
	}, interval);
})`

type Browser struct {
	pw         *playwright.Playwright
	browser    playwright.Browser
	context    playwright.BrowserContext
	opts       *Options
	normalizer *charset.Normalizer
	logger     *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	ScrollStep     int
	ScrollInterval time.Duration
	SettleDelay    time.Duration
}

// Loaded describes what ended up in the page.
type Loaded struct {
	Target  string
	Local   bool
	Charset string
	Source  charset.Source
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        60 * time.Second,
		ViewportWidth:  1280,
		ViewportHeight: 800,
		ScrollStep:     400,
		ScrollInterval: 200 * time.Millisecond,
		SettleDelay:    time.Second,
	}
}

func OptionsFromConfig(cfg config.BrowserConfig) *Options {
	opts := DefaultOptions()
	opts.Headless = cfg.Headless
	opts.UserAgent = cfg.UserAgent
	if cfg.Timeout > 0 {
		opts.Timeout = cfg.Timeout
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts.ViewportWidth = cfg.ViewportWidth
		opts.ViewportHeight = cfg.ViewportHeight
	}
	if cfg.ScrollStep > 0 {
		opts.ScrollStep = cfg.ScrollStep
	}
	if cfg.ScrollInterval > 0 {
		opts.ScrollInterval = cfg.ScrollInterval
	}
	if cfg.SettleDelay >= 0 {
		opts.SettleDelay = cfg.SettleDelay
	}
	return opts
}

func New(opts *Options, normalizer *charset.Normalizer, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if normalizer == nil {
		normalizer = charset.NewNormalizer(logger)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = &opts.UserAgent
	}

	browserCtx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:         pw,
		browser:    browser,
		context:    browserCtx,
		opts:       opts,
		normalizer: normalizer,
		logger:     logger.With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		b.logger.Debug("page log", "text", msg.Text())
	})

	return page, nil
}

// Load navigates to a remote target or, for file:// targets, normalizes the
// file bytes to UTF-8 and writes them into the page.
func (b *Browser) Load(page playwright.Page, target string) (*Loaded, error) {
	if !IsLocal(target) {
		b.logger.Info("navigating", "url", target)
		if _, err := page.Goto(target, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
		}); err != nil {
			return nil, fmt.Errorf("failed to navigate to %s: %w", target, err)
		}
		return &Loaded{Target: target}, nil
	}

	path := FilePath(target)
	b.logger.Info("loading local file", "path", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	res, err := b.normalizer.Normalize(raw, path)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", path, err)
	}

	if err := page.SetContent(res.HTML, playwright.PageSetContentOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		return nil, fmt.Errorf("failed to set page content: %w", err)
	}

	return &Loaded{
		Target:  target,
		Local:   true,
		Charset: res.Decision.Charset,
		Source:  res.Decision.Source,
	}, nil
}

// AutoScroll scrolls to the bottom to trigger lazy loading, then waits for
// the settle delay.
func (b *Browser) AutoScroll(ctx context.Context, page playwright.Page) error {
	b.logger.Debug("scrolling page", "step", b.opts.ScrollStep, "interval", b.opts.ScrollInterval)

	_, err := page.Evaluate(autoScrollScript, map[string]any{
		"step":     b.opts.ScrollStep,
		"interval": b.opts.ScrollInterval.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("failed to scroll page: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.opts.SettleDelay):
		return nil
	}
}

// Screenshot captures the first element matching selector. An empty selector
// or a selector that matches nothing captures the full page.
func (b *Browser) Screenshot(page playwright.Page, selector string) ([]byte, error) {
	if selector != "" {
		element := page.Locator(selector).First()
		count, err := element.Count()
		if err == nil && count > 0 {
			b.logger.Info("capturing selector", "selector", selector)
			data, err := element.Screenshot()
			if err != nil {
				return nil, fmt.Errorf("failed to capture %s: %w", selector, err)
			}
			return data, nil
		}
		b.logger.Warn("selector not found, capturing full page instead", "selector", selector)
	}

	data, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture page: %w", err)
	}
	return data, nil
}

// Content returns the serialized DOM of the page.
func (b *Browser) Content(page playwright.Page) (string, error) {
	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

func IsLocal(target string) bool {
	return strings.HasPrefix(target, fileScheme)
}

// FilePath turns a file:// URL into a filesystem path, keeping Windows
// drive letters usable ("file:///C:/x" becomes "C:/x").
func FilePath(target string) string {
	path := strings.Replace(target, fileScheme, "", 1)
	return windowsDrive.ReplaceAllString(path, "$1")
}
