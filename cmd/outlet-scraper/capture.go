package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/outlet-scraper/internal/browser"
	"github.com/maltedev/outlet-scraper/internal/scraper"
	"github.com/spf13/cobra"
)

func newCaptureCmd(a *app) *cobra.Command {
	var target, selector, extractor string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Render a page, screenshot it and extract its product table",
		Long: `Loads TARGET_URL (http(s) or file://) in a headless browser, scrolls to the
bottom, captures TARGET_SELECTOR (or the full page) and runs EXTRACTOR_TYPE
over the rendered HTML. Writes data.json, section.png and section.html.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Target
			if cmd.Flags().Changed("url") {
				cfg.URL = target
			}
			if cmd.Flags().Changed("selector") {
				cfg.Selector = selector
			}
			if cmd.Flags().Changed("extractor") {
				cfg.Extractor = extractor
			}
			if cfg.URL == "" {
				return a.fail("TARGET_URL is not set", scraper.ErrMissingTarget)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.capture(ctx, scraper.CaptureRequest{
				Target:    cfg.URL,
				Selector:  cfg.Selector,
				Extractor: cfg.Extractor,
			})
		},
	}

	cmd.Flags().StringVar(&target, "url", "", "page to capture (overrides TARGET_URL)")
	cmd.Flags().StringVar(&selector, "selector", "", "CSS selector to screenshot (overrides TARGET_SELECTOR)")
	cmd.Flags().StringVar(&extractor, "extractor", "", "extractor name (overrides EXTRACTOR_TYPE)")
	return cmd
}

func (a *app) capture(ctx context.Context, req scraper.CaptureRequest) error {
	a.logger.Info("capture configured",
		"target", req.Target,
		"selector", req.Selector,
		"extractor", req.Extractor,
		"output_dir", a.cfg.Target.OutputDir)

	normalizer := a.normalizer()
	b, err := browser.New(browser.OptionsFromConfig(a.cfg.Browser), normalizer, a.logger)
	if err != nil {
		return a.fail("failed to initialize browser", err)
	}

	opts, _, err := a.storeOptions(ctx, true)
	if err != nil {
		b.Close()
		return a.fail("failed to initialize sinks", err)
	}

	opts = append(opts, scraper.WithSource(scraper.NewBrowserSource(b, a.logger)))
	svc := scraper.NewService(normalizer, a.logger, opts...)
	defer svc.Close()

	result, err := svc.Capture(ctx, req)
	if err != nil {
		return a.fail("capture failed", err)
	}

	a.logger.Info("capture complete",
		"run_id", result.Run.ID,
		"records", len(result.Records),
		"output_dir", a.cfg.Target.OutputDir)
	return nil
}
