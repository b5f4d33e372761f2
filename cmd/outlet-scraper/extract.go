package main

import (
	"fmt"
	"os"

	"github.com/maltedev/outlet-scraper/internal/parser"
	"github.com/maltedev/outlet-scraper/internal/scraper"
	"github.com/maltedev/outlet-scraper/internal/storage"
	"github.com/spf13/cobra"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		extractor string
		out       string
		persist   bool
	)

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract product records from a saved HTML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !cmd.Flags().Changed("extractor") && a.cfg.Target.Extractor != "" {
				extractor = a.cfg.Target.Extractor
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				return a.fail("failed to read input", err)
			}

			var opts []scraper.Option
			if persist {
				if !a.hasRowSink() {
					return a.fail("nothing to persist to", errNoRowSink)
				}
				opts, _, err = a.storeOptions(cmd.Context(), false)
				if err != nil {
					return a.fail("failed to initialize sinks", err)
				}
			}
			svc := scraper.NewService(a.normalizer(), a.logger, opts...)
			defer svc.Close()

			result, err := svc.Extract(cmd.Context(), scraper.ExtractRequest{
				Raw:       raw,
				PathHint:  path,
				Extractor: extractor,
				Persist:   persist,
			})
			if err != nil {
				return a.fail("extract failed", err)
			}

			data, err := storage.MarshalRecords(result.Records)
			if err != nil {
				return a.fail("failed to encode records", err)
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return a.fail("failed to write output", fmt.Errorf("%s: %w", out, err))
			}

			a.logger.Info("records extracted",
				"run_id", result.Run.ID,
				"records", len(result.Records),
				"charset", result.Encoding.Charset,
				"source", result.Encoding.Source,
				"out", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&extractor, "extractor", parser.DellOutletName, "extractor name")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write records to this file instead of stdout")
	cmd.Flags().BoolVar(&persist, "persist", false, "also store the run in the configured sinks")
	return cmd
}
