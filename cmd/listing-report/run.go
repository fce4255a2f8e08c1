package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maltedev/listing-report/internal/report"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <registry>",
		Short: "Scrape one registry and write the report to a file",
		Long: `Run scrapes every site of the named registry once and writes the workbook.
Nothing is written when any site fails.

Examples:
  listing-report run phones
  listing-report run notebooks -o notebooks.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), args[0], output)
		},
	}

	cmd.Flags().StringP("output", "o", report.Filename, "Path of the xlsx file to write")

	return cmd
}

func runOnce(parent context.Context, registry, output string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfgs, err := a.registry.Get(registry)
	if err != nil {
		return err
	}

	data, run, err := a.runner.Run(ctx, registry, cfgs)
	if err != nil {
		return fmt.Errorf("run %s failed: %w", run.ID, err)
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	a.logger.Info("report written", "path", output, "run_id", run.ID, "records", run.Records)
	return nil
}
