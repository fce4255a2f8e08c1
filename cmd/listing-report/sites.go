package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maltedev/listing-report/internal/config"
	"github.com/maltedev/listing-report/internal/sites"
)

// NewSitesCmd creates the sites command.
func NewSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites [registry]",
		Short: "List registries and their sites",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			registry, err := sites.Load(cfg.Scrape.SitesFile)
			if err != nil {
				return err
			}

			names := registry.Names()
			if len(args) == 1 {
				names = args[:1]
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REGISTRY\tSOURCE\tDETAIL\tURL")
			for _, name := range names {
				cfgs, err := registry.Get(name)
				if err != nil {
					return err
				}
				for _, c := range cfgs {
					detail := "-"
					if c.HasDetail() {
						detail = c.FieldName()
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, c.SourceID, detail, c.EntryURL)
				}
			}
			return w.Flush()
		},
	}
}
