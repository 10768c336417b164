package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-catalog/sites"
)

func newSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "Lists the registered site templates.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			renderSites(cmd.OutOrStdout())
			return nil
		},
	}
}

func renderSites(out io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Site", "Product", "Product ID", "Options"})

	for _, name := range sites.Names() {
		cfg, _ := sites.Lookup(name)
		mode := "suffix"
		if cfg.Options.Delimiter != "" {
			mode = "price (" + cfg.Options.Delimiter + ")"
		}
		t.AppendRow(table.Row{name, cfg.Selectors.Product, cfg.ProductIDPattern, mode})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
