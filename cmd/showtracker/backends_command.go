package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"showtracker/pkg/backend"
)

func newBackendsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "backends",
		Short: "List configured backends and their API usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := ctx.components()
			if err != nil {
				return err
			}
			agg := comp.NewAggregator()

			if jsonOut {
				return writeJSON(cmd, map[string][]backend.Descriptor{
					"active":   agg.Active(),
					"excluded": agg.Excluded(),
				})
			}

			limits := make(map[string]int)
			for _, b := range comp.Config.Backends {
				limits[b.Name] = b.APIHitsDay
			}
			color := shouldColorize(cmd.OutOrStdout())

			var rows [][]string
			add := func(desc backend.Descriptor, status string) {
				usage := comp.Usage.Usage(desc.Name)
				hits := strconv.Itoa(usage.APIHitsUsed)
				if limit := limits[desc.Name]; limit > 0 {
					hits = fmt.Sprintf("%d/%d", usage.APIHitsUsed, limit)
				}
				rows = append(rows, []string{desc.Name, desc.Type.String(), status, hits, strconv.Itoa(usage.AllTimeHitsUsed)})
			}
			for _, desc := range agg.Active() {
				add(desc, colorize("active", ansiGreen, color))
			}
			for _, desc := range agg.Excluded() {
				add(desc, colorize("no credentials", ansiYellow, color))
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backends configured.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Name", "Type", "Status", "Hits today", "All time"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}
