package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"showtracker/pkg/release"
	"showtracker/pkg/search/parser"
)

func newQualityCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "quality <release name>...",
		Short: "Classify release names by quality and episode numbering",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			type row struct {
				Name       string          `json:"name"`
				Quality    release.Quality `json:"quality"`
				Normalized string          `json:"normalized"`
				Episode    string          `json:"episode,omitempty"`
				Resolution string          `json:"resolution,omitempty"`
				Group      string          `json:"group,omitempty"`
			}
			out := make([]row, 0, len(args))
			for _, name := range args {
				r := row{
					Name:       name,
					Quality:    release.ParseQuality(name),
					Normalized: release.Normalize(name),
				}
				if ep, ok := release.ExtractEpisode(name); ok {
					r.Episode = ep.String()
				}
				if parsed := parser.ParseReleaseTitle(name); parsed != nil {
					r.Resolution = parsed.Resolution
					r.Group = parsed.Group
					if r.Episode == "" {
						if ep, ok := parsed.Episode(); ok {
							r.Episode = ep.String()
						}
					}
				}
				out = append(out, r)
			}

			if jsonOut {
				return writeJSON(cmd, out)
			}
			rows := make([][]string, 0, len(out))
			for _, r := range out {
				rows = append(rows, []string{r.Quality.String(), r.Episode, r.Resolution, r.Group, r.Normalized, r.Name})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Quality", "Episode", "Resolution", "Group", "Normalized", "Name"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}
