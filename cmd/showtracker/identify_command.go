package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"showtracker/pkg/identify"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "identify <file or directory>...",
		Short: "Identify the show and episode of video files",
		Long: `Identify the show, episode and quality of video files.

Shows are resolved against the local show database first, then the show
cache, then TVDB when TVDB_API_KEY is set. Directories are scanned
recursively; sample files are skipped.

Examples:
  showtracker identify "/tv/Lost/Season 6/Lost.S06E03.720p.BluRay.x264-MACRO.mkv"
  showtracker identify --json /downloads`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := ctx.components()
			if err != nil {
				return err
			}

			var results []identify.Result
			for _, arg := range args {
				info, err := os.Stat(arg)
				if err == nil && info.IsDir() {
					found, err := comp.Identifier.ScanDir(cmd.Context(), arg)
					if err != nil {
						return fmt.Errorf("scan %s: %w", arg, err)
					}
					results = append(results, found...)
					continue
				}
				results = append(results, comp.Identifier.ParseFile(cmd.Context(), arg))
			}

			if jsonOut {
				return writeJSON(cmd, results)
			}
			color := shouldColorize(cmd.OutOrStdout())
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := colorize("ok", ansiGreen, color)
				if !r.OK() {
					status = colorize(r.Failure.String(), ansiRed, color)
				}
				rows = append(rows, []string{status, r.Show, r.Episode.String(), r.Quality.String(), string(r.Source), r.Path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Status", "Show", "Episode", "Quality", "Source", "Path"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}
