package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"showtracker/pkg/backend"
	"showtracker/pkg/release"
	"showtracker/pkg/search"
)

// progressPrinter reports session progress on stderr, one line per backend.
type progressPrinter struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

func (p *progressPrinter) ProgressChanged(pr search.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %-20s %d results\n", formatPercent(pr.Percent), pr.Backend, len(pr.Results))
}

func (p *progressPrinter) Error(f search.Failure) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, colorize(fmt.Sprintf("     %-20s %s: %s", f.Backend, f.Message, f.Detail), ansiRed, p.color))
}

func (p *progressPrinter) Done(c search.Completion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := fmt.Sprintf("Done: %d results, %d failed backends in %s", c.Results, c.Failures, c.Elapsed.Round(time.Millisecond))
	color := ansiGreen
	if c.Failures > 0 {
		color = ansiYellow
	}
	fmt.Fprintln(p.out, colorize(msg, color, p.color))
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOut    bool
		strict     bool
		timeout    time.Duration
		limit      int
		minQuality string
		noFilter   bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search every configured backend for a show or episode",
		Long: `Search every configured backend concurrently.

The query is normalized before it is sent: "The House, M.D. S02E14" is
searched as "HOUSE s02e14". Backends that need credentials and have none
stored are skipped.

Examples:
  showtracker search "Lost S06E03"
  showtracker search --strict "Top Gear 16x01"
  showtracker search --json "The Daily Show 2010-01-02"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := ctx.components()
			if err != nil {
				return err
			}

			var opts []search.Option
			if cmd.Flags().Changed("timeout") {
				opts = append(opts, search.WithTimeout(timeout))
			}
			if !jsonOut {
				opts = append(opts, search.WithObserver(&progressPrinter{
					out:   cmd.ErrOrStderr(),
					color: shouldColorize(cmd.ErrOrStderr()),
				}))
			}
			agg := comp.NewAggregator(opts...)
			for _, desc := range agg.Excluded() {
				fmt.Fprintf(cmd.ErrOrStderr(), "Skipping %s: no credentials (see 'showtracker login')\n", desc.Name)
			}

			sess, err := agg.Run(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			results := search.Dedupe(sess.Results())
			if !noFilter {
				filterCfg := comp.Config.Filter
				if minQuality != "" {
					filterCfg.MinQuality = minQuality
				}
				filter, err := search.NewFilter(filterCfg)
				if err != nil {
					return fmt.Errorf("invalid filter: %w", err)
				}
				results = filter.Apply(results)
			}
			if strict {
				if title, numbering, ok := release.Split(sess.Normalized); ok {
					if ep, found := release.ExtractEpisode(numbering); found {
						results = search.FilterEpisode(results, title, ep)
					}
				}
			}
			search.SortByQuality(results)
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"session_id": sess.ID,
					"query":      sess.Query,
					"normalized": sess.Normalized,
					"results":    results,
					"failures":   sess.Failures(),
				})
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderResults(results))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Keep only releases of the queried episode")
	cmd.Flags().DurationVar(&timeout, "timeout", search.DefaultTimeout, "Per-backend search timeout (0 disables)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum results to print (0 for all)")
	cmd.Flags().StringVar(&minQuality, "min-quality", "", `Lowest quality to keep, e.g. "HDTV 720p"`)
	cmd.Flags().BoolVar(&noFilter, "no-filter", false, "Ignore the filter section of the config")
	return cmd
}

func renderResults(results []backend.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Quality.String(),
			formatSize(r.Size),
			r.Backend,
			r.Type.String(),
			r.Release,
			r.URL(),
		})
	}
	return renderTable(
		[]string{"Quality", "Size", "Backend", "Type", "Release", "URL"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	)
}
