package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"showtracker/pkg/showdb"
)

func newShowsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shows",
		Short: "Manage the local show database",
	}
	cmd.AddCommand(newShowsListCommand(ctx))
	cmd.AddCommand(newShowsAddCommand(ctx))
	cmd.AddCommand(newShowsEpisodeCommand(ctx))
	return cmd
}

func newShowsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known shows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := ctx.components()
			if err != nil {
				return err
			}
			shows, err := comp.Shows.Shows(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, shows)
			}
			if len(shows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No shows yet. Add one with 'showtracker shows add'.")
				return nil
			}
			rows := make([][]string, 0, len(shows))
			for _, s := range shows {
				rows = append(rows, []string{fmt.Sprint(s.ID), s.Name, s.Root, s.SourceID, humanize.Time(s.AddedAt)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Root", "Source ID", "Added"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}

func newShowsAddCommand(ctx *commandContext) *cobra.Command {
	var sourceID string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a show, or update the source ID of a show with the same root title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := ctx.components()
			if err != nil {
				return err
			}
			show, err := comp.Shows.AddShow(cmd.Context(), args[0], sourceID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Show %d: %s (root %q)\n", show.ID, show.Name, show.Root)
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceID, "source-id", "", "TVDB series ID")
	return cmd
}

func newShowsEpisodeCommand(ctx *commandContext) *cobra.Command {
	var (
		season  int
		number  int
		airDate string
		title   string
	)
	cmd := &cobra.Command{
		Use:   "episode <show>",
		Short: "Record an episode so air-date releases resolve to season and episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if season <= 0 || number <= 0 {
				return errors.New("--season and --episode are required")
			}
			comp, err := ctx.components()
			if err != nil {
				return err
			}
			show, err := comp.Shows.FindShow(cmd.Context(), args[0])
			if errors.Is(err, showdb.ErrNotFound) {
				return fmt.Errorf("unknown show %q, add it first", args[0])
			}
			if err != nil {
				return err
			}

			ep := showdb.Episode{ShowID: show.ID, Season: season, Number: number, Title: title}
			if airDate != "" {
				ep.AirDate, err = time.Parse("2006-01-02", airDate)
				if err != nil {
					return fmt.Errorf("invalid --air-date: %w", err)
				}
			}
			if err := comp.Shows.AddEpisode(cmd.Context(), ep); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s S%02dE%02d\n", show.Name, season, number)
			return nil
		},
	}
	cmd.Flags().IntVar(&season, "season", 0, "Season number")
	cmd.Flags().IntVar(&number, "episode", 0, "Episode number")
	cmd.Flags().StringVar(&airDate, "air-date", "", "Air date, YYYY-MM-DD")
	cmd.Flags().StringVar(&title, "title", "", "Episode title")
	return cmd
}
