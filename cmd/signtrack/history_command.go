package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roadsight/signtrack/logging"
	"github.com/roadsight/signtrack/store"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		session string
		counts  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently finalized signs from the journal",
		Long: "Show recently finalized signs from the journal, newest first.  With\n" +
			"--session only the signs of that session are listed in the order they\n" +
			"were finalized, the session may be given by its short form.  With\n" +
			"--counts the number of times each sign was recorded is shown instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if cfg.Paths.JournalPath == "" {
				return errors.New("journal is disabled, set paths.journal_path")
			}
			if _, err := os.Stat(cfg.Paths.JournalPath); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(out, "No signs recorded yet")
				return nil
			}

			journal, err := store.Open(cfg.Paths.JournalPath, session, logging.Discard())
			if err != nil {
				return err
			}
			defer journal.Close()

			if counts {
				return printCounts(cmd, journal)
			}

			var entries []store.Entry

			if session != "" {
				entries, err = journal.SessionEntries(cmd.Context())
			} else {
				entries, err = journal.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				if session != "" {
					fmt.Fprintf(out, "No signs recorded in session %s\n", session)
					return nil
				}
				fmt.Fprintln(out, "No signs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.FinalizedAt.Local().Format("2006-01-02 15:04:05"),
					humanize.Time(e.FinalizedAt),
					e.Label,
					fmt.Sprintf("%d/%d", e.Votes, e.Target),
					strconv.Itoa(e.TrackerID),
					shortSession(e.Session),
				})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Finalized", "Age", "Sign", "Votes", "Tracker", "Session"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of signs to show")
	cmd.Flags().StringVar(&session, "session", "", "Only show signs of this session")
	cmd.Flags().BoolVar(&counts, "counts", false, "Show how often each sign was recorded")

	return cmd
}

// printCounts lists the recorded labels, most frequent first
func printCounts(cmd *cobra.Command, journal *store.Journal) error {
	counts, err := journal.Counts(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(counts) == 0 {
		fmt.Fprintln(out, "No signs recorded yet")
		return nil
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	rows := make([][]string, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, []string{label, humanize.Comma(int64(counts[label]))})
	}

	fmt.Fprintln(out, renderTable([]string{"Sign", "Count"}, rows,
		[]columnAlignment{alignLeft, alignRight}))
	return nil
}

func shortSession(session string) string {
	if len(session) > 8 {
		return session[:8]
	}
	return session
}
