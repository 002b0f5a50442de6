package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"manimate/internal/history"
)

const promptColumnWidth = 48

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent render attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.historyStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if records == nil {
					records = []history.Record{}
				}
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No renders recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(historyHeaders, historyRows(records), historyAligns))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit records as JSON")
	return cmd
}

var (
	historyHeaders = []string{"ID", "When", "Kind", "Fallback", "Duration", "Prompt"}
	historyAligns  = []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
)

func historyRows(records []history.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		fallback := rec.Fallback
		if fallback == "" {
			fallback = "-"
		}
		rows = append(rows, []string{
			shortID(rec.ID.String()),
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Kind,
			fallback,
			formatDurationMS(rec.DurationMS),
			truncate(oneLine(rec.Prompt), promptColumnWidth),
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDurationMS(ms int64) string {
	if ms < 1000 {
		return strconv.FormatInt(ms, 10) + "ms"
	}
	return strconv.FormatFloat(float64(ms)/1000, 'f', 1, 64) + "s"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
