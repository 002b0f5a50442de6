package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"manimate/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check renderer dependencies, directories and the model endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if !offline && cfg.LLM.APIKey != "" {
				results = replaceResult(results, preflight.CheckLLM(cmd.Context(), cfg.LLM))
			}

			failed := preflight.Failed(results)
			if jsonOutput {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, line := range preflightLines(results, colorize) {
					fmt.Fprintln(out, line)
				}
				printConfigPath(out, ctx.configPath)
			}
			if failed {
				return errors.New("preflight checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the live model request")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit results as JSON")
	return cmd
}

// replaceResult swaps the entry named like r, appending when absent.
func replaceResult(results []preflight.Result, r preflight.Result) []preflight.Result {
	for i := range results {
		if results[i].Name == r.Name {
			results[i] = r
			return results
		}
	}
	return append(results, r)
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results)+1)
	for _, r := range results {
		kind := statusOK
		switch {
		case !r.Passed && r.Optional:
			kind = statusWarn
		case !r.Passed:
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	summary, kind := "All required checks passed", statusOK
	if preflight.Failed(results) {
		summary, kind = "Required checks failed", statusError
	}
	return append(lines, renderStatusLine("Summary", kind, summary, colorize))
}

func printConfigPath(out io.Writer, path string) {
	if path == "" {
		return
	}
	fmt.Fprintf(out, "\nConfig: %s\n", path)
}
