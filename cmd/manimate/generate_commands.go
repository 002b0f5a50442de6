package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"manimate/internal/generate"
	"manimate/internal/scene"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Render a video for a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return errors.New("prompt is required")
			}
			svc, err := ctx.buildService(cmd.Context(), true)
			if err != nil {
				return err
			}
			res, err := svc.Generate(cmd.Context(), prompt)
			if err != nil {
				return err
			}
			return printResult(cmd, res, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the result as JSON")
	return cmd
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Normalize and render scene source without the model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readSource(cmd, args)
			if err != nil {
				return err
			}
			svc, err := ctx.buildService(cmd.Context(), false)
			if err != nil {
				return err
			}
			res, err := svc.RenderSource(cmd.Context(), raw)
			if err != nil {
				return err
			}
			return printResult(cmd, res, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the result as JSON")
	return cmd
}

func newNormalizeCommand() *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:         "normalize [file|-]",
		Short:       "Print the repaired form of scene source",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readSource(cmd, args)
			if err != nil {
				return err
			}
			src := scene.Normalize(raw)
			out := cmd.OutOrStdout()
			fmt.Fprint(out, src.Text)
			if summary {
				errOut := cmd.ErrOrStderr()
				fmt.Fprintf(errOut, "fallback: %s\n", yesNo(src.Fallback))
				fmt.Fprintf(errOut, "three_d: %s\n", yesNo(src.ThreeD))
				fmt.Fprintf(errOut, "hold_inserted: %s\n", yesNo(src.HoldInserted))
				fmt.Fprintf(errOut, "font_sizes_clamped: %d\n", src.Clamped)
				fmt.Fprintf(errOut, "entry_points: %d\n", src.EntryPoints)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "Report the repairs applied on stderr")
	return cmd
}

// readSource reads the named file, or stdin when the argument is absent or "-".
func readSource(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return string(data), nil
}

type resultView struct {
	ID           string `json:"id"`
	VideoURL     string `json:"video_url"`
	ArtifactPath string `json:"artifact_path"`
	Fallback     string `json:"fallback,omitempty"`
	ThreeD       bool   `json:"three_d"`
	HoldInserted bool   `json:"hold_inserted"`
	DurationMS   int64  `json:"duration_ms"`
}

func printResult(cmd *cobra.Command, res generate.Result, jsonOutput bool) error {
	view := resultView{
		ID:           res.ID.String(),
		VideoURL:     res.VideoURL,
		ArtifactPath: res.Outcome.ArtifactPath,
		Fallback:     res.Fallback,
		ThreeD:       res.Source.ThreeD,
		HoldInserted: res.Source.HoldInserted,
		DurationMS:   res.Outcome.Duration.Milliseconds(),
	}
	if jsonOutput {
		return writeJSON(cmd, view)
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	kind, message := statusOK, "Rendered"
	if view.Fallback != generate.FallbackNone {
		kind, message = statusWarn, "Fallback scene rendered ("+view.Fallback+")"
	}
	for _, line := range renderSectionHeader("Render", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Result", kind, message, colorize))
	fmt.Fprintln(out, renderStatusLine("Video", statusInfo, view.ArtifactPath, colorize))
	fmt.Fprintln(out, renderStatusLine("URL", statusInfo, view.VideoURL, colorize))
	fmt.Fprintln(out, renderStatusLine("Render ID", statusInfo, view.ID, colorize))
	return nil
}
