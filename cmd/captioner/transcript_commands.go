package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"captioner/internal/api"
)

func newTranscriptCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Inspect and edit stored transcripts",
	}
	cmd.AddCommand(newTranscriptShowCommand(ctx))
	cmd.AddCommand(newTranscriptReplaceCommand(ctx))
	cmd.AddCommand(newTranscriptTranslateCommand(ctx))
	return cmd
}

func newTranscriptShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <media-id>",
		Short: "Print a transcript with per-word timing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			doc, err := client.Transcript(cmd.Context(), args[0])
			if err != nil {
				return wrapDaemonError(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, doc)
			}
			printTranscript(cmd.OutOrStdout(), doc.MediaID, doc.FullText, doc.Segments)
			return nil
		},
	}
}

func newTranscriptReplaceCommand(ctx *commandContext) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "replace <media-id>",
		Short: "Replace every segment of a transcript from a JSON file",
		Long: "Reads a JSON array of {word, start, end, confidence} objects (or an object\n" +
			"with a \"segments\" array) and replaces the stored segment sequence.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments, err := readSegments(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			doc, err := client.ReplaceSegments(cmd.Context(), args[0], segments)
			if err != nil {
				return wrapDaemonError(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, doc)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Replaced %d segments for %s\n", len(doc.Segments), doc.MediaID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Segments JSON file (- reads stdin)")
	return cmd
}

func newTranscriptTranslateCommand(ctx *commandContext) *cobra.Command {
	var target string
	var apply bool
	cmd := &cobra.Command{
		Use:   "translate <media-id>",
		Short: "Translate a transcript word by word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(target) == "" {
				return fmt.Errorf("--target is required")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Translate(cmd.Context(), args[0], api.TranslateRequest{Target: target, Apply: apply})
			if err != nil {
				return wrapDaemonError(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			printTranscript(out, resp.MediaID, "", resp.Segments)
			fmt.Fprintf(out, "Target: %s (%s)  translated=%d passed-through=%d fallbacks=%d\n",
				resp.TargetName, resp.Target, resp.Translated, resp.PassedThrough, resp.Fallbacks)
			if resp.Applied {
				fmt.Fprintln(out, "Stored transcript updated")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "Target language code (e.g. es, fr, ja)")
	cmd.Flags().BoolVar(&apply, "apply", false, "Store the translated segments")
	return cmd
}

func printTranscript(out io.Writer, mediaID, fullText string, segments []api.Segment) {
	fmt.Fprintf(out, "Media: %s\n", mediaID)
	if text := strings.TrimSpace(fullText); text != "" {
		fmt.Fprintf(out, "Text:  %s\n", text)
	}
	if len(segments) == 0 {
		fmt.Fprintln(out, "No segments")
		return
	}
	fmt.Fprint(out, renderTable(
		[]string{"#", "Word", "Start", "End", "Confidence"},
		buildSegmentRows(segments),
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
	))
}

// readSegments accepts either a bare array or {"segments": [...]}.
func readSegments(stdin io.Reader, path string) ([]api.Segment, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read segments: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("read segments: input is empty")
	}
	if strings.HasPrefix(trimmed, "[") {
		var segments []api.Segment
		if err := json.Unmarshal([]byte(trimmed), &segments); err != nil {
			return nil, fmt.Errorf("parse segments: %w", err)
		}
		return segments, nil
	}
	var req api.ReplaceSegmentsRequest
	if err := json.Unmarshal([]byte(trimmed), &req); err != nil {
		return nil, fmt.Errorf("parse segments: %w", err)
	}
	return req.Segments, nil
}
