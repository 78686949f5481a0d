package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var ingestAfter bool
	cmd := &cobra.Command{
		Use:   "upload <video-file>",
		Short: "Upload a video and print its media id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Upload(cmd.Context(), args[0])
			if err != nil {
				return wrapDaemonError(err)
			}
			if !ingestAfter {
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.MediaID)
				return nil
			}
			ingested, err := client.Ingest(cmd.Context(), resp.MediaID)
			if err != nil {
				return wrapDaemonError(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, ingested)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.MediaID)
			fmt.Fprintf(out, "Transcribed %d words\n", ingested.Segments)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ingestAfter, "ingest", false, "Transcribe the upload immediately")
	return cmd
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <media-id>",
		Short: "Extract audio and transcribe an uploaded video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Ingest(cmd.Context(), args[0])
			if err != nil {
				return wrapDaemonError(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if resp.Cached {
				fmt.Fprintf(out, "Transcript for %s already exists (%d words)\n", resp.MediaID, resp.Segments)
			} else {
				fmt.Fprintf(out, "Transcribed %s (%d words)\n", resp.MediaID, resp.Segments)
			}
			if resp.AudioStream != "" {
				fmt.Fprintf(out, "Audio stream: %s\n", resp.AudioStream)
			}
			if text := strings.TrimSpace(resp.FullText); text != "" {
				fmt.Fprintln(out, text)
			}
			return nil
		},
	}
}
