package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captioner/internal/api"
	"captioner/internal/apiclient"
	"captioner/internal/fileutil"
	"captioner/internal/policy"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		style, position, animation string
		x, y                       float64
		wait                       bool
		interval                   time.Duration
		timeout                    time.Duration
		output                     string
	)
	cmd := &cobra.Command{
		Use:   "render <media-id>",
		Short: "Submit a captioned render",
		Long: "Submits a render job and prints its id. With --wait the command polls\n" +
			"until the job finishes and, when --output is set, downloads the result.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.RenderRequest{
				MediaID:   args[0],
				Style:     style,
				Position:  position,
				Animation: animation,
			}
			if cmd.Flags().Changed("x") || cmd.Flags().Changed("y") {
				req.Coordinates = &policy.Coordinates{X: x, Y: y}
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.SubmitRender(cmd.Context(), req)
			if err != nil {
				return wrapDaemonError(err)
			}
			if !wait {
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				fmt.Fprintln(cmd.OutOrStdout(), job.ID)
				return nil
			}
			return waitForRender(cmd, ctx, client, job.ID, interval, timeout, output)
		},
	}
	cmd.Flags().StringVar(&style, "style", "", "Caption style (clean, ig-glow, ig-green, emoji)")
	cmd.Flags().StringVar(&position, "position", "", "Caption position (top, center, bottom)")
	cmd.Flags().StringVar(&animation, "animation", "", "Caption animation (none, pop, slide, bounce, karaoke)")
	cmd.Flags().Float64Var(&x, "x", 0, "Explicit caption x coordinate in output pixels")
	cmd.Flags().Float64Var(&y, "y", 0, "Explicit caption y coordinate in output pixels")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the render finishes")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Poll interval with --wait")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting after this long (0 waits forever)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Download the result here when it succeeds (file or directory)")
	return cmd
}

func waitForRender(cmd *cobra.Command, ctx *commandContext, client *apiclient.Client, jobID string, interval, timeout time.Duration, output string) error {
	waitCtx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, timeout)
		defer cancel()
	}
	out := cmd.OutOrStdout()
	started := time.Now()
	last := ""
	status, err := client.Wait(waitCtx, jobID, interval, func(s *api.JobStatus) {
		if ctx.jsonOutput() {
			return
		}
		line := describeStatus(s)
		if line != last {
			fmt.Fprintln(out, line)
			last = line
		}
	})
	if err != nil {
		return wrapDaemonError(err)
	}
	if ctx.jsonOutput() {
		if err := writeJSON(cmd, status); err != nil {
			return err
		}
	}
	if status.State != "succeeded" {
		return fmt.Errorf("render %s failed (%s): %s", status.ID, status.ErrorKind, status.ErrorDetail)
	}
	if !ctx.jsonOutput() {
		fmt.Fprintf(out, "Finished in %s: %s\n", formatElapsed(time.Since(started)), status.ResultRef)
	}
	if strings.TrimSpace(output) == "" {
		return nil
	}
	path, err := downloadResult(cmd.Context(), client, jobID, output)
	if err != nil {
		return err
	}
	if !ctx.jsonOutput() {
		fmt.Fprintf(out, "Saved %s\n", path)
	}
	return nil
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var mediaID string
	var limit int
	cmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"list"},
		Short:   "List render jobs, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobs, err := client.ListRenders(cmd.Context(), apiclient.ListOptions{
				States:  states,
				MediaID: mediaID,
				Limit:   limit,
			})
			if err != nil {
				return wrapDaemonError(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
			}
			out := cmd.OutOrStdout()
			rows := buildJobRows(jobs)
			if len(rows) == 0 {
				fmt.Fprintln(out, "No render jobs")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]string{"ID", "Media", "Style", "State", "Created", "Message"},
				rows,
				nil,
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by state (pending, processing, succeeded, failed)")
	cmd.Flags().StringVar(&mediaID, "media", "", "Filter by media id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of jobs to show")
	return cmd
}

func newResultCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "result <job-id>",
		Short: "Download the rendered video of a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			target := output
			if strings.TrimSpace(target) == "" {
				target = "."
			}
			path, err := downloadResult(cmd.Context(), client, args[0], target)
			if err != nil {
				if apiclient.IsStatus(err, http.StatusConflict) {
					return fmt.Errorf("job %s has not succeeded yet: %w", args[0], err)
				}
				return wrapDaemonError(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]string{"jobId": args[0], "path": path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory (default: current directory)")
	return cmd
}

// downloadResult saves a job's output under target. A target that is an
// existing directory receives the daemon's suggested file name.
func downloadResult(ctx context.Context, client *apiclient.Client, jobID, target string) (string, error) {
	dir, name := target, ""
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		dir, name = filepath.Dir(target), filepath.Base(target)
	}
	tmp, err := os.CreateTemp(dir, ".captioner-download-*")
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	defer os.Remove(tmp.Name())

	suggested, _, err := client.DownloadResult(ctx, jobID, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close download file: %w", closeErr)
	}
	if err != nil {
		return "", err
	}
	if name == "" {
		name = filepath.Base(suggested)
		if name == "" || name == "." || name == string(filepath.Separator) {
			name = jobID + ".mp4"
		}
	}
	dest := filepath.Join(dir, name)
	if err := fileutil.Move(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("save download: %w", err)
	}
	return dest, nil
}
