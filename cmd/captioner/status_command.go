package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"captioner/internal/api"
	"captioner/internal/preflight"
)

type statusReport struct {
	Daemon      *api.DaemonStatus `json:"daemon,omitempty"`
	DaemonError string            `json:"daemonError,omitempty"`
	Checks      []checkResult     `json:"checks,omitempty"`
}

type checkResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var runChecks bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, worker, and queue status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var report statusReport
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				report.DaemonError = wrapDaemonError(err).Error()
			} else {
				report.Daemon = status
			}
			if runChecks {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				for _, result := range preflight.RunAll(cmd.Context(), cfg) {
					report.Checks = append(report.Checks, checkResult{Name: result.Name, Passed: result.Passed, Detail: result.Detail})
				}
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			printStatusReport(out, report, shouldColorize(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&runChecks, "check", false, "Also run local preflight checks (directories, disk, redis, llm)")
	return cmd
}

func printStatusReport(out io.Writer, report statusReport, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if report.Daemon == nil {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusError, report.DaemonError, colorize))
	} else {
		d := report.Daemon
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", d.PID), colorize))
		fmt.Fprintln(out, renderStatusLine("Session", statusInfo, d.SessionID, colorize))
		fmt.Fprintln(out, renderStatusLine("Dispatcher", statusInfo, d.Dispatcher, colorize))
		fmt.Fprintln(out, renderStatusLine("Database", statusInfo, d.DatabasePath, colorize))

		wf := d.Workflow
		kind := statusOK
		if !wf.Running {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine("Workers", kind, fmt.Sprintf("%d busy of %d", wf.Busy, wf.Workers), colorize))
		for _, active := range wf.Active {
			fmt.Fprintln(out, renderStatusLine("Rendering", statusInfo, active.JobID, colorize))
		}
		if wf.LastError != "" {
			fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, wf.LastError, colorize))
		}
		for _, health := range wf.StageHealth {
			kind := statusOK
			if !health.Ready {
				kind = statusError
			}
			fmt.Fprintln(out, renderStatusLine("Stage "+health.Name, kind, health.Detail, colorize))
		}
		fmt.Fprintln(out)

		for _, line := range renderSectionHeader("Dependencies", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, dep := range d.Dependencies {
			fmt.Fprintln(out, renderStatusLine(dep.Name, dependencyKind(dep), dependencyDetail(dep), colorize))
		}
		fmt.Fprintln(out)

		for _, line := range renderSectionHeader("Render Jobs", colorize) {
			fmt.Fprintln(out, line)
		}
		rows := buildStateRows(wf.QueueStats)
		if len(rows) == 0 {
			fmt.Fprintln(out, "Queue is empty")
		} else {
			fmt.Fprint(out, renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(out, "Total: %s\n", countJobs(wf.QueueStats))
		}
	}

	if len(report.Checks) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
}

func dependencyKind(dep api.DependencyStatus) statusKind {
	switch {
	case dep.Available:
		return statusOK
	case dep.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyDetail(dep api.DependencyStatus) string {
	if dep.Available {
		return dep.Command
	}
	detail := dep.Detail
	if detail == "" {
		detail = "not found"
	}
	return detail + " (optional: " + yesNo(dep.Optional) + ")"
}

func countJobs(stats map[string]int) string {
	total := 0
	for _, n := range stats {
		total += n
	}
	return strconv.Itoa(total)
}
