package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"captioner/internal/api"
)

func formatStateLabel(state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return ""
	}
	return strings.ToUpper(state[:1]) + strings.ToLower(state[1:])
}

func formatDisplayTime(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func buildStateRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStateLabel(key), strconv.Itoa(stats[key])})
	}
	return rows
}

func buildJobRows(jobs []api.Job) [][]string {
	if len(jobs) == 0 {
		return nil
	}
	sorted := api.SortJobsNewestFirst(jobs)
	rows := make([][]string, 0, len(sorted))
	for _, job := range sorted {
		detail := job.Message
		if job.State == "failed" && job.ErrorDetail != "" {
			detail = job.ErrorDetail
		}
		rows = append(rows, []string{
			job.ID,
			job.MediaID,
			job.Style,
			formatStateLabel(job.State),
			formatDisplayTime(job.CreatedAt),
			detail,
		})
	}
	return rows
}

func buildSegmentRows(segments []api.Segment) [][]string {
	rows := make([][]string, 0, len(segments))
	for i, seg := range segments {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			seg.Word,
			formatSeconds(seg.Start),
			formatSeconds(seg.End),
			formatSeconds(seg.Confidence),
		})
	}
	return rows
}

// describeStatus renders a one-line progress summary for render --wait.
func describeStatus(status *api.JobStatus) string {
	if status == nil {
		return ""
	}
	line := fmt.Sprintf("%s: %s", status.ID, formatStateLabel(status.State))
	if msg := strings.TrimSpace(status.Message); msg != "" {
		line += " - " + msg
	}
	return line
}

func formatElapsed(d time.Duration) string {
	return d.Round(100 * time.Millisecond).String()
}
