package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// OutputFunc runs a command and returns its stdout.
type OutputFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func commandOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CheckEncoders reports whether ffmpeg was built with every named encoder.
// A nil run uses os/exec.
func CheckEncoders(ctx context.Context, run OutputFunc, ffmpegBinary string, encoders ...string) Status {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	result := Status{
		Name:        "FFmpeg encoders",
		Command:     ffmpegBinary,
		Description: "Render codecs " + strings.Join(encoders, ", "),
	}
	if ffmpegBinary == "" {
		result.Detail = "command not configured"
		return result
	}
	if run == nil {
		run = commandOutput
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := run(checkCtx, ffmpegBinary, "-hide_banner", "-encoders")
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	available := parseEncoderNames(out)
	var missing []string
	for _, name := range encoders {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		result.Detail = "missing encoders: " + strings.Join(missing, ", ")
		return result
	}
	result.Available = true
	return result
}

// parseEncoderNames reads `ffmpeg -encoders` output. Encoder rows start with
// a six-character capability column such as " V....D".
func parseEncoderNames(out []byte) map[string]struct{} {
	names := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(out))
	listing := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "------") {
			listing = true
			continue
		}
		if !listing {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		names[fields[1]] = struct{}{}
	}
	return names
}
