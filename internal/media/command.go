package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes an external tool. Tests substitute fakes.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) error

// stderrLimit bounds how much tool output is kept on failure.
const stderrLimit = 4096

// RunCommand runs name with args in dir, attaching the tail of stderr to any
// failure. Output is never streamed to the caller's terminal.
func RunCommand(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > stderrLimit {
			detail = "..." + detail[len(detail)-stderrLimit:]
		}
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", name, err, detail)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
