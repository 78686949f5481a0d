package compositor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// OutputFunc runs a command and returns its stdout.
type OutputFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func commandOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// FontconfigChecker answers font availability with fc-list and caches the
// answer per family for the life of the process.
type FontconfigChecker struct {
	Binary string
	Output OutputFunc

	mu    sync.Mutex
	known map[string]bool
}

// NewFontconfigChecker returns a checker backed by the given fc-list binary.
func NewFontconfigChecker(binary string) *FontconfigChecker {
	if strings.TrimSpace(binary) == "" {
		binary = "fc-list"
	}
	return &FontconfigChecker{Binary: binary, Output: commandOutput}
}

// HasFont reports whether fontconfig lists family (case-insensitive match on
// any of the family names it reports).
func (f *FontconfigChecker) HasFont(ctx context.Context, family string) (bool, error) {
	key := strings.ToLower(strings.TrimSpace(family))
	f.mu.Lock()
	if ok, cached := f.known[key]; cached {
		f.mu.Unlock()
		return ok, nil
	}
	f.mu.Unlock()

	out, err := f.Output(ctx, f.Binary, ":", "family")
	if err != nil {
		return false, err
	}
	found := false
	for _, line := range strings.Split(string(out), "\n") {
		for _, name := range strings.Split(line, ",") {
			if strings.EqualFold(strings.TrimSpace(name), key) {
				found = true
				break
			}
		}
		if found {
			break
		}
	}

	f.mu.Lock()
	if f.known == nil {
		f.known = make(map[string]bool)
	}
	f.known[key] = found
	f.mu.Unlock()
	return found, nil
}
