// Package platform probes switch hardware through the platform's command
// line utilities.
package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrProbeOutput is returned when a utility prints something that cannot be
// parsed.
var ErrProbeOutput = errors.New("unexpected probe output")

// DefaultTimeout bounds a single utility invocation.
const DefaultTimeout = 5 * time.Second

// PSUProbe reports power supply state.
type PSUProbe interface {
	// Count returns the number of power supplies the platform supports.
	Count(ctx context.Context) (int, error)
	// Status reports whether the 1-based supply index is operating correctly.
	Status(ctx context.Context, index int) (bool, error)
}

// Compile-time interface guard.
var _ PSUProbe = (*PSUUtil)(nil)

// PSUUtil runs the psuutil command.
type PSUUtil struct {
	path    string
	timeout time.Duration
}

// NewPSUUtil returns a probe that runs the psuutil binary at path ("psuutil"
// resolves through PATH). A non-positive timeout selects DefaultTimeout.
func NewPSUUtil(path string, timeout time.Duration) *PSUUtil {
	if path == "" {
		path = "psuutil"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PSUUtil{path: path, timeout: timeout}
}

// Count runs "psuutil numpsus".
func (p *PSUUtil) Count(ctx context.Context) (int, error) {
	out, err := p.run(ctx, "numpsus")
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(out))
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: numpsus printed %q", ErrProbeOutput, s)
	}
	return n, nil
}

// Status runs "psuutil status -i <index> --textonly" and expects a line of
// the form "PSU <index>: OK".
func (p *PSUUtil) Status(ctx context.Context, index int) (bool, error) {
	idx := strconv.Itoa(index)
	out, err := p.run(ctx, "status", "-i", idx, "--textonly")
	if err != nil {
		return false, err
	}
	for line := range strings.Lines(string(out)) {
		name, status, ok := strings.Cut(line, ":")
		if !ok || !strings.Contains(name, idx) {
			continue
		}
		return strings.HasPrefix(strings.TrimSpace(status), "OK"), nil
	}
	return false, fmt.Errorf("%w: no status line for PSU %d in %q", ErrProbeOutput, index, bytes.TrimSpace(out))
}

func (p *PSUUtil) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.path, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w (stderr: %s)", p.path, strings.Join(args, " "), err, bytes.TrimSpace(stderr.Bytes()))
	}
	return out, nil
}
