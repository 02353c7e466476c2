package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePSUUtil writes a shell script that answers like psuutil on a platform
// with two supplies, the second of which has failed.
func fakePSUUtil(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "psuutil")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

const twoSupplies = `case "$1" in
numpsus) echo 2 ;;
status)
  if [ "$3" = "1" ]; then echo "PSU 1: OK"; else echo "PSU $3: NOT OK"; fi ;;
esac
`

func TestPSUUtil_Count(t *testing.T) {
	p := NewPSUUtil(fakePSUUtil(t, twoSupplies), time.Second)

	n, err := p.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPSUUtil_Status(t *testing.T) {
	p := NewPSUUtil(fakePSUUtil(t, twoSupplies), time.Second)

	ok, err := p.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Status(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPSUUtil_BadOutput(t *testing.T) {
	p := NewPSUUtil(fakePSUUtil(t, `echo "not installed"`), time.Second)

	_, err := p.Count(context.Background())
	assert.True(t, errors.Is(err, ErrProbeOutput))

	_, err = p.Status(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrProbeOutput))
}

func TestPSUUtil_CommandFails(t *testing.T) {
	p := NewPSUUtil(fakePSUUtil(t, "echo boom >&2\nexit 3\n"), time.Second)

	_, err := p.Count(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, errors.Is(err, ErrProbeOutput))
}

func TestPSUUtil_MissingBinary(t *testing.T) {
	p := NewPSUUtil(filepath.Join(t.TempDir(), "does-not-exist"), time.Second)
	_, err := p.Count(context.Background())
	assert.Error(t, err)
}

func TestPSUUtil_Timeout(t *testing.T) {
	p := NewPSUUtil(fakePSUUtil(t, "exec sleep 5\n"), 50*time.Millisecond)

	start := time.Now()
	_, err := p.Count(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestNewPSUUtil_Defaults(t *testing.T) {
	p := NewPSUUtil("", 0)
	assert.Equal(t, "psuutil", p.path)
	assert.Equal(t, DefaultTimeout, p.timeout)
}
