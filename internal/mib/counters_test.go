package mib

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/HerbHall/mibagent/internal/counterstore"
	"github.com/HerbHall/mibagent/pkg/countersdb"
)

func TestReadCounters(t *testing.T) {
	store := counterstore.NewMemory()
	store.HSet(countersdb.CountersDB, "COUNTERS:a", map[string]string{"f": "1"})
	store.HSet(countersdb.CountersDB, "COUNTERS:b", map[string]string{"f": "2"})

	got, err := ReadCounters(context.Background(), store, []string{"COUNTERS:a", "COUNTERS:b", "COUNTERS:absent"}, 2, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]string{
		"COUNTERS:a": {"f": "1"},
		"COUNTERS:b": {"f": "2"},
	}, got)
}

func TestReadCounters_PartialFailure(t *testing.T) {
	store := counterstore.NewMemory()
	store.HSet(countersdb.CountersDB, "COUNTERS:a", map[string]string{"f": "1"})
	store.HSet(countersdb.CountersDB, "COUNTERS:b", map[string]string{"f": "2"})
	store.FailKey("COUNTERS:b", errors.New("timeout"))

	got, err := ReadCounters(context.Background(), store, []string{"COUNTERS:a", "COUNTERS:b"}, 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Contains(t, got, "COUNTERS:a")
	assert.NotContains(t, got, "COUNTERS:b")
}

func TestReadCounters_TotalFailure(t *testing.T) {
	store := counterstore.NewMemory()
	errDown := errors.New("connection refused")
	store.FailAll(errDown)

	_, err := ReadCounters(context.Background(), store, []string{"COUNTERS:a", "COUNTERS:b"}, 4, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, errDown)
}

func TestReadCounters_NoKeys(t *testing.T) {
	got, err := ReadCounters(context.Background(), counterstore.NewMemory(), nil, 4, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSourceKeys(t *testing.T) {
	keys := SourceKeys(
		[]Source{{Key: "b"}, {Key: "a"}},
		[]Source{{Key: "a"}, {Key: "c"}},
	)
	assert.Equal(t, []string{"b", "a", "c"}, keys)
}
