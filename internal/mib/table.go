// Package mib is the OID-indexed table engine: it keeps an immutable
// snapshot of each table's rows and counters, refreshes it from the counter
// store, and answers get and get-next queries from the snapshot alone.
package mib

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gosnmp/gosnmp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/mibagent/pkg/oid"
	"github.com/HerbHall/mibagent/pkg/plugin"
)

// Event topics published by tables.
const (
	TopicSnapshotPublished = "mib.snapshot.published"
	TopicRefreshFailed     = "mib.refresh.failed"
)

// SnapshotPublished is the payload of TopicSnapshotPublished.
type SnapshotPublished struct {
	Table      string
	ID         uuid.UUID
	Generation uint64
	Rows       int
}

// RefreshFailed is the payload of TopicRefreshFailed.
type RefreshFailed struct {
	Table      string
	Generation uint64 // generation still being served
	Err        string
}

// DefaultInterval is the refresh period used when none is configured.
const DefaultInterval = 5 * time.Second

// Updater produces a fresh snapshot of a table's rows and counters. The
// table stamps ID, Generation and Taken.
type Updater interface {
	Update(ctx context.Context) (*Snapshot, error)
}

// UpdaterFunc adapts a function to Updater.
type UpdaterFunc func(ctx context.Context) (*Snapshot, error)

// Update implements Updater.
func (f UpdaterFunc) Update(ctx context.Context) (*Snapshot, error) { return f(ctx) }

// Column is one leaf of a table entry. Every row suffix appears under every
// column whose selector accepts it.
type Column struct {
	SubID oid.OID // relative to the table prefix, e.g. 1.4
	Name  string
	Type  gosnmp.Asn1BER

	// Selector is used for every row unless Select is set.
	Selector Selector
	// Select chooses the field for a row, or rejects the row for this column.
	Select func(suffix oid.OID) (Selector, bool)
}

func (c *Column) selector(suffix oid.OID) (Selector, bool) {
	if c.Select != nil {
		return c.Select(suffix)
	}
	return c.Selector, true
}

// Options configures a Table.
type Options struct {
	Logger   *zap.Logger
	Bus      plugin.Publisher
	Interval time.Duration
}

// Table serves one MIB table from its current snapshot. Queries never block
// on the store once a snapshot exists; refreshes build the next snapshot off
// to the side and swap it in atomically.
type Table struct {
	name     string
	prefix   oid.OID
	columns  []Column
	updater  Updater
	logger   *zap.Logger
	bus      plugin.Publisher
	interval time.Duration
	nowFunc  func() time.Time
	warn     *rate.Limiter

	snap    atomic.Pointer[Snapshot]
	lastErr atomic.Pointer[string]

	mu        sync.Mutex // serializes refreshes
	firstLoad sync.Once
	stopOnce  sync.Once
	stopCh   chan struct{}
}

// NewTable creates a table. Columns are served in SubID order.
func NewTable(name string, prefix oid.OID, columns []Column, updater Updater, opts Options) *Table {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	cols := slices.Clone(columns)
	slices.SortFunc(cols, func(a, b Column) int { return oid.Compare(a.SubID, b.SubID) })

	return &Table{
		name:     name,
		prefix:   prefix.Clone(),
		columns:  cols,
		updater:  updater,
		logger:   opts.Logger,
		bus:      opts.Bus,
		interval: opts.Interval,
		nowFunc:  time.Now,
		warn:     rate.NewLimiter(rate.Every(30*time.Second), 3),
		stopCh:   make(chan struct{}),
	}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Prefix returns the table's absolute OID prefix.
func (t *Table) Prefix() oid.OID { return t.prefix }

// Columns returns the table's columns in SubID order.
func (t *Table) Columns() []Column { return t.columns }

// Interval returns the refresh period.
func (t *Table) Interval() time.Duration { return t.interval }

// Current returns the published snapshot, or nil if none exists yet.
func (t *Table) Current() *Snapshot { return t.snap.Load() }

// Snapshot returns the published snapshot. The first call refreshes
// synchronously if nothing is published yet; later calls never touch the
// store and return nil until a refresh succeeds.
func (t *Table) Snapshot(ctx context.Context) *Snapshot {
	if s := t.snap.Load(); s != nil {
		return s
	}
	t.firstLoad.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.snap.Load() == nil {
			_ = t.refresh(ctx)
		}
	})
	return t.snap.Load()
}

// Refresh builds and publishes a new snapshot. On failure the previous
// snapshot stays in place and the error is returned.
func (t *Table) Refresh(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refresh(ctx)
}

func (t *Table) refresh(ctx context.Context) error {
	ctx, span := otel.Tracer("mibagent/mib").Start(ctx, "mib.refresh",
		trace.WithAttributes(attribute.String("table", t.name)),
	)
	defer span.End()

	start := time.Now()
	snap, err := t.updater.Update(ctx)
	refreshDuration.WithLabelValues(t.name).Observe(time.Since(start).Seconds())
	if err == nil && snap == nil {
		err = errors.New("updater returned no snapshot")
	}

	prev := t.snap.Load()
	var gen uint64
	if prev != nil {
		gen = prev.Generation
	}

	if err != nil {
		refreshTotal.WithLabelValues(t.name, "failure").Inc()
		msg := err.Error()
		t.lastErr.Store(&msg)
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		t.logger.Error("table refresh failed, keeping previous snapshot",
			zap.Uint64("generation", gen),
			zap.Error(err),
		)
		t.publish(ctx, TopicRefreshFailed, RefreshFailed{Table: t.name, Generation: gen, Err: msg})
		return fmt.Errorf("refresh %s: %w", t.name, err)
	}

	if snap.Rows == nil {
		snap.Rows = &Index{}
	}
	if snap.Describe == nil {
		if x, ok := snap.Rows.(*Index); ok {
			snap.Describe = x.Lookup
		} else {
			snap.Describe = func(oid.OID) (Descriptor, bool) { return Descriptor{}, false }
		}
	}
	snap.ID = uuid.New()
	snap.Generation = gen + 1
	snap.Taken = t.nowFunc()
	t.snap.Store(snap)
	t.lastErr.Store(nil)

	rows := snap.Rows.Len()
	refreshTotal.WithLabelValues(t.name, "success").Inc()
	snapshotRows.WithLabelValues(t.name).Set(float64(rows))
	span.SetAttributes(
		attribute.Int("rows", rows),
		attribute.Int64("generation", int64(snap.Generation)),
	)
	t.logger.Debug("snapshot published",
		zap.Uint64("generation", snap.Generation),
		zap.Int("rows", rows),
		zap.Duration("elapsed", time.Since(start)),
	)
	t.publish(ctx, TopicSnapshotPublished, SnapshotPublished{
		Table:      t.name,
		ID:         snap.ID,
		Generation: snap.Generation,
		Rows:       rows,
	})
	return nil
}

func (t *Table) publish(ctx context.Context, topic string, payload any) {
	if t.bus == nil {
		return
	}
	err := t.bus.Publish(ctx, plugin.Event{
		Topic:     topic,
		Source:    t.name,
		Timestamp: t.nowFunc(),
		Payload:   payload,
	})
	if err != nil {
		t.logger.Warn("publish event failed", zap.String("topic", topic), zap.Error(err))
	}
}

// Run refreshes once, then on every interval tick. It blocks until the
// context is cancelled or Stop is called. The caller should run this in a
// goroutine.
func (t *Table) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("table refresher started", zap.Duration("interval", t.interval))
	_ = t.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("table refresher stopped (context cancelled)")
			return
		case <-t.stopCh:
			t.logger.Info("table refresher stopped")
			return
		case <-ticker.C:
			_ = t.Refresh(ctx)
		}
	}
}

// Stop signals Run to exit.
func (t *Table) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
}

// Status reports the table's current state.
func (t *Table) Status() plugin.TableStatus {
	st := plugin.TableStatus{Name: t.name, Prefix: t.prefix.String()}
	if s := t.snap.Load(); s != nil {
		st.Ready = true
		st.Rows = s.Rows.Len()
		st.Generation = s.Generation
		st.SnapshotID = s.ID.String()
		st.Taken = s.Taken
	}
	if msg := t.lastErr.Load(); msg != nil {
		st.LastError = *msg
	}
	return st
}

// Get answers a point query for a full OID. Unknown columns yield
// NoSuchObject, unknown rows NoSuchInstance.
func (t *Table) Get(ctx context.Context, name oid.OID) gosnmp.SnmpPDU {
	queriesTotal.WithLabelValues(t.name, "get").Inc()

	col, suffix, ok := t.locate(name)
	if !ok {
		return absent(name, gosnmp.NoSuchObject)
	}
	snap := t.Snapshot(ctx)
	if snap == nil {
		return absent(name, gosnmp.NoSuchInstance)
	}
	pdu, ok := t.value(snap, col, suffix, name)
	if !ok {
		return absent(name, gosnmp.NoSuchInstance)
	}
	return pdu
}

// GetNext returns the first instance in this table strictly after name, in
// column-major order. ok is false when the table holds nothing after name.
func (t *Table) GetNext(ctx context.Context, name oid.OID) (gosnmp.SnmpPDU, bool) {
	queriesTotal.WithLabelValues(t.name, "getnext").Inc()

	var rest oid.OID
	fromStart := false
	switch {
	case name.HasPrefix(t.prefix):
		rest = name[len(t.prefix):]
	case oid.Compare(name, t.prefix) < 0:
		fromStart = true
	default:
		return gosnmp.SnmpPDU{}, false
	}

	snap := t.Snapshot(ctx)
	if snap == nil {
		return gosnmp.SnmpPDU{}, false
	}

	for i := range t.columns {
		col := &t.columns[i]
		var suffix oid.OID
		var found bool
		switch {
		case fromStart:
			suffix, found = snap.Rows.First()
		case rest.HasPrefix(col.SubID):
			suffix, found = snap.Rows.Next(rest[len(col.SubID):])
		case oid.Compare(rest, col.SubID) < 0:
			suffix, found = snap.Rows.First()
		default:
			continue
		}
		for ; found; suffix, found = snap.Rows.Next(suffix) {
			full := t.prefix.Append(col.SubID...).Append(suffix...)
			if pdu, ok := t.value(snap, col, suffix, full); ok {
				return pdu, true
			}
		}
		fromStart = true
	}
	return gosnmp.SnmpPDU{}, false
}

// locate splits a full OID into the column it addresses and the row suffix.
func (t *Table) locate(name oid.OID) (*Column, oid.OID, bool) {
	if !name.HasPrefix(t.prefix) {
		return nil, nil, false
	}
	rest := name[len(t.prefix):]
	for i := range t.columns {
		if rest.HasPrefix(t.columns[i].SubID) {
			return &t.columns[i], rest[len(t.columns[i].SubID):], true
		}
	}
	return nil, nil, false
}

func (t *Table) value(snap *Snapshot, col *Column, suffix, name oid.OID) (gosnmp.SnmpPDU, bool) {
	desc, ok := snap.Describe(suffix)
	if !ok {
		return gosnmp.SnmpPDU{}, false
	}
	sel, ok := col.selector(suffix)
	if !ok {
		return gosnmp.SnmpPDU{}, false
	}
	v, misses := Resolve(snap, desc, sel)
	if len(misses) > 0 {
		t.reportMisses(suffix, misses)
	}
	return gosnmp.SnmpPDU{
		Name:  name.Dotted(),
		Type:  col.Type,
		Value: pduValue(col.Type, v),
	}, true
}

func (t *Table) reportMisses(suffix oid.OID, misses []Miss) {
	missingCounters.WithLabelValues(t.name).Add(float64(len(misses)))
	if !t.warn.Allow() {
		return
	}
	t.logger.Warn("counter store missing attribute, reporting 0",
		zap.String("suffix", suffix.String()),
		zap.String("interface", misses[0].Source.Name),
		zap.String("key", misses[0].Source.Key),
		zap.String("field", misses[0].Field),
		zap.Int("missing", len(misses)),
	)
}

func absent(name oid.OID, typ gosnmp.Asn1BER) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Name: name.Dotted(), Type: typ}
}

// pduValue converts a resolved value to the Go type gosnmp uses for typ.
func pduValue(typ gosnmp.Asn1BER, v uint64) any {
	switch typ {
	case gosnmp.Integer:
		return int(v)
	case gosnmp.Counter32, gosnmp.Gauge32:
		return uint(uint32(v))
	case gosnmp.TimeTicks:
		return uint32(v)
	default:
		return v
	}
}
