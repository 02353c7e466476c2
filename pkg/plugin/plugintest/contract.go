// Package plugintest provides shared contract tests that verify any
// plugin.MIB implementation behaves correctly. Every table module's test
// file should call TestMIBContract to ensure conformance.
package plugintest

import (
	"context"
	"testing"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/pkg/countersdb"
	"github.com/HerbHall/mibagent/pkg/oid"
	"github.com/HerbHall/mibagent/pkg/plugin"
)

// TestMIBContract runs a suite of behavioral contract tests against any
// plugin.MIB implementation. store backs the table; it may be empty.
// Call this from each module's _test.go:
//
//	func TestContract(t *testing.T) {
//	    plugintest.TestMIBContract(t, func() plugin.MIB { return cisco.NewPFC() }, store)
//	}
func TestMIBContract(t *testing.T, factory func() plugin.MIB, store countersdb.Reader) {
	t.Helper()

	t.Run("Info_returns_valid_metadata", func(t *testing.T) {
		p := factory()
		info := p.Info()
		if info.Name == "" {
			t.Error("Info().Name must not be empty")
		}
		if info.Version == "" {
			t.Error("Info().Version must not be empty")
		}
		if info.APIVersion < plugin.APIVersionMin {
			t.Errorf("Info().APIVersion = %d, below minimum %d", info.APIVersion, plugin.APIVersionMin)
		}
		prefix, err := oid.Parse(info.Prefix)
		if err != nil || len(prefix) == 0 {
			t.Errorf("Info().Prefix = %q is not a valid OID", info.Prefix)
		}
	})

	t.Run("Init_succeeds_with_valid_deps", func(t *testing.T) {
		p := factory()
		if err := p.Init(context.Background(), testDeps(p.Info().Name, store)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
	})

	t.Run("Prefix_matches_Info", func(t *testing.T) {
		p := factory()
		p.Init(context.Background(), testDeps(p.Info().Name, store))
		if got := p.Prefix().String(); got != oid.MustParse(p.Info().Prefix).String() {
			t.Errorf("Prefix() = %s, Info().Prefix = %s", got, p.Info().Prefix)
		}
	})

	t.Run("Start_after_Init", func(t *testing.T) {
		p := factory()
		p.Init(context.Background(), testDeps(p.Info().Name, store))
		if err := p.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		// Clean up.
		p.Stop(context.Background())
	})

	t.Run("Stop_without_Start_does_not_panic", func(t *testing.T) {
		p := factory()
		p.Init(context.Background(), testDeps(p.Info().Name, store))
		if err := p.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() without Start error = %v", err)
		}
	})

	t.Run("GetNext_stays_inside_prefix", func(t *testing.T) {
		p := factory()
		p.Init(context.Background(), testDeps(p.Info().Name, store))
		prefix := p.Prefix()

		cur := prefix
		for i := 0; i < 10000; i++ {
			pdu, ok := p.GetNext(context.Background(), cur)
			if !ok {
				return
			}
			next := oid.MustParse(pdu.Name)
			if !next.HasPrefix(prefix) {
				t.Fatalf("GetNext(%s) = %s, outside prefix %s", cur, next, prefix)
			}
			if oid.Compare(next, cur) <= 0 {
				t.Fatalf("GetNext(%s) = %s, not strictly greater", cur, next)
			}
			if got := p.Get(context.Background(), next); got.Type != pdu.Type {
				t.Fatalf("Get(%s) type = %v, GetNext reported %v", next, got.Type, pdu.Type)
			}
			cur = next
		}
		t.Fatal("walk did not terminate")
	})

	t.Run("Get_outside_prefix_is_no_such_object", func(t *testing.T) {
		p := factory()
		p.Init(context.Background(), testDeps(p.Info().Name, store))
		pdu := p.Get(context.Background(), p.Prefix().Append(0))
		if pdu.Type != gosnmp.NoSuchObject {
			t.Errorf("Get(prefix.0) type = %v, want NoSuchObject", pdu.Type)
		}
	})

	t.Run("Info_is_idempotent", func(t *testing.T) {
		p := factory()
		a := p.Info()
		b := p.Info()
		if a.Name != b.Name || a.Version != b.Version || a.Prefix != b.Prefix {
			t.Error("Info() must return consistent results")
		}
	})
}

func testDeps(name string, store countersdb.Reader) plugin.Dependencies {
	logger, _ := zap.NewDevelopment()
	return plugin.Dependencies{
		Logger: logger.Named(name),
		Store:  store,
	}
}
