package cisco

import (
	"context"
	"fmt"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/internal/mib"
	"github.com/HerbHall/mibagent/internal/platform"
	"github.com/HerbHall/mibagent/pkg/oid"
	"github.com/HerbHall/mibagent/pkg/plugin"
)

// cefcFRUPowerOperStatus values reported by the agent.
const (
	psuOn  uint64 = 1
	psuOff uint64 = 0
)

var _ plugin.MIB = (*PowerStatus)(nil)

// PowerStatus serves cefcFRUPowerStatusTable: the operational state of each
// power supply as reported by the platform utility, indexed by PSU number.
type PowerStatus struct {
	module
	probe platform.PSUProbe
}

// PowerStatusOption configures a PowerStatus.
type PowerStatusOption func(*PowerStatus)

// WithProbe replaces the psuutil command with p.
func WithProbe(p platform.PSUProbe) PowerStatusOption {
	return func(ps *PowerStatus) { ps.probe = p }
}

// NewPowerStatus creates the cefcFRUPowerStatusTable module.
func NewPowerStatus(opts ...PowerStatusOption) *PowerStatus {
	ps := &PowerStatus{}
	for _, o := range opts {
		o(ps)
	}
	ps.module = newModule(NameFRUPowerStatus, "Power supply operational status", PrefixFRUPowerStatus,
		[]mib.Column{{SubID: oid.OID{1, 2}, Name: "cefcFRUPowerOperStatus", Type: gosnmp.Integer}},
		func(deps plugin.Dependencies, cfg Config) (mib.Updater, error) {
			probe := ps.probe
			if probe == nil {
				probe = platform.NewPSUUtil(cfg.PSUUtilPath, cfg.ProbeTimeout)
			}
			logger := deps.Logger
			if logger == nil {
				logger = zap.NewNop()
			}
			return &powerUpdater{probe: probe, logger: logger}, nil
		},
	)
	return ps
}

type powerUpdater struct {
	probe  platform.PSUProbe
	logger *zap.Logger
}

func (u *powerUpdater) Update(ctx context.Context) (*mib.Snapshot, error) {
	n, err := u.probe.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count power supplies: %w", err)
	}

	b := mib.NewIndexBuilder(u.logger)
	for i := 1; i <= n; i++ {
		v := psuOff
		ok, err := u.probe.Status(ctx, i)
		switch {
		case err != nil:
			u.logger.Error("power supply status probe failed", zap.Int("psu", i), zap.Error(err))
		case ok:
			v = psuOn
		}
		b.Add(oid.OID{uint32(i)}, mib.Descriptor{Entity: uint32(i), Fixed: true, Value: v})
	}
	return mib.IndexSnapshot(b.Build(), nil), nil
}
