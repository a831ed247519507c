package gate

import (
	"time"

	"github.com/pitools/updaterd/internal/logging"
)

var log = logging.L("gate")

// probeTimeout bounds every environment probe so a wedged subprocess
// cannot stall the caller.
const probeTimeout = 2 * time.Second

// NetworkProbe reports whether the host has a usable network connection.
type NetworkProbe interface {
	Available() bool
}

// ClockProbe reports whether the system clock is synchronised.
type ClockProbe interface {
	Synced() bool
}

// PlatformProbe identifies the host platform for filter-policy decisions.
type PlatformProbe interface {
	KernelArch() string
}

// Gate evaluates the preconditions required before any network-touching
// or install action. Probes fail closed: an internal error reads as
// "not available".
type Gate struct {
	network NetworkProbe
	clock   ClockProbe
}

// New creates a Gate with the default OS probes.
func New() *Gate {
	return NewWithProbes(&interfaceProbe{}, &timesyncProbe{})
}

// NewWithProbes creates a Gate with injected probes. Used by tests and by
// callers that already hold probe instances.
func NewWithProbes(network NetworkProbe, clock ClockProbe) *Gate {
	return &Gate{network: network, clock: clock}
}

// Network reports whether at least one non-loopback IPv4 address is
// assigned to an interface.
func (g *Gate) Network() bool {
	ok := g.network.Available()
	if !ok {
		log.Debug("network probe negative")
	}
	return ok
}

// ClockSynced reports whether the system time-sync service considers the
// clock synchronised. Hosts without a time-sync mechanism read as unsynced.
func (g *Gate) ClockSynced() bool {
	ok := g.clock.Synced()
	if !ok {
		log.Debug("clock probe negative")
	}
	return ok
}
