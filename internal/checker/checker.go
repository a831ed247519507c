package checker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pitools/updaterd/internal/logging"
	"github.com/pitools/updaterd/internal/pkgbackend"
	"github.com/pitools/updaterd/internal/state"
)

var log = logging.L("checker")

var (
	// ErrNoNetwork means the availability gate blocked the run before any
	// backend call was made.
	ErrNoNetwork = errors.New("no network connection")

	// ErrCheckInProgress means a run was requested while one was active.
	// The active run is unaffected; the request is dropped, not queued.
	ErrCheckInProgress = errors.New("update check already in progress")
)

// Phase is the observable stage of the in-flight run.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseRefreshingCache
	PhaseComparingVersions
)

func (p Phase) String() string {
	switch p {
	case PhaseRefreshingCache:
		return "refreshing-cache"
	case PhaseComparingVersions:
		return "comparing-versions"
	default:
		return "idle"
	}
}

// NetworkGate is the slice of the availability gate the checker needs.
type NetworkGate interface {
	Network() bool
}

// Checker runs the update-check pipeline: gate, refresh the package
// metadata cache, list updates, apply the architecture filter, publish.
// At most one run is in flight at a time.
type Checker struct {
	backend pkgbackend.Backend
	gate    NetworkGate
	sink    *state.Sink
	policy  pkgbackend.ArchPolicy

	running atomic.Bool
	phase   atomic.Int32
	runSeq  atomic.Uint64

	now func() time.Time
}

func New(backend pkgbackend.Backend, g NetworkGate, sink *state.Sink, policy pkgbackend.ArchPolicy) *Checker {
	return &Checker{
		backend: backend,
		gate:    g,
		sink:    sink,
		policy:  policy,
		now:     time.Now,
	}
}

// Phase returns the current pipeline phase.
func (c *Checker) Phase() Phase {
	return Phase(c.phase.Load())
}

// Run executes one check. On failure the previously published UpdateSet
// is left untouched; the error describes where the run ended.
func (c *Checker) Run(ctx context.Context) (state.UpdateSet, error) {
	if !c.running.CompareAndSwap(false, true) {
		log.Info("check requested while one is running, dropping")
		return state.UpdateSet{}, ErrCheckInProgress
	}
	defer func() {
		c.phase.Store(int32(PhaseIdle))
		c.running.Store(false)
	}()

	runLog := logging.WithRun(log, strconv.FormatUint(c.runSeq.Add(1), 10))

	if !c.gate.Network() {
		runLog.Warn("no network connection, update check skipped")
		return state.UpdateSet{}, ErrNoNetwork
	}

	started := c.now()
	runLog.Info("checking for updates", "backend", c.backend.Name())

	c.phase.Store(int32(PhaseRefreshingCache))
	if err := c.backend.RefreshCache(ctx); err != nil {
		runLog.Error("cache refresh failed", "error", err)
		return state.UpdateSet{}, fmt.Errorf("refreshing cache: %w", err)
	}

	c.phase.Store(int32(PhaseComparingVersions))
	refs, err := c.backend.ListUpdates(ctx)
	if err != nil {
		runLog.Error("update query failed", "error", err)
		return state.UpdateSet{}, fmt.Errorf("comparing versions: %w", err)
	}

	filtered := c.policy.Apply(refs)
	if dropped := len(refs) - len(filtered); dropped > 0 {
		runLog.Debug("filtered foreign-arch entries", "dropped", dropped)
	}

	set := state.NewUpdateSet(filtered, c.now())
	c.sink.Publish(set)

	runLog.Info("check complete",
		"updates", set.Count(),
		"upToDate", set.UpToDate,
		logging.KeyDurationMs, c.now().Sub(started).Milliseconds())

	return set, nil
}
