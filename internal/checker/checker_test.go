package checker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pitools/updaterd/internal/pkgbackend"
	"github.com/pitools/updaterd/internal/state"
)

type fakeGate struct{ up bool }

func (g *fakeGate) Network() bool { return g.up }

type fakeBackend struct {
	mu          sync.Mutex
	refreshErr  error
	listErr     error
	updates     []pkgbackend.PackageRef
	refreshed   int
	listed      int
	refreshGate chan struct{} // when set, RefreshCache blocks until closed
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) RefreshCache(ctx context.Context) error {
	b.mu.Lock()
	b.refreshed++
	gate := b.refreshGate
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return b.refreshErr
}

func (b *fakeBackend) ListUpdates(ctx context.Context) ([]pkgbackend.PackageRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listed++
	return b.updates, b.listErr
}

func (b *fakeBackend) InstallUpdates(ctx context.Context, refs []pkgbackend.PackageRef, progress pkgbackend.ProgressFunc) error {
	return nil
}

func (b *fakeBackend) calls() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshed, b.listed
}

func TestRunPublishesUpdateSet(t *testing.T) {
	backend := &fakeBackend{updates: []pkgbackend.PackageRef{
		{Name: "foo", Version: "1.2", Arch: "armhf"},
	}}
	sink := state.NewSink()
	c := New(backend, &fakeGate{up: true}, sink, pkgbackend.ArchPolicy{})

	set, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Count() != 1 || set.UpToDate {
		t.Fatalf("unexpected set: %+v", set)
	}
	if sink.Current().Count() != 1 {
		t.Fatalf("sink should hold the published set: %+v", sink.Current())
	}
}

func TestRunZeroUpdatesMeansUpToDate(t *testing.T) {
	backend := &fakeBackend{}
	sink := state.NewSink()
	c := New(backend, &fakeGate{up: true}, sink, pkgbackend.ArchPolicy{})

	// Seed prior state with pending updates.
	sink.Publish(state.NewUpdateSet([]pkgbackend.PackageRef{{Name: "old"}}, time.Now()))

	set, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !set.UpToDate || set.Count() != 0 {
		t.Fatalf("zero updates should read up to date: %+v", set)
	}
	if !sink.Current().UpToDate {
		t.Fatal("sink should transition to up to date")
	}
}

func TestRunWithoutNetworkTouchesNothing(t *testing.T) {
	backend := &fakeBackend{updates: []pkgbackend.PackageRef{{Name: "foo"}}}
	sink := state.NewSink()
	prior := state.NewUpdateSet([]pkgbackend.PackageRef{{Name: "kept"}}, time.Now())
	sink.Publish(prior)

	c := New(backend, &fakeGate{up: false}, sink, pkgbackend.ArchPolicy{})

	_, err := c.Run(context.Background())
	if !errors.Is(err, ErrNoNetwork) {
		t.Fatalf("expected ErrNoNetwork, got %v", err)
	}

	refreshed, listed := backend.calls()
	if refreshed != 0 || listed != 0 {
		t.Fatalf("no backend calls expected, got refresh=%d list=%d", refreshed, listed)
	}
	if sink.Current().Count() != 1 || sink.Current().Packages[0].Name != "kept" {
		t.Fatalf("prior state should be untouched: %+v", sink.Current())
	}
}

func TestRunBackendFailureKeepsPriorState(t *testing.T) {
	backend := &fakeBackend{refreshErr: errors.New("mirror unreachable")}
	sink := state.NewSink()
	prior := state.NewUpdateSet([]pkgbackend.PackageRef{{Name: "kept"}}, time.Now())
	sink.Publish(prior)

	c := New(backend, &fakeGate{up: true}, sink, pkgbackend.ArchPolicy{})

	_, err := c.Run(context.Background())
	if err == nil || !errors.Is(err, backend.refreshErr) {
		t.Fatalf("expected wrapped refresh error, got %v", err)
	}
	if sink.Current().Count() != 1 {
		t.Fatalf("prior state should be untouched: %+v", sink.Current())
	}
}

func TestRunIsSingleFlight(t *testing.T) {
	gateCh := make(chan struct{})
	backend := &fakeBackend{refreshGate: gateCh}
	sink := state.NewSink()
	c := New(backend, &fakeGate{up: true}, sink, pkgbackend.ArchPolicy{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background())
		firstDone <- err
	}()

	// Wait until the first run is inside RefreshCache.
	for {
		if refreshed, _ := backend.calls(); refreshed == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, err := c.Run(context.Background())
	if !errors.Is(err, ErrCheckInProgress) {
		t.Fatalf("expected ErrCheckInProgress, got %v", err)
	}

	close(gateCh)
	if err := <-firstDone; err != nil {
		t.Fatalf("first run should complete cleanly: %v", err)
	}

	if refreshed, _ := backend.calls(); refreshed != 1 {
		t.Fatalf("second run must not have started, refresh calls = %d", refreshed)
	}
}

func TestRunAppliesArchPolicy(t *testing.T) {
	backend := &fakeBackend{updates: []pkgbackend.PackageRef{
		{Name: "foo", Version: "1.2", Arch: "amd64"},
		{Name: "bar", Version: "3.0", Arch: "armhf"},
	}}
	sink := state.NewSink()
	c := New(backend, &fakeGate{up: true}, sink, pkgbackend.ArchPolicy{Exclude: []string{"amd64"}})

	set, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Count() != 1 || set.Packages[0].Name != "bar" {
		t.Fatalf("amd64 entry should be filtered: %+v", set.Packages)
	}
}
