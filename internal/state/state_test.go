package state

import (
	"testing"
	"time"

	"github.com/pitools/updaterd/internal/pkgbackend"
)

func refs(names ...string) []pkgbackend.PackageRef {
	out := make([]pkgbackend.PackageRef, 0, len(names))
	for _, n := range names {
		out = append(out, pkgbackend.PackageRef{Name: n, Version: "1.0", Arch: "armhf"})
	}
	return out
}

func TestNewUpdateSetInvariant(t *testing.T) {
	now := time.Now()

	empty := NewUpdateSet(nil, now)
	if !empty.UpToDate || empty.Count() != 0 {
		t.Fatalf("empty set should be up to date: %+v", empty)
	}

	full := NewUpdateSet(refs("foo"), now)
	if full.UpToDate || full.Count() != 1 {
		t.Fatalf("non-empty set should not be up to date: %+v", full)
	}
}

func TestSinkStartsUpToDate(t *testing.T) {
	s := NewSink()
	if !s.Current().UpToDate {
		t.Fatal("fresh sink should read as up to date")
	}
}

func TestPublishReportsTransitions(t *testing.T) {
	s := NewSink()
	now := time.Now()

	if tr := s.Publish(NewUpdateSet(refs("foo"), now)); tr != TransitionUpdatesAvailable {
		t.Fatalf("up-to-date -> updates should transition, got %v", tr)
	}
	if tr := s.Publish(NewUpdateSet(refs("foo", "bar"), now)); tr != TransitionNone {
		t.Fatalf("updates -> updates should not transition, got %v", tr)
	}
	if tr := s.Publish(NewUpdateSet(nil, now)); tr != TransitionUpToDate {
		t.Fatalf("updates -> up-to-date should transition, got %v", tr)
	}
	if tr := s.Publish(NewUpdateSet(nil, now)); tr != TransitionNone {
		t.Fatalf("up-to-date -> up-to-date should not transition, got %v", tr)
	}
}

func TestObserversSeeEachPublishOnce(t *testing.T) {
	s := NewSink()
	now := time.Now()

	var events []Transition
	s.Subscribe(func(set UpdateSet, tr Transition) {
		events = append(events, tr)
	})

	s.Publish(NewUpdateSet(refs("foo"), now))
	s.Publish(NewUpdateSet(refs("foo"), now))
	s.Publish(NewUpdateSet(nil, now))

	want := []Transition{TransitionUpdatesAvailable, TransitionNone, TransitionUpToDate}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, events[i], want[i])
		}
	}

	available := 0
	for _, tr := range events {
		if tr == TransitionUpdatesAvailable {
			available++
		}
	}
	if available != 1 {
		t.Fatalf("exactly one updates-available transition expected, got %d", available)
	}
}

func TestPublishReplacesCurrentAtomically(t *testing.T) {
	s := NewSink()
	now := time.Now()

	s.Publish(NewUpdateSet(refs("foo", "bar"), now))

	got := s.Current()
	if got.Count() != 2 || got.UpToDate {
		t.Fatalf("unexpected current set: %+v", got)
	}
	if !got.CheckedAt.Equal(now) {
		t.Fatalf("timestamp should be preserved: %v", got.CheckedAt)
	}
}
