package state

import (
	"sync"
	"time"

	"github.com/pitools/updaterd/internal/logging"
	"github.com/pitools/updaterd/internal/pkgbackend"
)

var log = logging.L("state")

// UpdateSet is the outcome of one completed check: the pending updates
// plus the up-to-date flag. Non-empty exactly when UpToDate is false.
type UpdateSet struct {
	Packages  []pkgbackend.PackageRef `json:"packages"`
	CheckedAt time.Time               `json:"checkedAt"`
	UpToDate  bool                    `json:"upToDate"`
}

// NewUpdateSet builds an UpdateSet honouring the invariant: zero packages
// means up to date, and an up-to-date set carries no package list.
func NewUpdateSet(refs []pkgbackend.PackageRef, at time.Time) UpdateSet {
	if len(refs) == 0 {
		return UpdateSet{CheckedAt: at, UpToDate: true}
	}
	return UpdateSet{Packages: refs, CheckedAt: at}
}

// Count returns the number of pending updates.
func (s UpdateSet) Count() int {
	return len(s.Packages)
}

// Transition describes how a publish changed the up-to-date flag.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionUpdatesAvailable
	TransitionUpToDate
)

// Observer receives the published set and the transition it caused.
// Observers run on the publishing goroutine and always see a fully-formed
// UpdateSet.
type Observer func(UpdateSet, Transition)

// Sink holds the latest UpdateSet and notifies observers on transitions.
// Before the first successful check the sink reads as up to date, so the
// first check that finds updates reports TransitionUpdatesAvailable.
type Sink struct {
	mu        sync.RWMutex
	publishMu sync.Mutex
	current   UpdateSet
	observers []Observer
}

func NewSink() *Sink {
	return &Sink{current: UpdateSet{UpToDate: true}}
}

// Current returns the latest published UpdateSet. Non-blocking with
// respect to publishers beyond the snapshot read.
func (s *Sink) Current() UpdateSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers an observer for future publishes.
func (s *Sink) Subscribe(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

// Publish replaces the current set atomically and returns the transition.
// Publishes are serialized so observers see transitions in order.
func (s *Sink) Publish(set UpdateSet) Transition {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	prev := s.current
	s.current = set
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	transition := TransitionNone
	switch {
	case prev.UpToDate && !set.UpToDate:
		transition = TransitionUpdatesAvailable
	case !prev.UpToDate && set.UpToDate:
		transition = TransitionUpToDate
	}

	log.Debug("published update set", "updates", set.Count(), "upToDate", set.UpToDate, "transition", int(transition))

	for _, obs := range observers {
		obs(set, transition)
	}
	return transition
}
