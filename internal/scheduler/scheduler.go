package scheduler

import (
	"sync"
	"time"

	"github.com/pitools/updaterd/internal/logging"
)

var log = logging.L("scheduler")

// NetworkGate is the slice of the availability gate the scheduler needs
// for its startup network poll.
type NetworkGate interface {
	Network() bool
}

// State is the scheduler's observable mode.
type State int32

const (
	StateIdle State = iota
	StateWaitingForNetwork
	StatePeriodic
	StateDisabled
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateWaitingForNetwork:
		return "waiting-for-network"
	case StatePeriodic:
		return "periodic"
	case StateDisabled:
		return "disabled"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Scheduler owns the periodic check timer. At startup it runs one check
// immediately, or polls for network first when the host is offline. The
// run callback is expected to enforce single-flight itself, so a forced
// check during a periodic one is simply dropped.
type Scheduler struct {
	run         func()
	gate        NetworkGate
	networkPoll time.Duration

	reconfig chan time.Duration
	kick     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu       sync.Mutex
	state    State
	next     time.Time
	interval time.Duration
}

// New creates a Scheduler. interval is the gap between periodic checks
// (0 disables periodic mode); networkPoll is the startup retry gap while
// the host has no network.
func New(run func(), gate NetworkGate, interval, networkPoll time.Duration) *Scheduler {
	return &Scheduler{
		run:         run,
		gate:        gate,
		networkPoll: networkPoll,
		interval:    interval,
		reconfig:    make(chan time.Duration),
		kick:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the scheduler goroutine.
func (s *Scheduler) Start() {
	go s.loop()
}

// Stop terminates the scheduler. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// CheckNow forces an immediate check without disturbing the periodic
// schedule. Coalesced if a forced check is already pending.
func (s *Scheduler) CheckNow() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Reconfigure replaces the periodic interval. The next periodic check
// fires interval from now, not from the original arm time. Zero disables
// periodic checks until reconfigured.
func (s *Scheduler) Reconfigure(interval time.Duration) {
	select {
	case s.reconfig <- interval:
	case <-s.stop:
	}
}

// State returns the current mode.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextCheck returns when the next periodic check fires, or zero when
// periodic mode is disabled.
func (s *Scheduler) NextCheck() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) setNext(next time.Time) {
	s.mu.Lock()
	s.next = next
	s.mu.Unlock()
}

func (s *Scheduler) loop() {
	defer close(s.done)
	defer s.setState(StateStopped)

	if !s.startupCheck() {
		return
	}

	s.mu.Lock()
	interval := s.interval
	s.mu.Unlock()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	arm := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if interval > 0 {
			timer.Reset(interval)
			s.setNext(time.Now().Add(interval))
			s.setState(StatePeriodic)
		} else {
			s.setNext(time.Time{})
			s.setState(StateDisabled)
		}
	}
	arm()

	for {
		select {
		case <-timer.C:
			s.run()
			timer.Reset(interval)
			s.setNext(time.Now().Add(interval))

		case interval = <-s.reconfig:
			log.Info("check interval changed", "interval", interval.String())
			arm()

		case <-s.kick:
			log.Info("forced check requested")
			s.run()

		case <-s.stop:
			timer.Stop()
			return
		}
	}
}

// startupCheck runs the initial check, first polling for network when the
// host is offline. Returns false when stopped while waiting.
func (s *Scheduler) startupCheck() bool {
	if !s.gate.Network() {
		log.Info("no network connection, polling", "every", s.networkPoll.String())
		s.setState(StateWaitingForNetwork)

		poll := time.NewTicker(s.networkPoll)
		defer poll.Stop()

		for {
			select {
			case <-poll.C:
				if s.gate.Network() {
					s.run()
					return true
				}
				log.Debug("still no network connection")

			case <-s.kick:
				if s.gate.Network() {
					s.run()
					return true
				}

			case interval := <-s.reconfig:
				s.mu.Lock()
				s.interval = interval
				s.mu.Unlock()

			case <-s.stop:
				return false
			}
		}
	}

	s.run()
	return true
}
