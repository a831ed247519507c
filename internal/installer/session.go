package installer

import (
	"context"
	"fmt"

	"github.com/pitools/updaterd/internal/logging"
	"github.com/pitools/updaterd/internal/pkgbackend"
)

var log = logging.L("installer")

// Phase is the install session's stage.
type Phase int32

const (
	PhasePending Phase = iota
	PhaseRefreshingCache
	PhaseComparingVersions
	PhaseInstalling
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseRefreshingCache:
		return "refreshing-cache"
	case PhaseComparingVersions:
		return "comparing-versions"
	case PhaseInstalling:
		return "installing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Reporter receives user-facing progress. percent is 0-100, or
// pkgbackend.IndeterminatePercent for a pulse.
type Reporter interface {
	Progress(text string, percent int)
}

// Session drives one privileged install: refresh the cache, compare
// versions, filter, install whatever remains. One session per process;
// the installer binary exits when Run returns.
type Session struct {
	backend  pkgbackend.Backend
	policy   pkgbackend.ArchPolicy
	reporter Reporter
	phase    Phase
	consumed bool
}

func NewSession(backend pkgbackend.Backend, policy pkgbackend.ArchPolicy, reporter Reporter) *Session {
	return &Session{
		backend:  backend,
		policy:   policy,
		reporter: reporter,
	}
}

// Phase returns the session's current stage.
func (s *Session) Phase() Phase {
	return s.phase
}

// Run executes the install sequence. Any backend error ends the session;
// there is no retry, the user must re-initiate.
func (s *Session) Run(ctx context.Context) error {
	if s.consumed {
		return fmt.Errorf("install session already consumed")
	}
	s.consumed = true

	s.phase = PhaseRefreshingCache
	s.report("Updating package data - please wait...", pkgbackend.IndeterminatePercent)
	if err := s.backend.RefreshCache(ctx); err != nil {
		return s.fail("updating cache", err)
	}

	s.phase = PhaseComparingVersions
	s.report("Comparing versions - please wait...", pkgbackend.IndeterminatePercent)
	refs, err := s.backend.ListUpdates(ctx)
	if err != nil {
		return s.fail("comparing versions", err)
	}

	refs = s.policy.Apply(refs)
	if len(refs) == 0 {
		s.phase = PhaseDone
		s.report("System is up to date", pkgbackend.IndeterminatePercent)
		return nil
	}

	log.Info("installing updates", "count", len(refs))
	s.phase = PhaseInstalling
	s.report("Installing updates - please wait...", pkgbackend.IndeterminatePercent)
	if err := s.backend.InstallUpdates(ctx, refs, s.onProgress); err != nil {
		return s.fail("installing packages", err)
	}

	s.phase = PhaseDone
	s.report("System is up to date", pkgbackend.IndeterminatePercent)
	return nil
}

func (s *Session) onProgress(p pkgbackend.Progress) {
	switch p.Status {
	case pkgbackend.StatusDownloading:
		s.report("Downloading packages - please wait...", p.Percent)
	case pkgbackend.StatusInstalling:
		if p.Package != "" {
			s.report(fmt.Sprintf("Installing %s - please wait...", p.Package), p.Percent)
		} else {
			s.report("Installing packages - please wait...", p.Percent)
		}
	case pkgbackend.StatusLoadingCache:
		s.report("Updating package data - please wait...", p.Percent)
	default:
		s.report("Installing updates - please wait...", pkgbackend.IndeterminatePercent)
	}
}

func (s *Session) report(text string, percent int) {
	if s.reporter != nil {
		s.reporter.Progress(text, percent)
	}
}

func (s *Session) fail(doing string, err error) error {
	s.phase = PhaseFailed
	wrapped := fmt.Errorf("error %s - %w", doing, err)
	s.report(wrapped.Error(), pkgbackend.IndeterminatePercent)
	log.Error("install session failed", "stage", doing, "error", err)
	return wrapped
}
