package installer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pitools/updaterd/internal/pkgbackend"
)

type scriptedBackend struct {
	refreshErr error
	listErr    error
	installErr error
	updates    []pkgbackend.PackageRef
	installed  []pkgbackend.PackageRef
	progress   []pkgbackend.Progress
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) RefreshCache(ctx context.Context) error { return b.refreshErr }

func (b *scriptedBackend) ListUpdates(ctx context.Context) ([]pkgbackend.PackageRef, error) {
	return b.updates, b.listErr
}

func (b *scriptedBackend) InstallUpdates(ctx context.Context, refs []pkgbackend.PackageRef, fn pkgbackend.ProgressFunc) error {
	b.installed = refs
	for _, p := range b.progress {
		fn(p)
	}
	return b.installErr
}

type recordingReporter struct {
	lines []string
}

func (r *recordingReporter) Progress(text string, percent int) {
	r.lines = append(r.lines, text)
}

func TestRunInstallsFilteredUpdates(t *testing.T) {
	backend := &scriptedBackend{
		updates: []pkgbackend.PackageRef{
			{Name: "raspberrypi-ui-mods", Version: "1.20", Arch: "armhf"},
			{Name: "grub-amd64-signed", Version: "1.2", Arch: "amd64"},
		},
	}
	rep := &recordingReporter{}
	s := NewSession(backend, pkgbackend.ArchPolicy{Exclude: []string{"amd64"}}, rep)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Phase() != PhaseDone {
		t.Fatalf("phase = %v, want done", s.Phase())
	}
	if len(backend.installed) != 1 || backend.installed[0].Name != "raspberrypi-ui-mods" {
		t.Fatalf("installed = %v, want only raspberrypi-ui-mods", backend.installed)
	}
	last := rep.lines[len(rep.lines)-1]
	if last != "System is up to date" {
		t.Fatalf("last progress = %q", last)
	}
}

func TestRunUpToDateSkipsInstall(t *testing.T) {
	backend := &scriptedBackend{}
	rep := &recordingReporter{}
	s := NewSession(backend, pkgbackend.ArchPolicy{}, rep)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if backend.installed != nil {
		t.Fatalf("install ran with no updates pending")
	}
	for _, line := range rep.lines {
		if strings.Contains(line, "Installing") {
			t.Fatalf("unexpected install progress %q", line)
		}
	}
}

func TestRunRefreshErrorFails(t *testing.T) {
	backend := &scriptedBackend{refreshErr: errors.New("mirror unreachable")}
	s := NewSession(backend, pkgbackend.ArchPolicy{}, &recordingReporter{})

	err := s.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "error updating cache") {
		t.Fatalf("err = %v, want updating cache failure", err)
	}
	if s.Phase() != PhaseFailed {
		t.Fatalf("phase = %v, want failed", s.Phase())
	}
}

func TestRunInstallErrorFails(t *testing.T) {
	backend := &scriptedBackend{
		updates:    []pkgbackend.PackageRef{{Name: "vlc", Version: "3.0", Arch: "armhf"}},
		installErr: errors.New("dpkg interrupted"),
	}
	s := NewSession(backend, pkgbackend.ArchPolicy{}, &recordingReporter{})

	err := s.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "error installing packages") {
		t.Fatalf("err = %v, want install failure", err)
	}
	if s.Phase() != PhaseFailed {
		t.Fatalf("phase = %v, want failed", s.Phase())
	}
}

func TestRunIsSingleUse(t *testing.T) {
	s := NewSession(&scriptedBackend{}, pkgbackend.ArchPolicy{}, &recordingReporter{})
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("second Run succeeded, want consumed error")
	}
}

func TestProgressTranslation(t *testing.T) {
	backend := &scriptedBackend{
		updates: []pkgbackend.PackageRef{{Name: "chromium", Version: "120", Arch: "armhf"}},
		progress: []pkgbackend.Progress{
			{Role: pkgbackend.RoleInstall, Status: pkgbackend.StatusDownloading, Percent: 40},
			{Role: pkgbackend.RoleInstall, Status: pkgbackend.StatusInstalling, Percent: 80, Package: "chromium"},
		},
	}
	rep := &recordingReporter{}
	s := NewSession(backend, pkgbackend.ArchPolicy{}, rep)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	joined := strings.Join(rep.lines, "\n")
	if !strings.Contains(joined, "Downloading packages") {
		t.Errorf("missing download progress in %q", joined)
	}
	if !strings.Contains(joined, "Installing chromium") {
		t.Errorf("missing per-package install progress in %q", joined)
	}
}

func TestConsoleReporterCollapsesDuplicates(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)
	r.Progress("Downloading packages - please wait...", 10)
	r.Progress("Downloading packages - please wait...", 10)
	r.Progress("Downloading packages - please wait...", 20)
	r.Progress("System is up to date", pkgbackend.IndeterminatePercent)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "[ 10%]") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[2] != "System is up to date" {
		t.Errorf("line 2 = %q", lines[2])
	}
}
