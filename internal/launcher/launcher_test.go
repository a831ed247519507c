package launcher

import (
	"errors"
	"strings"
	"testing"
)

type fakeGate struct {
	network bool
	clock   bool
}

func (g *fakeGate) Network() bool     { return g.network }
func (g *fakeGate) ClockSynced() bool { return g.clock }

type spawnRecorder struct {
	argv [][]string
	env  [][]string
	err  error
}

func (r *spawnRecorder) spawn(argv []string, env []string) error {
	r.argv = append(r.argv, argv)
	r.env = append(r.env, env)
	return r.err
}

func newTestLauncher(g Gate) (*Launcher, *spawnRecorder) {
	l := New(g, "/usr/bin/updaterd-install", "/usr/lib/updaterd/askpass.sh")
	rec := &spawnRecorder{}
	l.spawn = rec.spawn
	return l, rec
}

func TestRequestInstallWithoutNetwork(t *testing.T) {
	l, rec := newTestLauncher(&fakeGate{network: false, clock: true})

	if err := l.RequestInstall(); !errors.Is(err, ErrNoNetwork) {
		t.Fatalf("expected ErrNoNetwork, got %v", err)
	}
	if len(rec.argv) != 0 {
		t.Fatal("no subprocess should be spawned without network")
	}
}

func TestRequestInstallWithUnsyncedClock(t *testing.T) {
	l, rec := newTestLauncher(&fakeGate{network: true, clock: false})

	if err := l.RequestInstall(); !errors.Is(err, ErrClockNotSynced) {
		t.Fatalf("expected ErrClockNotSynced, got %v", err)
	}
	if len(rec.argv) != 0 {
		t.Fatal("no subprocess should be spawned with an unsynced clock")
	}
}

func TestRequestInstallSpawnsExactlyOnce(t *testing.T) {
	l, rec := newTestLauncher(&fakeGate{network: true, clock: true})

	if err := l.RequestInstall(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rec.argv) != 1 {
		t.Fatalf("expected exactly one spawn, got %d", len(rec.argv))
	}
	argv := rec.argv[0]
	if argv[0] != "sudo" || argv[1] != "-A" || argv[2] != "/usr/bin/updaterd-install" {
		t.Fatalf("unexpected argv: %v", argv)
	}

	foundAskpass := false
	for _, kv := range rec.env[0] {
		if kv == "SUDO_ASKPASS=/usr/lib/updaterd/askpass.sh" {
			foundAskpass = true
		}
	}
	if !foundAskpass {
		t.Fatal("SUDO_ASKPASS should be set in the installer environment")
	}
}

func TestRequestInstallWrapsSpawnError(t *testing.T) {
	l, rec := newTestLauncher(&fakeGate{network: true, clock: true})
	rec.err = errors.New("fork failed")

	err := l.RequestInstall()
	if err == nil || !strings.Contains(err.Error(), "fork failed") {
		t.Fatalf("expected wrapped spawn error, got %v", err)
	}
}
