package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/pitools/updaterd/internal/logging"
)

var log = logging.L("launcher")

var (
	// ErrNoNetwork is user-facing: installs need a network connection.
	ErrNoNetwork = errors.New("no network connection - cannot install updates")

	// ErrClockNotSynced is user-facing: package signature checks fail
	// with a wildly wrong clock, so installs wait for time sync.
	ErrClockNotSynced = errors.New("clock not synchronised - cannot install updates, try again in a few minutes")
)

// Gate is the pair of preconditions revalidated before any install.
type Gate interface {
	Network() bool
	ClockSynced() bool
}

// Launcher spawns the privileged one-shot installer. Elevation is scoped
// to that subprocess alone; the daemon itself never installs anything.
type Launcher struct {
	gate          Gate
	installerPath string
	askpassPath   string
	spawn         func(argv []string, env []string) error
}

func New(gate Gate, installerPath, askpassPath string) *Launcher {
	l := &Launcher{
		gate:          gate,
		installerPath: installerPath,
		askpassPath:   askpassPath,
	}
	l.spawn = l.spawnProcess
	return l
}

// RequestInstall revalidates both gate conditions and, when they hold,
// spawns exactly one installer subprocess. Fire-and-forget: the exit
// status is reaped but not reported back to the caller.
func (l *Launcher) RequestInstall() error {
	if !l.gate.Network() {
		return ErrNoNetwork
	}
	if !l.gate.ClockSynced() {
		return ErrClockNotSynced
	}

	env := append(os.Environ(), "SUDO_ASKPASS="+l.askpassPath)
	argv := []string{"sudo", "-A", l.installerPath}

	if err := l.spawn(argv, env); err != nil {
		return fmt.Errorf("launching installer: %w", err)
	}

	log.Info("installer launched", "path", l.installerPath)
	return nil
}

func (l *Launcher) spawnProcess(argv []string, env []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env

	if err := cmd.Start(); err != nil {
		return err
	}

	// Reap the child so it does not linger as a zombie.
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Warn("installer exited with error", "error", err)
		}
	}()
	return nil
}
