package pkgbackend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	debver "github.com/knqyf263/go-deb-version"

	"github.com/pitools/updaterd/internal/logging"
)

var aptLog = logging.L("apt")

// AptBackend drives apt-get. Cache refresh and installs require root.
type AptBackend struct{}

func NewAptBackend() *AptBackend {
	return &AptBackend{}
}

func (a *AptBackend) Name() string {
	return "apt"
}

func (a *AptBackend) RefreshCache(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "apt-get", "update", "-q")
	cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("apt-get update failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// ListUpdates runs a simulated dist-upgrade and parses the "Inst" lines.
func (a *AptBackend) ListUpdates(ctx context.Context) ([]PackageRef, error) {
	cmd := exec.CommandContext(ctx, "apt-get", "-s", "-q", "dist-upgrade")
	cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("apt-get dist-upgrade simulation failed: %w", err)
	}

	return parseSimulatedUpgrade(output), nil
}

// parseSimulatedUpgrade extracts package refs from lines of the form
//
//	Inst base-files [12.4] (12.4+deb12u5 Debian:12.5/stable [amd64])
func parseSimulatedUpgrade(output []byte) []PackageRef {
	refs := []PackageRef{}

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Inst ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		name := fields[1]

		current := ""
		rest := fields[2:]
		if strings.HasPrefix(rest[0], "[") {
			current = strings.Trim(rest[0], "[]")
			rest = rest[1:]
		}

		if len(rest) == 0 || !strings.HasPrefix(rest[0], "(") {
			continue
		}
		candidate := strings.TrimPrefix(rest[0], "(")

		arch := ""
		last := rest[len(rest)-1]
		last = strings.TrimSuffix(strings.TrimSuffix(last, ")"), "]")
		if idx := strings.LastIndex(last, "["); idx >= 0 {
			arch = last[idx+1:]
		}

		if current != "" && !isUpgrade(current, candidate) {
			aptLog.Debug("skipping non-upgrade entry", "package", name, "current", current, "candidate", candidate)
			continue
		}

		refs = append(refs, PackageRef{Name: name, Version: candidate, Arch: arch})
	}

	return refs
}

// isUpgrade reports whether candidate is strictly newer than current under
// Debian version ordering. Unparseable versions are treated as upgrades so
// a malformed index entry is surfaced rather than silently dropped.
func isUpgrade(current, candidate string) bool {
	cur, err := debver.NewVersion(current)
	if err != nil {
		return true
	}
	cand, err := debver.NewVersion(candidate)
	if err != nil {
		return true
	}
	return cand.GreaterThan(cur)
}

func (a *AptBackend) InstallUpdates(ctx context.Context, refs []PackageRef, progress ProgressFunc) error {
	args := []string{"-y", "-o", "APT::Status-Fd=3"}
	if len(refs) == 0 {
		args = append(args, "dist-upgrade")
	} else {
		args = append(args, "--only-upgrade", "install")
		for _, ref := range refs {
			args = append(args, ref.Name)
		}
	}

	cmd := exec.CommandContext(ctx, "apt-get", args...)
	cmd.Env = append(os.Environ(), "DEBIAN_FRONTEND=noninteractive")

	statusR, statusW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("status pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{statusW} // becomes fd 3 in the child

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	if err := cmd.Start(); err != nil {
		statusR.Close()
		statusW.Close()
		return fmt.Errorf("apt-get start: %w", err)
	}
	statusW.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(statusR)
		for scanner.Scan() {
			if p, ok := parseAptStatusLine(scanner.Text()); ok {
				report(progress, p)
			}
		}
	}()

	runErr := cmd.Wait()
	statusR.Close()
	<-done

	if runErr != nil {
		return fmt.Errorf("apt-get install failed: %w: %s", runErr, strings.TrimSpace(combined.String()))
	}
	return nil
}

// parseAptStatusLine decodes APT::Status-Fd lines:
//
//	dlstatus:1:23.4567:Retrieving file 1 of 10
//	pmstatus:base-files:4.6:Installing base-files
func parseAptStatusLine(line string) (Progress, bool) {
	parts := strings.SplitN(strings.TrimSpace(line), ":", 4)
	if len(parts) < 3 {
		return Progress{}, false
	}

	percent := IndeterminatePercent
	if f, err := strconv.ParseFloat(parts[2], 64); err == nil {
		percent = int(f)
	}

	switch parts[0] {
	case "dlstatus":
		return Progress{Role: RoleInstall, Status: StatusDownloading, Percent: percent}, true
	case "pmstatus":
		return Progress{Role: RoleInstall, Status: StatusInstalling, Percent: percent, Package: parts[1]}, true
	default:
		return Progress{}, false
	}
}
