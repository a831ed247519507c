package pkgbackend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// PkconBackend drives PackageKit through its console frontend, so the
// daemon talks to whatever native backend PackageKit is configured with.
type PkconBackend struct{}

func NewPkconBackend() *PkconBackend {
	return &PkconBackend{}
}

func (p *PkconBackend) Name() string {
	return "pkcon"
}

func (p *PkconBackend) RefreshCache(ctx context.Context) error {
	output, err := exec.CommandContext(ctx, "pkcon", "--plain", "refresh", "force").CombinedOutput()
	if err != nil {
		return fmt.Errorf("pkcon refresh failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (p *PkconBackend) ListUpdates(ctx context.Context) ([]PackageRef, error) {
	output, err := exec.CommandContext(ctx, "pkcon", "--plain", "get-updates").Output()
	if err != nil {
		// pkcon exits 5 when there is nothing to do.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 5 {
			return []PackageRef{}, nil
		}
		return nil, fmt.Errorf("pkcon get-updates failed: %w", err)
	}

	return parsePkconUpdates(output), nil
}

// parsePkconUpdates extracts refs from plain-mode listing lines:
//
//	Security    curl-8.5.0-1.aarch64    command line tool for transfers
//
// The second field is name-version.arch in RPM-style form, or a full
// PackageKit id "name;version;arch;repo" on backends that print ids.
func parsePkconUpdates(output []byte) []PackageRef {
	refs := []PackageRef{}

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "Transaction") || strings.HasPrefix(line, "Status") || strings.HasPrefix(line, "Results") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		id := fields[1]

		var ref PackageRef
		if strings.Contains(id, ";") {
			ref = ParseID(id)
		} else {
			ref = splitNameVersionArch(id)
		}
		if ref.Name == "" {
			continue
		}
		refs = append(refs, ref)
	}

	return refs
}

// splitNameVersionArch decodes "name-version.arch", e.g.
// "curl-8.5.0-1.aarch64" -> {curl, 8.5.0-1, aarch64}.
func splitNameVersionArch(id string) PackageRef {
	arch := ""
	rest := id
	if idx := strings.LastIndex(id, "."); idx > 0 {
		arch = id[idx+1:]
		rest = id[:idx]
	}

	// The version starts at the first dash followed by a digit.
	for i := 0; i < len(rest)-1; i++ {
		if rest[i] == '-' && rest[i+1] >= '0' && rest[i+1] <= '9' {
			return PackageRef{Name: rest[:i], Version: rest[i+1:], Arch: arch}
		}
	}
	return PackageRef{Name: rest, Arch: arch}
}

func (p *PkconBackend) InstallUpdates(ctx context.Context, refs []PackageRef, progress ProgressFunc) error {
	args := []string{"--plain", "--noninteractive", "update"}
	for _, ref := range refs {
		args = append(args, ref.Name)
	}

	cmd := exec.CommandContext(ctx, "pkcon", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("pkcon stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("pkcon start: %w", err)
	}

	var tail []string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tail = append(tail, line)
		if len(tail) > 20 {
			tail = tail[1:]
		}

		if prog, ok := parsePkconProgressLine(line); ok {
			report(progress, prog)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("pkcon update failed: %w: %s", err, strings.Join(tail, " / "))
	}
	return nil
}

// parsePkconProgressLine decodes plain-mode progress lines:
//
//	Percentage:	42
//	Status:	Downloading packages
func parsePkconProgressLine(line string) (Progress, bool) {
	switch {
	case strings.HasPrefix(line, "Percentage:"):
		value := strings.TrimSpace(strings.TrimPrefix(line, "Percentage:"))
		pct, err := strconv.Atoi(value)
		if err != nil || pct > 100 {
			pct = IndeterminatePercent
		}
		return Progress{Role: RoleInstall, Status: StatusRunning, Percent: pct}, true

	case strings.HasPrefix(line, "Status:"):
		value := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "Status:")))
		status := StatusRunning
		if strings.Contains(value, "download") {
			status = StatusDownloading
		} else if strings.Contains(value, "install") || strings.Contains(value, "updat") {
			status = StatusInstalling
		} else if strings.Contains(value, "cache") {
			status = StatusLoadingCache
		}
		return Progress{Role: RoleInstall, Status: status, Percent: IndeterminatePercent}, true
	}

	return Progress{}, false
}
