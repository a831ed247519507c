package pkgbackend

import (
	"fmt"
	"os/exec"
)

// Detect picks a backend. name selects one explicitly ("apt", "pkcon");
// "auto" or "" probes the PATH, preferring pkcon so PackageKit policy
// applies when it is installed.
func Detect(name string) (Backend, error) {
	switch name {
	case "apt":
		return NewAptBackend(), nil
	case "pkcon":
		return NewPkconBackend(), nil
	case "", "auto":
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}

	if _, err := exec.LookPath("pkcon"); err == nil {
		return NewPkconBackend(), nil
	}
	if _, err := exec.LookPath("apt-get"); err == nil {
		return NewAptBackend(), nil
	}
	return nil, fmt.Errorf("no supported package manager found (need pkcon or apt-get)")
}
