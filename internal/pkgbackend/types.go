package pkgbackend

import (
	"context"
	"strings"
)

// PackageRef identifies one pending package update.
type PackageRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Arch    string `json:"arch"`
}

// ID renders the reference in the wire form "name;version;arch".
func (r PackageRef) ID() string {
	return r.Name + ";" + r.Version + ";" + r.Arch
}

// ParseID parses "name;version;arch[;origin]" into a PackageRef.
// Missing fields stay empty.
func ParseID(id string) PackageRef {
	parts := strings.SplitN(id, ";", 4)
	ref := PackageRef{Name: parts[0]}
	if len(parts) > 1 {
		ref.Version = parts[1]
	}
	if len(parts) > 2 {
		ref.Arch = parts[2]
	}
	return ref
}

// Role identifies which backend operation a progress event belongs to.
type Role string

const (
	RoleRefreshCache Role = "refresh-cache"
	RoleListUpdates  Role = "list-updates"
	RoleInstall      Role = "install"
)

// Status identifies what the backend is doing within an operation.
type Status string

const (
	StatusLoadingCache Status = "loading-cache"
	StatusDownloading  Status = "downloading"
	StatusInstalling   Status = "installing"
	StatusRunning      Status = "running"
)

// IndeterminatePercent marks a progress event with no usable percentage;
// consumers should render a pulse instead of a bar.
const IndeterminatePercent = -1

// Progress is one progress event from a backend operation.
type Progress struct {
	Role    Role
	Status  Status
	Percent int // 0-100, or IndeterminatePercent
	Package string
}

// ProgressFunc receives progress events. May be nil.
type ProgressFunc func(Progress)

// Backend is the package-management backend: metadata refresh, update
// listing, and installation. Implementations shell out to the system
// package manager; no package-management library is linked.
type Backend interface {
	Name() string
	RefreshCache(ctx context.Context) error
	ListUpdates(ctx context.Context) ([]PackageRef, error)
	InstallUpdates(ctx context.Context, refs []PackageRef, progress ProgressFunc) error
}

func report(fn ProgressFunc, p Progress) {
	if fn != nil {
		fn(p)
	}
}
