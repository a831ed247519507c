package pkgbackend

import "strings"

// ArchPolicy drops updates whose architecture matches an excluded
// identifier. Some mirrors leak foreign-architecture package entries into
// repository indexes; installing those would fail, so they are suppressed
// before the update set is built.
type ArchPolicy struct {
	Exclude []string
}

// DefaultPolicy derives the filter policy from the kernel architecture.
// ARM-class hosts keep everything; x86-class hosts drop amd64 entries,
// which only appear there as foreign-arch mirror noise. An explicit
// exclude list from configuration always wins over the derived default.
func DefaultPolicy(kernelArch string, configured []string) ArchPolicy {
	if len(configured) > 0 {
		return ArchPolicy{Exclude: configured}
	}
	arch := strings.ToLower(kernelArch)
	if strings.HasPrefix(arch, "arm") || strings.HasPrefix(arch, "aarch64") {
		return ArchPolicy{}
	}
	return ArchPolicy{Exclude: []string{"amd64"}}
}

// Apply returns the refs that survive the policy. The input is not
// modified; with an empty exclude list the input slice is returned as-is.
func (p ArchPolicy) Apply(refs []PackageRef) []PackageRef {
	if len(p.Exclude) == 0 {
		return refs
	}

	kept := make([]PackageRef, 0, len(refs))
	for _, ref := range refs {
		if !p.excluded(ref.Arch) {
			kept = append(kept, ref)
		}
	}
	return kept
}

func (p ArchPolicy) excluded(arch string) bool {
	for _, ex := range p.Exclude {
		if strings.Contains(arch, ex) {
			return true
		}
	}
	return false
}
