package domain

import "sort"

// LockedDependency is one recorded dependency edge of a locked package.
type LockedDependency struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint"`
}

// LockedPackage is one lockfile entry: a (name, variant) pair pinned to a
// version with its source digest and dependency edges.
type LockedPackage struct {
	Name         string             `json:"name"`
	Variant      string             `json:"variant"`
	Version      string             `json:"version"`
	Digest       string             `json:"digest,omitempty"`
	Dependencies []LockedDependency `json:"dependencies,omitempty"`
}

// Lockfile is the persisted, canonical form of a Resolution together with
// the root constraint set it was derived from.
type Lockfile struct {
	FormatVersion string `json:"format"`
	// Requirements maps package name to the root constraint expression at
	// lock time; drift from the project file marks the lockfile stale.
	Requirements map[string]string `json:"requirements"`
	Packages     []LockedPackage   `json:"packages"`
}

// LockfileFormatVersion is bumped on incompatible layout changes.
const LockfileFormatVersion = "1"

// LockfileFromResolution flattens a Resolution into canonical lockfile form:
// packages sorted by (name, variant), edges sorted by target name.
func LockfileFromResolution(res *Resolution, roots []RootRequirement) *Lockfile {
	lock := &Lockfile{
		FormatVersion: LockfileFormatVersion,
		Requirements:  make(map[string]string, len(roots)),
	}
	for _, req := range roots {
		lock.Requirements[req.Name] = req.Constraint.String()
	}

	for _, key := range res.Keys() {
		pkg, _ := res.Get(key)
		entry := LockedPackage{
			Name:    pkg.Name,
			Variant: string(pkg.Variant),
			Version: pkg.Version.String(),
		}
		if pkg.Descriptor != nil {
			entry.Digest = pkg.Descriptor.Source.Digest
		}
		for _, edge := range pkg.Edges {
			entry.Dependencies = append(entry.Dependencies, LockedDependency{
				Name:       edge.To.Name,
				Constraint: edge.Constraint.String(),
			})
		}
		sort.Slice(entry.Dependencies, func(i, j int) bool {
			return entry.Dependencies[i].Name < entry.Dependencies[j].Name
		})
		lock.Packages = append(lock.Packages, entry)
	}
	return lock
}

// Package looks up a locked entry by name and variant.
func (l *Lockfile) Package(name string, variant RuntimeVariant) (LockedPackage, bool) {
	for _, p := range l.Packages {
		if p.Name == name && p.Variant == string(variant) {
			return p, true
		}
	}
	return LockedPackage{}, false
}

// Variants returns the distinct runtime variants recorded in the lockfile.
func (l *Lockfile) Variants() []RuntimeVariant {
	seen := make(map[string]bool)
	var out []RuntimeVariant
	for _, p := range l.Packages {
		if !seen[p.Variant] {
			seen[p.Variant] = true
			out = append(out, RuntimeVariant(p.Variant))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
