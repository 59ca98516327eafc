package domain

import "go.trai.ch/zerr"

// SourceLocation points at a package's source archive.
type SourceLocation struct {
	// URL is an https:// or file:// location of a .tar.gz archive.
	URL string
	// Ref is an optional revision qualifier (git tag or commit).
	Ref string
	// Digest is the expected sha256 of the archive, "sha256:<hex>".
	Digest string
}

// Dependency is a version constraint on another package, plus an optionality
// flag and an activation condition.
type Dependency struct {
	Name       string
	Constraint Constraint
	// Optional dependencies are not resolved unless the project requires
	// them directly; they never appear in a resolution or lockfile.
	Optional bool
	// OnlyFor restricts the dependency to the listed runtime variants.
	// Empty means the dependency is active for every variant.
	OnlyFor []RuntimeVariant
}

// ActiveFor reports whether the dependency applies when resolving for the
// given runtime variant.
func (d Dependency) ActiveFor(variant RuntimeVariant) bool {
	if len(d.OnlyFor) == 0 {
		return true
	}
	for _, v := range d.OnlyFor {
		if v == variant {
			return true
		}
	}
	return false
}

// PackageDescriptor is the parsed form of a published package spec.
// Immutable once constructed; re-parse to supersede.
type PackageDescriptor struct {
	Name         string
	Version      Version
	Dependencies []Dependency
	// Runtimes lists the compatible runtime variants. Empty means the
	// package works on every variant.
	Runtimes []RuntimeVariant
	Source   SourceLocation
	Build    BuildSpec
}

// SupportsRuntime reports whether the descriptor declares compatibility with
// the given variant.
func (d *PackageDescriptor) SupportsRuntime(variant RuntimeVariant) bool {
	if len(d.Runtimes) == 0 {
		return true
	}
	for _, v := range d.Runtimes {
		if v == variant {
			return true
		}
	}
	return false
}

// Validate checks the descriptor for structural completeness.
func (d *PackageDescriptor) Validate() error {
	if d.Name == "" {
		return zerr.With(ErrInvalidDescriptor, "reason", "missing name")
	}
	if d.Version.IsZero() {
		return zerr.With(zerr.With(ErrInvalidDescriptor, "package", d.Name), "reason", "missing version")
	}
	if d.Source.URL == "" {
		return zerr.With(zerr.With(ErrInvalidDescriptor, "package", d.Name), "reason", "missing source url")
	}
	if err := d.Build.Validate(); err != nil {
		return zerr.With(err, "package", d.Name)
	}
	for _, dep := range d.Dependencies {
		if dep.Name == "" {
			return zerr.With(zerr.With(ErrInvalidDescriptor, "package", d.Name), "reason", "dependency without a name")
		}
		if dep.Name == d.Name {
			return zerr.With(ErrDependencyCycle, "cycle", d.Name+" -> "+d.Name)
		}
	}
	return nil
}

// RootRequirement is one of the project's direct dependency constraints.
type RootRequirement struct {
	Name       string
	Constraint Constraint
}
