package domain

import "go.trai.ch/zerr"

var (
	// ErrMalformedVersion is returned when a version string cannot be parsed.
	ErrMalformedVersion = zerr.New("malformed version")

	// ErrMalformedConstraint is returned when a constraint expression cannot be parsed.
	ErrMalformedConstraint = zerr.New("malformed constraint")

	// ErrUnknownRuntime is returned when a runtime variant name is not recognized.
	ErrUnknownRuntime = zerr.New("unknown runtime variant")

	// ErrUnsupportedBackend is returned when a build spec declares a backend
	// that is not part of the known backend set.
	ErrUnsupportedBackend = zerr.New("unsupported build backend")

	// ErrInvalidBuildSpec is returned when a build spec is missing parameters
	// required by its backend.
	ErrInvalidBuildSpec = zerr.New("invalid build spec")

	// ErrInvalidDescriptor is returned when a package descriptor is incomplete.
	ErrInvalidDescriptor = zerr.New("invalid package descriptor")

	// ErrNoSolution is returned when the resolver exhausts every candidate
	// combination without finding a consistent assignment.
	ErrNoSolution = zerr.New("no solution satisfies the requirements")

	// ErrDependencyCycle is returned when a package transitively depends on itself.
	ErrDependencyCycle = zerr.New("dependency cycle detected")

	// ErrDuplicatePackage is returned when a resolution would contain two
	// packages for the same (name, runtime variant) pair.
	ErrDuplicatePackage = zerr.New("duplicate package in resolution")

	// ErrMissingPackage is returned when a resolution edge points at a
	// (name, runtime variant) pair the resolution does not contain.
	ErrMissingPackage = zerr.New("edge target missing from resolution")

	// ErrPackageNotFound is returned when the manifest provider has no
	// published versions for a package name.
	ErrPackageNotFound = zerr.New("package not found in registry")

	// ErrProviderUnavailable is returned when the manifest provider cannot be reached.
	ErrProviderUnavailable = zerr.New("manifest provider unavailable")

	// ErrFetchFailed is returned when a source tree cannot be retrieved.
	ErrFetchFailed = zerr.New("failed to fetch source")

	// ErrFetchTimeout is returned when fetching a source tree exceeds its deadline.
	ErrFetchTimeout = zerr.New("fetch timed out")

	// ErrChecksumMismatch is returned when a fetched source's digest does not
	// match the digest declared by the descriptor. Never retried.
	ErrChecksumMismatch = zerr.New("source checksum mismatch")

	// ErrBackendFailure is returned when a build backend invocation exits non-zero.
	ErrBackendFailure = zerr.New("build backend failed")

	// ErrMissingToolchain is returned when a backend's required tool is not on PATH.
	ErrMissingToolchain = zerr.New("required toolchain not found")

	// ErrConfigureFailed is returned when backend parameters do not match the
	// fetched source tree.
	ErrConfigureFailed = zerr.New("build configuration failed")

	// ErrInstallCollision is returned when an install payload contains a path
	// already owned by a different installed package.
	ErrInstallCollision = zerr.New("install path collision")

	// ErrPermissionDenied is returned when the install tree cannot be written.
	ErrPermissionDenied = zerr.New("permission denied writing install tree")

	// ErrNotInstalled is returned when uninstalling a package that is not
	// recorded in the tree manifest.
	ErrNotInstalled = zerr.New("package not installed")

	// ErrLockfileCorrupt is returned when a lockfile cannot be decoded.
	ErrLockfileCorrupt = zerr.New("lockfile is corrupt")

	// ErrProjectNotFound is returned when no project file is found.
	ErrProjectNotFound = zerr.New("could not find lux.toml")

	// ErrProjectInvalid is returned when the project file fails validation.
	ErrProjectInvalid = zerr.New("invalid project file")

	// ErrRegistryIndexCorrupt is returned when the registry index cannot be parsed.
	ErrRegistryIndexCorrupt = zerr.New("registry index is corrupt")

	// ErrCacheReadFailed is returned when the build cache cannot be read.
	ErrCacheReadFailed = zerr.New("failed to read build cache")

	// ErrCacheWriteFailed is returned when the build cache cannot be written.
	ErrCacheWriteFailed = zerr.New("failed to write build cache")

	// ErrInstallFailed is returned when the overall install run ends with
	// failed or skipped packages.
	ErrInstallFailed = zerr.New("install finished with failures")
)
