package domain

import "os"

// File permissions used by adapters that persist state.
const (
	DirPerm  os.FileMode = 0o755
	FilePerm os.FileMode = 0o644
)

// Default file names recognized at a project root.
const (
	ProjectFileName  = "lux.toml"
	LockfileFileName = "lux.lock"
)

// Project is the parsed form of a lux.toml file: the root requirements and
// install settings one resolver/build run operates on.
type Project struct {
	Name string
	// Runtimes are the pinned runtime variants to resolve and install for.
	Runtimes     []RuntimeVariant
	Requirements []RootRequirement
	// Parallelism bounds the build worker pool. Zero means NumCPU.
	Parallelism int
	BestEffort  bool
}

// InstalledPackage is one entry of an install tree's local manifest.
type InstalledPackage struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Files   []string `json:"files"`
}
