package domain

import "sort"

// PackageStatus is the terminal status of one package in an install run.
type PackageStatus string

const (
	StatusInstalled PackageStatus = "Installed"
	StatusFailed    PackageStatus = "Failed"
	StatusSkipped   PackageStatus = "Skipped"
)

// FailureKind classifies why a package failed.
type FailureKind string

const (
	FailFetch              FailureKind = "FetchFailure"
	FailChecksumMismatch   FailureKind = "ChecksumMismatch"
	FailConfigure          FailureKind = "ConfigureFailure"
	FailBackend            FailureKind = "BackendFailure"
	FailUnsupportedBackend FailureKind = "UnsupportedBackend"
	FailMissingToolchain   FailureKind = "MissingToolchain"
	FailInstall            FailureKind = "InstallFailure"
	FailCancelled          FailureKind = "Cancelled"
)

// ReportEntry is the outcome for one package.
type ReportEntry struct {
	Package PackageKey
	Status  PackageStatus
	// Failure is set when Status is Failed.
	Failure FailureKind
	// ExitCode is set for BackendFailure entries.
	ExitCode int
	// BlockedBy names the failed dependency when Status is Skipped.
	BlockedBy string
	// Cached marks packages whose build was served from the build cache.
	Cached bool
	Err    error
}

// Report enumerates the outcome of every package in an install run.
type Report struct {
	Entries []ReportEntry
}

// Add appends an entry.
func (r *Report) Add(entry ReportEntry) {
	r.Entries = append(r.Entries, entry)
}

// Sort orders entries by (name, variant) so reports are stable.
func (r *Report) Sort() {
	sort.Slice(r.Entries, func(i, j int) bool {
		a, b := r.Entries[i].Package, r.Entries[j].Package
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Variant < b.Variant
	})
}

// Success reports whether no package failed or was skipped.
func (r *Report) Success() bool {
	for _, e := range r.Entries {
		if e.Status != StatusInstalled {
			return false
		}
	}
	return true
}

// Failed returns the entries with a Failed status.
func (r *Report) Failed() []ReportEntry {
	var out []ReportEntry
	for _, e := range r.Entries {
		if e.Status == StatusFailed {
			out = append(out, e)
		}
	}
	return out
}

// Skipped returns the entries with a Skipped status.
func (r *Report) Skipped() []ReportEntry {
	var out []ReportEntry
	for _, e := range r.Entries {
		if e.Status == StatusSkipped {
			out = append(out, e)
		}
	}
	return out
}
