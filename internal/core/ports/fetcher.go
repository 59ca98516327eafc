package ports

import (
	"context"

	"github.com/nvim-neorocks/lux/internal/core/domain"
)

// SourceHandle is a checksum-verifiable local source tree.
type SourceHandle struct {
	// Dir is the extracted source tree root.
	Dir string
	// Digest is the sha256 of the fetched archive, "sha256:<hex>".
	Digest string
}

// SourceFetcher retrieves source trees by location.
//
//go:generate mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type SourceFetcher interface {
	// Fetch downloads and extracts the archive at the given location.
	// Network failures are retried a bounded number of times with backoff
	// before surfacing as domain.ErrFetchFailed or domain.ErrFetchTimeout.
	// Fetch verifies nothing against declared digests; that is the
	// dispatcher's checksum step.
	Fetch(ctx context.Context, source domain.SourceLocation) (SourceHandle, error)
}
