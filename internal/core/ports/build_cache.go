package ports

// BuildCache stores finished install payloads keyed by build input hash so
// an unchanged package is never rebuilt.
//
//go:generate mockgen -source=build_cache.go -destination=mocks/mock_build_cache.go -package=mocks
type BuildCache interface {
	// Get returns the cached payload directory for the key, or ok=false on
	// a miss. The returned directory must be treated as read-only.
	Get(key string) (payloadDir string, ok bool, err error)

	// Put stores a payload directory under the key. Concurrent puts for the
	// same key may race; the winner's payload is kept, which is harmless
	// because a key fully determines the payload content.
	Put(key, payloadDir string) error
}
