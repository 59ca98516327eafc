package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/nvim-neorocks/lux/internal/core/ports"
)

// NodeID is the unique identifier for the build cache Graft node.
const NodeID graft.ID = "adapter.build_cache"

func init() {
	graft.Register(graft.Node[ports.BuildCache]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.BuildCache, error) {
			return NewStore(DefaultRoot()), nil
		},
	})
}
