package registry

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/nvim-neorocks/lux/internal/adapters/logger" //nolint:depguard // Wired in adapter wiring
	"github.com/nvim-neorocks/lux/internal/core/ports"
)

// NodeID is the unique identifier for the manifest provider Graft node.
const NodeID graft.ID = "adapter.manifest_provider"

func init() {
	graft.Register(graft.Node[ports.ManifestProvider]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			logger.NodeID,
		},
		Run: func(ctx context.Context) (ports.ManifestProvider, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewRegistry(DefaultIndexPath(), log), nil
		},
	})
}
