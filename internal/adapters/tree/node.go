package tree

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/nvim-neorocks/lux/internal/adapters/logger" //nolint:depguard // Wired in adapter wiring
	"github.com/nvim-neorocks/lux/internal/core/ports"
)

// NodeID is the unique identifier for the install tree Graft node.
const NodeID graft.ID = "adapter.install_tree"

func init() {
	graft.Register(graft.Node[ports.Installer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			logger.NodeID,
		},
		Run: func(ctx context.Context) (ports.Installer, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewManager(DefaultBaseDir(), log), nil
		},
	})
}
