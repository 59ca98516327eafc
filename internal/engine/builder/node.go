package builder

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/nvim-neorocks/lux/internal/adapters/cas"    //nolint:depguard // Wired in engine wiring
	"github.com/nvim-neorocks/lux/internal/adapters/fetch"  //nolint:depguard // Wired in engine wiring
	"github.com/nvim-neorocks/lux/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"github.com/nvim-neorocks/lux/internal/adapters/shell"  //nolint:depguard // Wired in engine wiring
	"github.com/nvim-neorocks/lux/internal/adapters/tree"   //nolint:depguard // Wired in engine wiring
	"github.com/nvim-neorocks/lux/internal/core/ports"
)

// NodeID is the unique identifier for the builder Graft node.
const NodeID graft.ID = "engine.builder"

func init() {
	graft.Register(graft.Node[*Builder]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			fetch.NodeID,
			shell.NodeID,
			tree.NodeID,
			cas.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Builder, error) {
			fetcher, err := graft.Dep[ports.SourceFetcher](ctx)
			if err != nil {
				return nil, err
			}

			runner, err := graft.Dep[ports.Runner](ctx)
			if err != nil {
				return nil, err
			}

			installer, err := graft.Dep[ports.Installer](ctx)
			if err != nil {
				return nil, err
			}

			cache, err := graft.Dep[ports.BuildCache](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return New(fetcher, runner, installer, cache, log), nil
		},
	})
}
