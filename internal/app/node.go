package app

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/nvim-neorocks/lux/internal/adapters/config"   //nolint:depguard // Wired in app layer
	"github.com/nvim-neorocks/lux/internal/adapters/fetch"    //nolint:depguard // Wired in app layer
	"github.com/nvim-neorocks/lux/internal/adapters/logger"   //nolint:depguard // Wired in app layer
	"github.com/nvim-neorocks/lux/internal/adapters/registry" //nolint:depguard // Wired in app layer
	"github.com/nvim-neorocks/lux/internal/adapters/tree"     //nolint:depguard // Wired in app layer
	"github.com/nvim-neorocks/lux/internal/core/ports"
	"github.com/nvim-neorocks/lux/internal/engine/builder"
	"github.com/nvim-neorocks/lux/internal/engine/resolver"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components bundles the App with the collaborators commands need directly.
type Components struct {
	App       *App
	Logger    ports.Logger
	Loader    ports.ProjectLoader
	Installer ports.Installer
}

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			registry.NodeID,
			fetch.NodeID,
			tree.NodeID,
			resolver.NodeID,
			builder.NodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ProjectLoader](ctx)
	if err != nil {
		return nil, err
	}

	provider, err := graft.Dep[ports.ManifestProvider](ctx)
	if err != nil {
		return nil, err
	}

	res, err := graft.Dep[*resolver.Resolver](ctx)
	if err != nil {
		return nil, err
	}

	bld, err := graft.Dep[*builder.Builder](ctx)
	if err != nil {
		return nil, err
	}

	fetcher, err := graft.Dep[ports.SourceFetcher](ctx)
	if err != nil {
		return nil, err
	}

	installer, err := graft.Dep[ports.Installer](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, provider, res, bld, fetcher, installer, log), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	mainApp, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	loader, err := graft.Dep[ports.ProjectLoader](ctx)
	if err != nil {
		return nil, err
	}

	installer, err := graft.Dep[ports.Installer](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:       mainApp,
		Logger:    log,
		Loader:    loader,
		Installer: installer,
	}, nil
}
