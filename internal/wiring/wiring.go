// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "github.com/nvim-neorocks/lux/internal/adapters/cas"
	_ "github.com/nvim-neorocks/lux/internal/adapters/config"
	_ "github.com/nvim-neorocks/lux/internal/adapters/fetch"
	_ "github.com/nvim-neorocks/lux/internal/adapters/logger"
	_ "github.com/nvim-neorocks/lux/internal/adapters/registry"
	_ "github.com/nvim-neorocks/lux/internal/adapters/shell"
	_ "github.com/nvim-neorocks/lux/internal/adapters/tree"
	// Register app and engine nodes.
	_ "github.com/nvim-neorocks/lux/internal/app"
	_ "github.com/nvim-neorocks/lux/internal/engine/builder"
	_ "github.com/nvim-neorocks/lux/internal/engine/resolver"
)
