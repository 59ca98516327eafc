package ports

import (
	"context"
	"io"
)

// Invocation describes one external process run by a build backend.
type Invocation struct {
	// Path is the program to run; resolved against PATH when relative.
	Path string
	Args []string
	Dir  string
	// Env entries in "KEY=VALUE" form, merged over the allow-listed system
	// environment.
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Runner executes external build-tool processes.
//
//go:generate mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks
type Runner interface {
	// Run executes the invocation and waits for it. A non-zero exit status
	// is returned as domain.ErrBackendFailure carrying the exit code.
	// Cancelling the context terminates the process.
	Run(ctx context.Context, inv Invocation) error

	// Look resolves a tool name against PATH. It returns
	// domain.ErrMissingToolchain when the tool is absent.
	Look(name string) (string, error)
}
