// Package builder drives build-backend state machines over a resolution,
// installing packages in dependency order with bounded parallelism.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports"
	"go.trai.ch/zerr"
)

// PackageState tracks one package through the build pipeline.
type PackageState string

const (
	StatePending          PackageState = "Pending"
	StateFetched          PackageState = "Fetched"
	StateChecksumVerified PackageState = "ChecksumVerified"
	StateConfigured       PackageState = "Configured"
	StateBuilt            PackageState = "Built"
	StateInstalled        PackageState = "Installed"
	StateFailed           PackageState = "Failed"
	StateSkipped          PackageState = "Skipped"
)

// Options configures one build run.
type Options struct {
	// Arch selects the install tree architecture, "os-arch" form.
	// Defaults to the host.
	Arch string
	// Parallelism bounds the worker pool. Zero means NumCPU.
	Parallelism int
	// BestEffort lets independent subgraphs proceed past failures instead
	// of cancelling the run.
	BestEffort bool
	// NoCache bypasses the build cache.
	NoCache bool
}

// Builder executes the build-backend state machine for every package of a
// resolution.
type Builder struct {
	fetcher   ports.SourceFetcher
	runner    ports.Runner
	installer ports.Installer
	cache     ports.BuildCache
	logger    ports.Logger

	mu     sync.RWMutex
	states map[domain.PackageKey]PackageState
}

// New creates a Builder with the given collaborators.
func New(
	fetcher ports.SourceFetcher,
	runner ports.Runner,
	installer ports.Installer,
	cache ports.BuildCache,
	logger ports.Logger,
) *Builder {
	return &Builder{
		fetcher:   fetcher,
		runner:    runner,
		installer: installer,
		cache:     cache,
		logger:    logger,
		states:    make(map[domain.PackageKey]PackageState),
	}
}

// State returns the recorded state of a package from the last run.
func (b *Builder) State(key domain.PackageKey) PackageState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.states[key]
}

func (b *Builder) setState(key domain.PackageKey, state PackageState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[key] = state
}

// Run builds and installs every package of the resolution. A package never
// starts before all of its dependency edges are Installed; siblings within a
// layer run concurrently. The returned report enumerates every package's
// outcome; err is non-nil only for run-level failures (context cancellation,
// invalid resolution), not per-package ones.
func (b *Builder) Run(ctx context.Context, res *domain.Resolution, opts Options) (*domain.Report, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	if opts.Arch == "" {
		opts.Arch = runtime.GOOS + "-" + runtime.GOARCH
	}

	state := b.newRunState(ctx, res, opts)
	report := state.runExecutionLoop()
	report.Sort()
	return report, nil
}

type result struct {
	key      domain.PackageKey
	err      error
	failure  domain.FailureKind
	exitCode int
	cached   bool
}

type runState struct {
	b         *Builder
	res       *domain.Resolution
	opts      Options
	ctx       context.Context
	cancel    context.CancelFunc
	inDegree  map[domain.PackageKey]int
	ready     []domain.PackageKey
	active    int
	resultsCh chan result
	report    *domain.Report
	finished  map[domain.PackageKey]bool
}

func (b *Builder) newRunState(ctx context.Context, res *domain.Resolution, opts Options) *runState {
	ctx, cancel := context.WithCancel(ctx)

	// Drop states from any previous run so State never reports a package
	// outside the current resolution.
	b.mu.Lock()
	b.states = make(map[domain.PackageKey]PackageState, res.Len())
	b.mu.Unlock()

	inDegree := make(map[domain.PackageKey]int, res.Len())
	for _, key := range res.Keys() {
		pkg, _ := res.Get(key)
		inDegree[key] = len(pkg.Edges)
		b.setState(key, StatePending)
	}

	var ready []domain.PackageKey
	// Keys() is sorted, so the initial layer is scheduled deterministically.
	for _, key := range res.Keys() {
		if inDegree[key] == 0 {
			ready = append(ready, key)
		}
	}

	return &runState{
		b:         b,
		res:       res,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		inDegree:  inDegree,
		ready:     ready,
		resultsCh: make(chan result, opts.Parallelism),
		report:    &domain.Report{},
		finished:  make(map[domain.PackageKey]bool),
	}
}

func (state *runState) runExecutionLoop() *domain.Report {
	defer state.cancel()

	for !state.isDone() {
		state.schedule()

		if state.active == 0 {
			// Nothing running and nothing schedulable: remaining packages
			// are blocked or the run was cancelled.
			break
		}

		res := <-state.resultsCh
		state.handleResult(res)
	}

	state.flushUnfinished()
	return state.report
}

func (state *runState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.opts.Parallelism && state.ctx.Err() == nil {
		key := state.ready[0]
		state.ready = state.ready[1:]

		state.active++
		pkg, _ := state.res.Get(key)
		go state.buildOne(pkg)
	}
}

func (state *runState) handleResult(res result) {
	state.active--
	state.finished[res.key] = true

	if res.err == nil {
		state.b.setState(res.key, StateInstalled)
		state.report.Add(domain.ReportEntry{
			Package: res.key,
			Status:  domain.StatusInstalled,
			Cached:  res.cached,
		})
		for _, dependent := range state.res.Dependents(res.key) {
			state.inDegree[dependent]--
			if state.inDegree[dependent] == 0 {
				state.ready = append(state.ready, dependent)
			}
		}
		return
	}

	state.b.setState(res.key, StateFailed)
	state.b.logger.Error(res.err, "package", res.key.String())
	state.report.Add(domain.ReportEntry{
		Package:  res.key,
		Status:   domain.StatusFailed,
		Failure:  res.failure,
		ExitCode: res.exitCode,
		Err:      res.err,
	})
	state.skipDependents(res.key)

	if !state.opts.BestEffort {
		// Fail fast: in-flight workers are cancelled, nothing new starts.
		state.cancel()
		state.ready = nil
	}
}

// skipDependents marks every transitive dependent of key as Skipped without
// attempting its build.
func (state *runState) skipDependents(key domain.PackageKey) {
	queue := state.res.Dependents(key)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if state.finished[current] {
			continue
		}
		state.finished[current] = true
		state.b.setState(current, StateSkipped)
		state.report.Add(domain.ReportEntry{
			Package:   current,
			Status:    domain.StatusSkipped,
			BlockedBy: key.Name,
		})
		queue = append(queue, state.res.Dependents(current)...)
	}
}

// flushUnfinished records packages that never ran, either because the run
// was cancelled or because an upstream failure starved them.
func (state *runState) flushUnfinished() {
	for state.active > 0 {
		res := <-state.resultsCh
		state.active--
		state.finished[res.key] = true
		// Late results after cancellation are recorded as-is.
		if res.err == nil {
			state.b.setState(res.key, StateInstalled)
			state.report.Add(domain.ReportEntry{Package: res.key, Status: domain.StatusInstalled, Cached: res.cached})
		} else {
			state.b.setState(res.key, StateFailed)
			state.report.Add(domain.ReportEntry{Package: res.key, Status: domain.StatusFailed, Failure: res.failure, Err: res.err})
			state.skipDependents(res.key)
		}
	}

	for _, key := range state.res.Keys() {
		if state.finished[key] {
			continue
		}
		state.b.setState(key, StateSkipped)
		state.report.Add(domain.ReportEntry{
			Package: key,
			Status:  domain.StatusSkipped,
			Failure: domain.FailCancelled,
		})
	}
}

// buildOne walks one package through Fetched → ChecksumVerified →
// Configured → Built → Installed, reporting the terminal outcome.
func (state *runState) buildOne(pkg *domain.ResolvedPackage) {
	state.resultsCh <- state.b.execute(state.ctx, pkg, state.opts)
}

func (b *Builder) execute(ctx context.Context, pkg *domain.ResolvedPackage, opts Options) result {
	key := pkg.Key()
	target := domain.Target{Runtime: pkg.Variant, Arch: opts.Arch}

	if pkg.Descriptor == nil {
		return result{key: key, err: zerr.With(domain.ErrInvalidDescriptor, "package", key.String()), failure: domain.FailConfigure}
	}
	desc := pkg.Descriptor

	cacheKey := buildCacheKey(desc, target)
	if !opts.NoCache {
		if payloadDir, ok, err := b.cache.Get(cacheKey); err == nil && ok {
			if err := b.installer.Install(target, pkg, payloadDir); err != nil {
				return result{key: key, err: err, failure: domain.FailInstall}
			}
			b.logger.Debug("installed from build cache", "package", key.String())
			return result{key: key, cached: true}
		}
	}

	handle, err := b.fetcher.Fetch(ctx, desc.Source)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result{key: key, err: err, failure: domain.FailCancelled}
		}
		return result{key: key, err: err, failure: domain.FailFetch}
	}
	b.setState(key, StateFetched)

	// A digest mismatch is terminal: a tampered source must never be
	// silently re-fetched and accepted.
	if desc.Source.Digest != "" && handle.Digest != desc.Source.Digest {
		err := zerr.With(
			zerr.With(zerr.With(domain.ErrChecksumMismatch, "package", key.String()), "want", desc.Source.Digest),
			"got", handle.Digest,
		)
		return result{key: key, err: err, failure: domain.FailChecksumMismatch}
	}
	b.setState(key, StateChecksumVerified)

	bc := backendContext{
		pkg:       pkg,
		desc:      desc,
		target:    target,
		sourceDir: handle.Dir,
		runner:    b.runner,
	}
	if err := bc.configure(); err != nil {
		return result{key: key, err: err, failure: failureFor(err)}
	}
	b.setState(key, StateConfigured)

	payloadDir, err := os.MkdirTemp("", "lux-payload-*")
	if err != nil {
		return result{key: key, err: zerr.Wrap(err, "failed to create payload dir"), failure: domain.FailBackend}
	}
	defer os.RemoveAll(payloadDir)
	bc.payloadDir = payloadDir

	if err := bc.build(ctx); err != nil {
		return result{key: key, err: err, failure: failureFor(err), exitCode: exitCodeOf(err)}
	}
	b.setState(key, StateBuilt)

	if !opts.NoCache {
		if err := b.cache.Put(cacheKey, payloadDir); err != nil {
			// A cache write failure degrades to a rebuild next time.
			b.logger.Warn("failed to populate build cache", "package", key.String(), "error", err.Error())
		}
	}

	if err := b.installer.Install(target, pkg, payloadDir); err != nil {
		return result{key: key, err: err, failure: domain.FailInstall}
	}
	b.logger.Info("installed", "package", key.String(), "version", pkg.Version.String())
	return result{key: key}
}

func failureFor(err error) domain.FailureKind {
	switch {
	case errors.Is(err, domain.ErrUnsupportedBackend):
		return domain.FailUnsupportedBackend
	case errors.Is(err, domain.ErrMissingToolchain):
		return domain.FailMissingToolchain
	case errors.Is(err, domain.ErrConfigureFailed), errors.Is(err, domain.ErrInvalidBuildSpec):
		return domain.FailConfigure
	case errors.Is(err, context.Canceled):
		return domain.FailCancelled
	default:
		return domain.FailBackend
	}
}

func exitCodeOf(err error) int {
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	return 0
}

// buildCacheKey hashes everything that determines a payload's content.
func buildCacheKey(desc *domain.PackageDescriptor, target domain.Target) string {
	h := xxhash.New()
	for _, part := range []string{
		desc.Name,
		desc.Version.String(),
		string(target.Runtime),
		target.Arch,
		desc.Source.Digest,
		string(desc.Build.Kind),
	} {
		_, _ = h.WriteString(part)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
