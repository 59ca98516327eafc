// Package resolver implements backtracking constraint resolution over a
// manifest provider.
package resolver

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Resolver turns root requirements into a Resolution, one independent
// assignment space per pinned runtime variant.
type Resolver struct {
	provider ports.ManifestProvider
	logger   ports.Logger
}

// New creates a Resolver over the given manifest provider.
func New(provider ports.ManifestProvider, logger ports.Logger) *Resolver {
	return &Resolver{provider: provider, logger: logger}
}

// Resolve produces a Resolution for the root requirements across every
// pinned runtime variant, or a diagnosed failure. No partial Resolution is
// ever returned. Identical inputs yield identical Resolutions: candidate
// ordering and backtracking order are deterministic.
func (r *Resolver) Resolve(
	ctx context.Context,
	roots []domain.RootRequirement,
	variants []domain.RuntimeVariant,
) (*domain.Resolution, error) {
	if len(variants) == 0 {
		variants = []domain.RuntimeVariant{domain.Lua54}
	}

	r.logger.Debug("resolving", "requirements", len(roots), "runtimes", len(variants))

	cache := &candidateCache{provider: r.provider}

	// Each variant is an independent assignment space sharing the candidate
	// cache. Branches within one search run sequentially; variants may run
	// concurrently.
	results := make([]map[string]*domain.PackageDescriptor, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			s := newSearch(cache, roots, variant)
			assignment, err := s.run(gctx)
			if err != nil {
				return err
			}
			results[i] = assignment
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := domain.NewResolution()
	for i, variant := range variants {
		if err := addAssignment(res, results[i], roots, variant); err != nil {
			return nil, err
		}
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

func addAssignment(
	res *domain.Resolution,
	assignment map[string]*domain.PackageDescriptor,
	roots []domain.RootRequirement,
	variant domain.RuntimeVariant,
) error {
	names := make([]string, 0, len(assignment))
	for name := range assignment {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		desc := assignment[name]
		pkg := &domain.ResolvedPackage{
			Name:       desc.Name,
			Version:    desc.Version,
			Variant:    variant,
			Descriptor: desc,
		}
		for _, dep := range desc.Dependencies {
			if dep.Optional || !dep.ActiveFor(variant) {
				continue
			}
			pkg.Edges = append(pkg.Edges, domain.ResolvedEdge{
				Constraint: dep.Constraint,
				To:         domain.PackageKey{Name: dep.Name, Variant: variant},
			})
		}
		if err := res.Add(pkg); err != nil {
			return err
		}
	}
	for _, req := range roots {
		res.AddRoot(domain.PackageKey{Name: req.Name, Variant: variant})
	}
	return nil
}

// candidateCache is populated once per package name and reused by every
// search, including concurrent ones. A racing double load is harmless; the
// stored slice is immutable after publication.
type candidateCache struct {
	provider ports.ManifestProvider
	entries  sync.Map // name -> []ports.ManifestEntry
}

func (c *candidateCache) list(ctx context.Context, name string) ([]ports.ManifestEntry, error) {
	if cached, ok := c.entries.Load(name); ok {
		return cached.([]ports.ManifestEntry), nil
	}
	entries, err := c.provider.ListVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	c.entries.Store(name, entries)
	return entries, nil
}

// constraintEdge is one constraint imposed on a package name, with its origin
// for diagnostics.
type constraintEdge struct {
	from       string
	constraint domain.Constraint
}

func (e constraintEdge) String() string {
	return e.constraint.String() + " (required by " + e.from + ")"
}

// workItem is one dependency edge waiting to be resolved.
type workItem struct {
	from string
	dep  domain.Dependency
}

// choicePoint saves the search state before a tentative assignment so the
// search can backtrack to the next untried candidate.
type choicePoint struct {
	name        string
	candidates  []*domain.PackageDescriptor
	next        int
	assignment  map[string]*domain.PackageDescriptor
	constraints map[string][]constraintEdge
	worklist    []workItem
}

// search is one variant's assignment space.
type search struct {
	cache       *candidateCache
	variant     domain.RuntimeVariant
	roots       []domain.RootRequirement
	pins        map[string]domain.Version
	assignment  map[string]*domain.PackageDescriptor
	constraints map[string][]constraintEdge
	worklist    []workItem
	stack       []choicePoint

	// conflict captures the most recent dead end for NoSolution diagnostics.
	conflict *conflict
}

type conflict struct {
	name     string
	imposed  []constraintEdge
	rejected []string
}

func newSearch(cache *candidateCache, roots []domain.RootRequirement, variant domain.RuntimeVariant) *search {
	s := &search{
		cache:       cache,
		variant:     variant,
		roots:       roots,
		pins:        make(map[string]domain.Version),
		assignment:  make(map[string]*domain.PackageDescriptor),
		constraints: make(map[string][]constraintEdge),
	}
	for _, req := range roots {
		if pinned, ok := req.Constraint.ExactVersion(); ok {
			s.pins[req.Name] = pinned
		}
		s.worklist = append(s.worklist, workItem{
			from: "project",
			dep:  domain.Dependency{Name: req.Name, Constraint: req.Constraint},
		})
	}
	return s
}

func (s *search) run(ctx context.Context) (map[string]*domain.PackageDescriptor, error) {
	for len(s.worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := s.worklist[0]
		s.worklist = s.worklist[1:]

		dep := item.dep
		if dep.Optional || !dep.ActiveFor(s.variant) {
			// Never-activated edges are dropped entirely; they do not appear
			// in the resolution or the lockfile.
			continue
		}

		ok, err := s.resolveEdge(ctx, item)
		if err != nil {
			return nil, err
		}
		if !ok {
			if !s.backtrack() {
				return nil, s.noSolution()
			}
		}
	}
	return s.assignment, nil
}

// resolveEdge imposes the edge's constraint and, if the target is not yet
// assigned, opens a choice point. It returns false on a dead end.
func (s *search) resolveEdge(ctx context.Context, item workItem) (bool, error) {
	name := item.dep.Name
	edge := constraintEdge{from: item.from, constraint: item.dep.Constraint}

	// Early pruning: a pair of non-intersecting constraints can never be
	// satisfied, regardless of candidates.
	for _, existing := range s.constraints[name] {
		if !existing.constraint.Intersects(edge.constraint) {
			s.constraints[name] = append(s.constraints[name], edge)
			s.recordConflict(name, nil)
			return false, nil
		}
	}
	s.constraints[name] = append(s.constraints[name], edge)

	if assigned, ok := s.assignment[name]; ok {
		if edge.constraint.Satisfies(assigned.Version) {
			return true, nil
		}
		s.recordConflict(name, []string{assigned.Version.String() + " already assigned"})
		return false, nil
	}

	candidates, rejected, err := s.candidates(ctx, name)
	if err != nil {
		return false, err
	}
	if len(candidates) == 0 {
		s.recordConflict(name, rejected)
		return false, nil
	}

	s.stack = append(s.stack, choicePoint{
		name:        name,
		candidates:  candidates,
		next:        1,
		assignment:  copyAssignment(s.assignment),
		constraints: copyConstraints(s.constraints),
		worklist:    copyWorklist(s.worklist),
	})
	s.assign(candidates[0])
	return true, nil
}

// candidates lists, filters and orders the viable descriptors for a name:
// newest first, with a project-pinned exact version moved to the front.
// The rejected slice explains every excluded candidate.
func (s *search) candidates(ctx context.Context, name string) ([]*domain.PackageDescriptor, []string, error) {
	entries, err := s.cache.list(ctx, name)
	if err != nil {
		return nil, nil, zerr.With(err, "package", name)
	}

	var viable []*domain.PackageDescriptor
	var rejected []string
	for _, entry := range entries {
		if !entry.Descriptor.SupportsRuntime(s.variant) {
			rejected = append(rejected, entry.Version.String()+" incompatible with "+s.variant.String())
			continue
		}
		excluded := ""
		for _, edge := range s.constraints[name] {
			if !edge.constraint.Satisfies(entry.Version) {
				excluded = edge.String()
				break
			}
		}
		if excluded != "" {
			rejected = append(rejected, entry.Version.String()+" excluded by "+excluded)
			continue
		}
		viable = append(viable, entry.Descriptor)
	}

	// Stable keeps provider order among equal versions, so duplicate
	// publications cannot perturb candidate order between runs.
	sort.SliceStable(viable, func(i, j int) bool {
		return viable[i].Version.Compare(viable[j].Version) > 0
	})

	if pinned, ok := s.pins[name]; ok {
		for i, desc := range viable {
			if desc.Version.Compare(pinned) == 0 && i > 0 {
				pick := viable[i]
				copy(viable[1:i+1], viable[:i])
				viable[0] = pick
				break
			}
		}
	}
	return viable, rejected, nil
}

func (s *search) assign(desc *domain.PackageDescriptor) {
	s.assignment[desc.Name] = desc
	for _, dep := range desc.Dependencies {
		s.worklist = append(s.worklist, workItem{from: desc.Name, dep: dep})
	}
}

// backtrack rewinds to the most recent choice point with untried candidates
// and assigns the next one. It returns false when the stack is exhausted.
func (s *search) backtrack() bool {
	for len(s.stack) > 0 {
		cp := &s.stack[len(s.stack)-1]
		if cp.next < len(cp.candidates) {
			s.assignment = copyAssignment(cp.assignment)
			s.constraints = copyConstraints(cp.constraints)
			s.worklist = copyWorklist(cp.worklist)
			next := cp.candidates[cp.next]
			cp.next++
			s.assign(next)
			return true
		}
		s.stack = s.stack[:len(s.stack)-1]
	}
	return false
}

func (s *search) recordConflict(name string, rejected []string) {
	s.conflict = &conflict{
		name:     name,
		imposed:  append([]constraintEdge(nil), s.constraints[name]...),
		rejected: rejected,
	}
}

func (s *search) noSolution() error {
	err := zerr.With(domain.ErrNoSolution, "runtime", s.variant.String())
	if s.conflict == nil {
		return err
	}
	imposed := make([]string, len(s.conflict.imposed))
	for i, edge := range s.conflict.imposed {
		imposed[i] = edge.String()
	}
	err = zerr.With(
		zerr.With(err, "package", s.conflict.name),
		"constraints", strings.Join(imposed, "; "),
	)
	if len(s.conflict.rejected) > 0 {
		err = zerr.With(err, "rejected", strings.Join(s.conflict.rejected, "; "))
	}
	return err
}

func copyAssignment(m map[string]*domain.PackageDescriptor) map[string]*domain.PackageDescriptor {
	out := make(map[string]*domain.PackageDescriptor, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyConstraints(m map[string][]constraintEdge) map[string][]constraintEdge {
	out := make(map[string][]constraintEdge, len(m))
	for k, v := range m {
		out[k] = append([]constraintEdge(nil), v...)
	}
	return out
}

func copyWorklist(w []workItem) []workItem {
	return append([]workItem(nil), w...)
}
