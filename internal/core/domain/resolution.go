package domain

import (
	"iter"
	"sort"

	"go.trai.ch/zerr"
)

// PackageKey identifies one resolved package within a multi-variant request.
// Resolutions contain exactly one package per key.
type PackageKey struct {
	Name    string
	Variant RuntimeVariant
}

func (k PackageKey) String() string {
	return k.Name + "@" + string(k.Variant)
}

// ResolvedEdge is one resolved dependency edge: the constraint that produced
// it and the key it points at. The target always lives in the same variant's
// assignment space.
type ResolvedEdge struct {
	Constraint Constraint
	To         PackageKey
}

// ResolvedPackage is a version-pinned node in a Resolution. Produced only by
// the resolver; immutable afterwards.
type ResolvedPackage struct {
	Name    string
	Version Version
	Variant RuntimeVariant
	// Descriptor is the published descriptor this node was resolved from.
	// May be nil for nodes rehydrated from a lockfile.
	Descriptor *PackageDescriptor
	Edges      []ResolvedEdge
}

// Key returns the node's (name, variant) identity.
func (p *ResolvedPackage) Key() PackageKey {
	return PackageKey{Name: p.Name, Variant: p.Variant}
}

// Resolution is the DAG of resolved packages for one resolver invocation,
// rooted at the project's direct dependencies.
type Resolution struct {
	packages map[PackageKey]*ResolvedPackage
	roots    []PackageKey

	// walkOrder is a topological order (dependencies first), populated by
	// Validate.
	walkOrder []PackageKey
}

// NewResolution creates an empty Resolution.
func NewResolution() *Resolution {
	return &Resolution{packages: make(map[PackageKey]*ResolvedPackage)}
}

// Add inserts a resolved package. It returns an error if the key is already
// present.
func (r *Resolution) Add(p *ResolvedPackage) error {
	key := p.Key()
	if _, exists := r.packages[key]; exists {
		return zerr.With(ErrDuplicatePackage, "package", key.String())
	}
	r.packages[key] = p
	return nil
}

// AddRoot marks a key as one of the project's direct dependencies.
func (r *Resolution) AddRoot(key PackageKey) {
	r.roots = append(r.roots, key)
}

// Roots returns the direct-dependency keys in the order they were added.
func (r *Resolution) Roots() []PackageKey {
	out := make([]PackageKey, len(r.roots))
	copy(out, r.roots)
	return out
}

// Get looks up a resolved package by key.
func (r *Resolution) Get(key PackageKey) (*ResolvedPackage, bool) {
	p, ok := r.packages[key]
	return p, ok
}

// Len returns the number of resolved packages.
func (r *Resolution) Len() int {
	return len(r.packages)
}

// Keys returns every package key sorted by (name, variant).
func (r *Resolution) Keys() []PackageKey {
	keys := make([]PackageKey, 0, len(r.packages))
	for k := range r.packages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Variant < keys[j].Variant
	})
	return keys
}

// Validate checks every edge target exists and the graph is acyclic,
// populating the walk order used by Walk. Cycles surface as
// ErrDependencyCycle carrying the offending path.
func (r *Resolution) Validate() error {
	r.walkOrder = make([]PackageKey, 0, len(r.packages))
	visited := make(map[PackageKey]int) // 0 unvisited, 1 visiting, 2 done
	var path []PackageKey

	var visit func(key PackageKey) error
	visit = func(key PackageKey) error {
		visited[key] = 1
		path = append(path, key)

		pkg, exists := r.packages[key]
		if !exists {
			return zerr.With(ErrMissingPackage, "missing", key.String())
		}

		for _, edge := range pkg.Edges {
			if visited[edge.To] == 1 {
				return cycleError(path, edge.To)
			}
			if visited[edge.To] == 0 {
				if err := visit(edge.To); err != nil {
					return err
				}
			}
		}

		visited[key] = 2
		path = path[:len(path)-1]
		r.walkOrder = append(r.walkOrder, key)
		return nil
	}

	// Sorted key iteration keeps the walk order deterministic, which in turn
	// keeps lockfile bytes stable.
	for _, key := range r.Keys() {
		if visited[key] == 0 {
			if err := visit(key); err != nil {
				return err
			}
		}
	}
	return nil
}

func cycleError(path []PackageKey, repeat PackageKey) error {
	start := 0
	for i, node := range path {
		if node == repeat {
			start = i
			break
		}
	}
	cycle := ""
	for i := start; i < len(path); i++ {
		cycle += path[i].Name + " -> "
	}
	cycle += repeat.Name
	return zerr.Wrap(ErrDependencyCycle, cycle)
}

// Walk yields packages in dependency-first topological order. Validate must
// have returned nil.
func (r *Resolution) Walk() iter.Seq[*ResolvedPackage] {
	return func(yield func(*ResolvedPackage) bool) {
		for _, key := range r.walkOrder {
			if !yield(r.packages[key]) {
				return
			}
		}
	}
}

// Dependents returns the keys of packages with an edge pointing at key.
func (r *Resolution) Dependents(key PackageKey) []PackageKey {
	var out []PackageKey
	for _, k := range r.Keys() {
		for _, edge := range r.packages[k].Edges {
			if edge.To == key {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// SatisfiesAll verifies that every edge's target version satisfies the
// constraint that produced the edge. Used by tests and by lockfile staleness
// checks.
func (r *Resolution) SatisfiesAll() bool {
	for _, pkg := range r.packages {
		for _, edge := range pkg.Edges {
			target, ok := r.packages[edge.To]
			if !ok || !edge.Constraint.Satisfies(target.Version) {
				return false
			}
		}
	}
	return true
}
