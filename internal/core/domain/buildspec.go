package domain

import "go.trai.ch/zerr"

// BackendKind tags the closed set of build backends a package may declare.
type BackendKind string

const (
	// BackendBuiltin installs declared Lua modules by copying files.
	BackendBuiltin BackendKind = "builtin"
	// BackendMake drives an external build tool (make by default).
	BackendMake BackendKind = "make"
	// BackendCommand runs freeform build and install commands.
	BackendCommand BackendKind = "command"
	// BackendNative compiles C sources into a loadable module.
	BackendNative BackendKind = "native"
)

// BuildSpec declares how a package's source tree is turned into an install
// payload. Exactly the fields for its Kind are meaningful; Validate enforces
// the per-backend requirements.
type BuildSpec struct {
	Kind BackendKind

	// Builtin: module name -> path relative to the source tree.
	// Module "foo.bar" installs to share/lua/<runtime>/foo/bar.lua.
	Modules map[string]string

	// Make: the tool to invoke, its build and install arguments.
	// Tool defaults to "make" when empty.
	Tool        string
	BuildArgs   []string
	InstallArgs []string

	// Command: shell commands run in the source tree. BuildCommand may be
	// empty (install-only packages); InstallCommand must produce the payload
	// under $LUX_PREFIX.
	BuildCommand   string
	InstallCommand string

	// Native: C sources relative to the source tree, plus compiler inputs.
	// Each entry of NativeModules maps a module name to its sources.
	NativeModules map[string][]string
	IncludeDirs   []string
	Defines       []string
	Libraries     []string
}

// knownBackends is the closed enumeration; anything else fails fast.
var knownBackends = map[BackendKind]struct{}{
	BackendBuiltin: {},
	BackendMake:    {},
	BackendCommand: {},
	BackendNative:  {},
}

// Validate checks that the spec's kind is known and its parameters are
// complete. It does not touch the filesystem; source-tree checks happen in
// the dispatcher's configure step.
func (s BuildSpec) Validate() error {
	if _, ok := knownBackends[s.Kind]; !ok {
		return zerr.With(ErrUnsupportedBackend, "backend", string(s.Kind))
	}

	switch s.Kind {
	case BackendBuiltin:
		if len(s.Modules) == 0 {
			return zerr.With(zerr.With(ErrInvalidBuildSpec, "backend", "builtin"), "reason", "no modules declared")
		}
	case BackendCommand:
		if s.InstallCommand == "" {
			return zerr.With(zerr.With(ErrInvalidBuildSpec, "backend", "command"), "reason", "missing install command")
		}
	case BackendNative:
		if len(s.NativeModules) == 0 {
			return zerr.With(zerr.With(ErrInvalidBuildSpec, "backend", "native"), "reason", "no native modules declared")
		}
		for module, sources := range s.NativeModules {
			if len(sources) == 0 {
				return zerr.With(zerr.With(zerr.With(ErrInvalidBuildSpec, "backend", "native"), "module", module), "reason", "no sources")
			}
		}
	case BackendMake:
		// make has usable defaults for every field.
	}
	return nil
}

// ToolName returns the external tool this spec invokes, or "" for backends
// that do not shell out to a named tool.
func (s BuildSpec) ToolName() string {
	switch s.Kind {
	case BackendMake:
		if s.Tool != "" {
			return s.Tool
		}
		return "make"
	case BackendNative:
		return "cc"
	default:
		return ""
	}
}
