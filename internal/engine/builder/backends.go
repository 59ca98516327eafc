package builder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/nvim-neorocks/lux/internal/core/ports"
	"go.trai.ch/zerr"
)

// backendContext carries everything one backend invocation needs.
type backendContext struct {
	pkg        *domain.ResolvedPackage
	desc       *domain.PackageDescriptor
	target     domain.Target
	sourceDir  string
	payloadDir string
	runner     ports.Runner
	stdout     io.Writer
	stderr     io.Writer
}

// configure validates the build spec against the actual source tree and
// probes for the external toolchain before any work starts.
func (bc *backendContext) configure() error {
	spec := bc.desc.Build

	if err := spec.Validate(); err != nil {
		return err
	}

	if tool := spec.ToolName(); tool != "" {
		if _, err := bc.runner.Look(tool); err != nil {
			return zerr.With(zerr.With(err, "package", bc.pkg.Key().String()), "tool", tool)
		}
	}

	switch spec.Kind {
	case domain.BackendBuiltin:
		for module, rel := range spec.Modules {
			if err := bc.checkSourceFile(rel, "module", module); err != nil {
				return err
			}
		}
	case domain.BackendNative:
		for module, sources := range spec.NativeModules {
			for _, rel := range sources {
				if err := bc.checkSourceFile(rel, "module", module); err != nil {
					return err
				}
			}
		}
	case domain.BackendMake:
		if spec.Tool == "" || spec.Tool == "make" {
			if err := bc.checkSourceFile("Makefile", "tool", "make"); err != nil {
				return err
			}
		}
	case domain.BackendCommand:
		// Freeform commands carry their own preconditions.
	}
	return nil
}

func (bc *backendContext) checkSourceFile(rel string, kv ...string) error {
	path, err := bc.sourcePath(rel)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		wrapped := zerr.With(zerr.With(domain.ErrConfigureFailed, "package", bc.pkg.Key().String()), "file", rel)
		for i := 0; i+1 < len(kv); i += 2 {
			wrapped = zerr.With(wrapped, kv[i], kv[i+1])
		}
		return wrapped
	}
	return nil
}

// sourcePath resolves a declared relative path, rejecting escapes from the
// source tree.
func (bc *backendContext) sourcePath(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", zerr.With(
			zerr.With(zerr.With(domain.ErrInvalidBuildSpec, "package", bc.pkg.Key().String()), "path", rel),
			"reason", "path escapes source tree",
		)
	}
	return filepath.Join(bc.sourceDir, cleaned), nil
}

// build dispatches to the backend implementation, producing the install
// payload under payloadDir.
func (bc *backendContext) build(ctx context.Context) error {
	switch bc.desc.Build.Kind {
	case domain.BackendBuiltin:
		return bc.buildBuiltin()
	case domain.BackendMake:
		return bc.buildMake(ctx)
	case domain.BackendCommand:
		return bc.buildCommand(ctx)
	case domain.BackendNative:
		return bc.buildNative(ctx)
	default:
		return zerr.With(domain.ErrUnsupportedBackend, "backend", string(bc.desc.Build.Kind))
	}
}

// buildBuiltin copies each declared Lua module into the payload's share
// tree: module "foo.bar" lands at share/lua/<runtime>/foo/bar.lua.
func (bc *backendContext) buildBuiltin() error {
	for module, rel := range bc.desc.Build.Modules {
		src, err := bc.sourcePath(rel)
		if err != nil {
			return err
		}
		dst := filepath.Join(bc.payloadDir, luaModulePath("share", bc.target.Runtime, module, ".lua"))
		if err := copyFile(src, dst); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to install module"), "module", module)
		}
	}
	return nil
}

// buildMake runs the tool twice: once with the build arguments, once with
// the install arguments (default "install"). The payload prefix is exported
// as LUX_PREFIX and passed as PREFIX= for conventional Makefiles.
func (bc *backendContext) buildMake(ctx context.Context) error {
	spec := bc.desc.Build
	tool := spec.ToolName()

	if err := bc.run(ctx, tool, spec.BuildArgs); err != nil {
		return err
	}

	installArgs := spec.InstallArgs
	if len(installArgs) == 0 {
		installArgs = []string{"install", "PREFIX=" + bc.payloadDir}
	}
	return bc.run(ctx, tool, installArgs)
}

// buildCommand runs the build and install commands through the shell with
// the payload exposed as LUX_PREFIX.
func (bc *backendContext) buildCommand(ctx context.Context) error {
	spec := bc.desc.Build
	if spec.BuildCommand != "" {
		if err := bc.run(ctx, "sh", []string{"-c", spec.BuildCommand}); err != nil {
			return err
		}
	}
	return bc.run(ctx, "sh", []string{"-c", spec.InstallCommand})
}

// buildNative compiles each module's C sources into a shared library under
// lib/lua/<runtime>.
func (bc *backendContext) buildNative(ctx context.Context) error {
	spec := bc.desc.Build

	for module, sources := range spec.NativeModules {
		out := filepath.Join(bc.payloadDir, luaModulePath("lib", bc.target.Runtime, module, ".so"))
		if err := os.MkdirAll(filepath.Dir(out), domain.DirPerm); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to create output dir"), "module", module)
		}

		args := []string{"-shared", "-fPIC", "-O2"}
		for _, dir := range spec.IncludeDirs {
			inc, err := bc.sourcePath(dir)
			if err != nil {
				return err
			}
			args = append(args, "-I"+inc)
		}
		for _, def := range spec.Defines {
			args = append(args, "-D"+def)
		}
		for _, rel := range sources {
			src, err := bc.sourcePath(rel)
			if err != nil {
				return err
			}
			args = append(args, src)
		}
		args = append(args, "-o", out)
		for _, lib := range spec.Libraries {
			args = append(args, "-l"+lib)
		}

		if err := bc.run(ctx, "cc", args); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to compile native module"), "module", module)
		}
	}
	return nil
}

func (bc *backendContext) run(ctx context.Context, path string, args []string) error {
	return bc.runner.Run(ctx, ports.Invocation{
		Path:   path,
		Args:   args,
		Dir:    bc.sourceDir,
		Env:    bc.buildEnv(),
		Stdout: bc.stdout,
		Stderr: bc.stderr,
	})
}

// buildEnv is the contract between the dispatcher and backend processes.
func (bc *backendContext) buildEnv() []string {
	return []string{
		"LUX_PREFIX=" + bc.payloadDir,
		"LUX_LUA_VERSION=" + string(bc.target.Runtime),
		"LUX_ARCH=" + bc.target.Arch,
	}
}

// luaModulePath maps a dotted module name onto its install path, e.g.
// ("share", lua5.4, "foo.bar", ".lua") -> share/lua/lua5.4/foo/bar.lua.
func luaModulePath(root string, runtime domain.RuntimeVariant, module, ext string) string {
	parts := append([]string{root, "lua", string(runtime)}, strings.Split(module, ".")...)
	path := filepath.Join(parts...)
	return path + ext
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, domain.FilePerm)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
