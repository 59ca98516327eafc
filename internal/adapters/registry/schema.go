package registry

import (
	"github.com/nvim-neorocks/lux/internal/core/domain"
	"go.trai.ch/zerr"
)

// indexDTO is the top-level structure of the registry index file.
type indexDTO struct {
	Format   string                           `yaml:"format"`
	Packages map[string]map[string]packageDTO `yaml:"packages"`
}

// packageDTO is one published version of a package.
type packageDTO struct {
	Source       sourceDTO       `yaml:"source"`
	Runtimes     []string        `yaml:"runtimes"`
	Dependencies []dependencyDTO `yaml:"dependencies"`
	Build        buildDTO        `yaml:"build"`
}

type sourceDTO struct {
	URL    string `yaml:"url"`
	Ref    string `yaml:"ref"`
	Digest string `yaml:"digest"`
}

type dependencyDTO struct {
	Name       string   `yaml:"name"`
	Constraint string   `yaml:"constraint"`
	Optional   bool     `yaml:"optional"`
	OnlyFor    []string `yaml:"only_for"`
}

type buildDTO struct {
	Backend string `yaml:"backend"`

	Modules map[string]string `yaml:"modules"`

	Tool        string   `yaml:"tool"`
	BuildArgs   []string `yaml:"build_args"`
	InstallArgs []string `yaml:"install_args"`

	BuildCommand   string `yaml:"build_command"`
	InstallCommand string `yaml:"install_command"`

	NativeModules map[string][]string `yaml:"native_modules"`
	IncludeDirs   []string            `yaml:"include_dirs"`
	Defines       []string            `yaml:"defines"`
	Libraries     []string            `yaml:"libraries"`
}

// toDomain converts a DTO into a validated immutable descriptor.
func (dto packageDTO) toDomain(name, version string) (*domain.PackageDescriptor, error) {
	v, err := domain.ParseVersion(version)
	if err != nil {
		return nil, zerr.With(
			zerr.With(zerr.Wrap(err, domain.ErrRegistryIndexCorrupt.Error()), "package", name),
			"version", version,
		)
	}

	runtimes := make([]domain.RuntimeVariant, 0, len(dto.Runtimes))
	for _, raw := range dto.Runtimes {
		variant, err := domain.ParseRuntimeVariant(raw)
		if err != nil {
			return nil, zerr.With(
				zerr.With(zerr.Wrap(err, domain.ErrRegistryIndexCorrupt.Error()), "package", name),
				"version", version,
			)
		}
		runtimes = append(runtimes, variant)
	}

	deps := make([]domain.Dependency, 0, len(dto.Dependencies))
	for _, depDTO := range dto.Dependencies {
		dep, err := depDTO.toDomain()
		if err != nil {
			return nil, zerr.With(zerr.With(err, "package", name), "version", version)
		}
		deps = append(deps, dep)
	}

	descriptor := &domain.PackageDescriptor{
		Name:         name,
		Version:      v,
		Dependencies: deps,
		Runtimes:     runtimes,
		Source: domain.SourceLocation{
			URL:    dto.Source.URL,
			Ref:    dto.Source.Ref,
			Digest: dto.Source.Digest,
		},
		Build: dto.Build.toDomain(),
	}
	if err := descriptor.Validate(); err != nil {
		return nil, zerr.With(zerr.With(err, "package", name), "version", version)
	}
	return descriptor, nil
}

func (dto dependencyDTO) toDomain() (domain.Dependency, error) {
	if dto.Name == "" {
		return domain.Dependency{}, zerr.With(domain.ErrRegistryIndexCorrupt, "reason", "dependency without name")
	}

	constraint, err := domain.ParseConstraint(dto.Constraint)
	if err != nil {
		return domain.Dependency{}, zerr.With(zerr.Wrap(err, domain.ErrRegistryIndexCorrupt.Error()),
			"dependency", dto.Name,
		)
	}

	onlyFor := make([]domain.RuntimeVariant, 0, len(dto.OnlyFor))
	for _, raw := range dto.OnlyFor {
		variant, err := domain.ParseRuntimeVariant(raw)
		if err != nil {
			return domain.Dependency{}, zerr.With(zerr.Wrap(err, domain.ErrRegistryIndexCorrupt.Error()),
				"dependency", dto.Name,
			)
		}
		onlyFor = append(onlyFor, variant)
	}

	return domain.Dependency{
		Name:       dto.Name,
		Constraint: constraint,
		Optional:   dto.Optional,
		OnlyFor:    onlyFor,
	}, nil
}

func (dto buildDTO) toDomain() domain.BuildSpec {
	kind := domain.BackendKind(dto.Backend)
	if dto.Backend == "" {
		kind = domain.BackendBuiltin
	}
	return domain.BuildSpec{
		Kind:           kind,
		Modules:        dto.Modules,
		Tool:           dto.Tool,
		BuildArgs:      dto.BuildArgs,
		InstallArgs:    dto.InstallArgs,
		BuildCommand:   dto.BuildCommand,
		InstallCommand: dto.InstallCommand,
		NativeModules:  dto.NativeModules,
		IncludeDirs:    dto.IncludeDirs,
		Defines:        dto.Defines,
		Libraries:      dto.Libraries,
	}
}
