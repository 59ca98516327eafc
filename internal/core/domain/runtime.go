package domain

import "go.trai.ch/zerr"

// RuntimeVariant identifies one of the mutually ABI-incompatible generations
// of the host Lua runtime a package may target.
type RuntimeVariant string

const (
	Lua51  RuntimeVariant = "lua5.1"
	Lua52  RuntimeVariant = "lua5.2"
	Lua53  RuntimeVariant = "lua5.3"
	Lua54  RuntimeVariant = "lua5.4"
	LuaJIT RuntimeVariant = "luajit"
)

// AllRuntimeVariants lists the known variants in a stable order.
var AllRuntimeVariants = []RuntimeVariant{Lua51, Lua52, Lua53, Lua54, LuaJIT}

// ParseRuntimeVariant validates a runtime variant name.
func ParseRuntimeVariant(text string) (RuntimeVariant, error) {
	for _, v := range AllRuntimeVariants {
		if string(v) == text {
			return v, nil
		}
	}
	return "", zerr.With(ErrUnknownRuntime, "runtime", text)
}

func (v RuntimeVariant) String() string {
	return string(v)
}

// Target is the (runtime variant, architecture) pair an install tree root is
// keyed by. Arch uses GOOS-GOARCH style identifiers, e.g. "linux-amd64".
type Target struct {
	Runtime RuntimeVariant
	Arch    string
}

func (t Target) String() string {
	return string(t.Runtime) + "/" + t.Arch
}
