// Package domain contains the core domain model for package resolution,
// build dispatch and install trees.
package domain

import (
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// Version is a totally ordered package version: dot-separated numeric
// components followed by an optional pre-release tag. A pre-release always
// orders below the release it tags; pre-release tags compare
// lexicographically among themselves.
type Version struct {
	components []int
	prerelease string
}

// ParseVersion parses a version string of the form "1.2.3" or "1.2.3-rc1".
func ParseVersion(text string) (Version, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Version{}, zerr.With(ErrMalformedVersion, "input", text)
	}

	numeric := raw
	var pre string
	if idx := strings.IndexByte(raw, '-'); idx >= 0 {
		numeric = raw[:idx]
		pre = raw[idx+1:]
		if pre == "" {
			return Version{}, zerr.With(ErrMalformedVersion, "input", text)
		}
	}

	parts := strings.Split(numeric, ".")
	components := make([]int, len(parts))
	for i, p := range parts {
		if p == "" {
			return Version{}, zerr.With(ErrMalformedVersion, "input", text)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, zerr.With(ErrMalformedVersion, "input", text)
		}
		components[i] = n
	}

	return Version{components: components, prerelease: pre}, nil
}

// MustParseVersion parses a version string and panics on failure.
// Intended for constants and tests.
func MustParseVersion(text string) Version {
	v, err := ParseVersion(text)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 depending on whether v orders before, equal to
// or after other. Missing numeric components compare as zero, so "1.0" and
// "1.0.0" are equal.
func (v Version) Compare(other Version) int {
	maxLen := len(v.components)
	if len(other.components) > maxLen {
		maxLen = len(other.components)
	}

	for i := 0; i < maxLen; i++ {
		a, b := 0, 0
		if i < len(v.components) {
			a = v.components[i]
		}
		if i < len(other.components) {
			b = other.components[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}

	// Equal numeric components: a release orders above any of its pre-releases.
	switch {
	case v.prerelease == "" && other.prerelease == "":
		return 0
	case v.prerelease == "":
		return 1
	case other.prerelease == "":
		return -1
	default:
		return strings.Compare(v.prerelease, other.prerelease)
	}
}

// IsZero reports whether v is the zero Version (never produced by ParseVersion).
func (v Version) IsZero() bool {
	return len(v.components) == 0
}

// IsPrerelease reports whether v carries a pre-release tag.
func (v Version) IsPrerelease() bool {
	return v.prerelease != ""
}

// Components returns a copy of the numeric components.
func (v Version) Components() []int {
	out := make([]int, len(v.components))
	copy(out, v.components)
	return out
}

func (v Version) String() string {
	if len(v.components) == 0 {
		return ""
	}
	parts := make([]string, len(v.components))
	for i, c := range v.components {
		parts[i] = strconv.Itoa(c)
	}
	s := strings.Join(parts, ".")
	if v.prerelease != "" {
		s += "-" + v.prerelease
	}
	return s
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
