package domain_test

import (
	"testing"

	"github.com/nvim-neorocks/lux/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple", input: "1.2.3", want: "1.2.3"},
		{name: "single component", input: "7", want: "7"},
		{name: "prerelease", input: "1.0.0-rc1", want: "1.0.0-rc1"},
		{name: "leading whitespace", input: "  2.1", want: "2.1"},
		{name: "empty", input: "", wantErr: true},
		{name: "letters", input: "1.x", wantErr: true},
		{name: "trailing dot", input: "1.2.", wantErr: true},
		{name: "dangling prerelease dash", input: "1.0-", wantErr: true},
		{name: "negative component", input: "1.-2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := domain.ParseVersion(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, domain.ErrMalformedVersion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.0.0", 0},
		{"1.0", "1.1", -1},
		{"2.0", "1.9.9", 1},
		{"1.10", "1.9", 1},
		{"1.0.0-rc1", "1.0.0", -1},
		{"1.0.0-alpha", "1.0.0-beta", -1},
		{"1.0.1-rc1", "1.0.0", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			a := domain.MustParseVersion(tt.a)
			b := domain.MustParseVersion(tt.b)
			assert.Equal(t, tt.want, a.Compare(b))
			assert.Equal(t, -tt.want, b.Compare(a))
		})
	}
}

func TestParseConstraint(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "range", input: ">= 1.0, < 2.0", want: ">= 1.0, < 2.0"},
		{name: "bare version is exact", input: "1.5", want: "== 1.5"},
		{name: "pessimistic", input: "~> 1.2", want: "~> 1.2"},
		{name: "exclusion", input: ">= 1.0, != 1.3", want: ">= 1.0, != 1.3"},
		{name: "any", input: "*", want: "*"},
		{name: "empty is any", input: "", want: "*"},
		{name: "operator without version", input: ">=", wantErr: true},
		{name: "dangling comma", input: ">= 1.0,", wantErr: true},
		{name: "garbage version", input: "> banana", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := domain.ParseConstraint(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, domain.ErrMalformedConstraint)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.String())
		})
	}
}

func TestConstraintSatisfies(t *testing.T) {
	tests := []struct {
		constraint string
		version    string
		want       bool
	}{
		{">= 1.0, < 2.0", "1.9", true},
		{">= 1.0, < 2.0", "2.0", false},
		{">= 1.0, < 2.0", "0.9", false},
		{"~> 1.2", "1.9", true},
		{"~> 1.2", "2.0", false},
		{"~> 1.2.3", "1.2.9", true},
		{"~> 1.2.3", "1.3.0", false},
		{"!= 1.3", "1.3", false},
		{"!= 1.3", "1.4", true},
		{"== 1.0", "1.0.0", true},
		{"*", "0.0.1", true},
		{">= 1.0", "1.0.0-rc1", false},
	}

	for _, tt := range tests {
		t.Run(tt.constraint+" vs "+tt.version, func(t *testing.T) {
			c := domain.MustParseConstraint(tt.constraint)
			v := domain.MustParseVersion(tt.version)
			assert.Equal(t, tt.want, c.Satisfies(v))
		})
	}
}

func TestConstraintIntersects(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{">= 1.0", "< 2.0", true},
		{">= 1.0", "< 1.0", false},
		{">= 2.0", "< 1.0", false},
		{"== 1.5", ">= 1.0, < 2.0", true},
		{"== 2.5", ">= 1.0, < 2.0", false},
		{"~> 1.2", ">= 1.9", true},
		{"~> 1.2", ">= 2.0", false},
		{"*", "== 0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.a+" with "+tt.b, func(t *testing.T) {
			a := domain.MustParseConstraint(tt.a)
			b := domain.MustParseConstraint(tt.b)
			assert.Equal(t, tt.want, a.Intersects(b))
			assert.Equal(t, tt.want, b.Intersects(a))
		})
	}
}

func TestConstraintExactVersion(t *testing.T) {
	v, ok := domain.MustParseConstraint("== 1.5").ExactVersion()
	require.True(t, ok)
	assert.Equal(t, "1.5", v.String())

	_, ok = domain.MustParseConstraint(">= 1.5").ExactVersion()
	assert.False(t, ok)
}
