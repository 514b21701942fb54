package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSatisfies(t *testing.T) {
	tests := []struct {
		name       string
		current    string
		constraint string
		want       bool
		wantErr    bool
	}{
		{name: "empty constraint", current: "0.1.0", want: true},
		{name: "in range", current: "0.3.1", constraint: ">= 0.2, < 1.0", want: true},
		{name: "too old", current: "0.1.0", constraint: ">= 0.2", want: false},
		{name: "pessimistic", current: "1.4.0", constraint: "~> 1.2", want: true},
		{name: "bad version", current: "x.y", constraint: ">= 1.0", wantErr: true},
		{name: "bad constraint", current: "1.0.0", constraint: "newer", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Satisfies(tt.current, tt.constraint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(""))
	assert.NoError(t, Check(">= "+Version))
	assert.Error(t, Check("> "+Version))
}

func TestInfo(t *testing.T) {
	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Contains(t, info.String(), "acedao version "+Version)
	assert.Contains(t, info.FullString(), "Git Commit: "+GitCommit)
}
