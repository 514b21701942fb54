package columns

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voilab/acedao/query/ast"
)

func TestResolve(t *testing.T) {
	defaults := []string{"name", "email"}

	tests := []struct {
		name   string
		layers []ast.Fields
		want   []string
	}{
		{
			name: "defaults",
			want: []string{"id", "name", "email"},
		},
		{
			name:   "explicit select",
			layers: []ast.Fields{{Select: []string{"email"}}},
			want:   []string{"id", "email"},
		},
		{
			name:   "empty select keeps the primary key only",
			layers: []ast.Fields{{Select: []string{}}},
			want:   []string{"id"},
		},
		{
			name:   "select already holding the primary key",
			layers: []ast.Fields{{Select: []string{"name", "id"}}},
			want:   []string{"name", "id"},
		},
		{
			name:   "addselect and omit on defaults",
			layers: []ast.Fields{{AddSelect: []string{"age"}, Omit: []string{"email"}}},
			want:   []string{"id", "name", "age"},
		},
		{
			name:   "omit cannot drop the primary key",
			layers: []ast.Fields{{Omit: []string{"id", "name"}}},
			want:   []string{"id", "email"},
		},
		{
			name: "first select wins with the adds seen so far",
			layers: []ast.Fields{
				{AddSelect: []string{"age"}},
				{Select: []string{"name"}, AddSelect: []string{"email"}},
				{Select: []string{"ignored"}},
			},
			want: []string{"id", "name", "age", "email"},
		},
		{
			name: "omit is ignored once a select wins",
			layers: []ast.Fields{
				{Omit: []string{"name"}},
				{Select: []string{"name"}},
			},
			want: []string{"id", "name"},
		},
		{
			name:   "duplicates collapse",
			layers: []ast.Fields{{AddSelect: []string{"name", "name"}}},
			want:   []string{"id", "name", "email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.layers, defaults)
			assert.Equal(t, tt.want, got)

			count := 0
			for _, f := range got {
				if f == PrimaryKey {
					count++
				}
			}
			assert.Equal(t, 1, count, "primary key selected exactly once")
		})
	}
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	defaults := []string{"name", "email"}
	layer := ast.Fields{Select: []string{"name", "name"}}

	Resolve([]ast.Fields{layer}, defaults)

	assert.Equal(t, []string{"name", "email"}, defaults)
	assert.Equal(t, []string{"name", "name"}, layer.Select)
}

func TestColumn(t *testing.T) {
	cols := Aliased("u", []string{"id", "name"})

	assert.Equal(t, "u.name", cols[1].Qualified())
	assert.Equal(t, "u__name", cols[1].As("__"))
}
