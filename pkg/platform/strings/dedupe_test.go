package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIDs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil stays nil", nil, nil},
		{"empty stays empty", []string{}, []string{}},
		{"trims and drops blanks", []string{" p1 ", "", "  "}, []string{"p1"}},
		{"first occurrence wins", []string{"t2", "t1", " t2"}, []string{"t2", "t1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeIDs(tt.in))
		})
	}
}

func TestSortedUnique(t *testing.T) {
	in := []string{"b", "a", "b", "c"}
	assert.Equal(t, []string{"a", "b", "c"}, SortedUnique(in))
	assert.Equal(t, []string{"b", "a", "b", "c"}, in)
	assert.Empty(t, SortedUnique(nil))
}
