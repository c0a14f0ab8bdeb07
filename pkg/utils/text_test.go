package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "shorter than limit", in: "abc", max: 10, want: "abc"},
		{name: "exact limit", in: "abcde", max: 5, want: "abcde"},
		{name: "cut ascii", in: "abcdef", max: 3, want: "abc"},
		{name: "multi-byte runes", in: "héllo wörld", max: 7, want: "héllo w"},
		{name: "zero limit", in: "abc", max: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.max))
		})
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"Amoxicillin", "Paracetamol"}, SplitList(" Amoxicillin , ,Paracetamol ", ","))
	assert.Nil(t, SplitList("", ","))
}

func TestOrderedSet(t *testing.T) {
	t.Parallel()
	s := NewOrderedSet()
	assert.Equal(t, []string{}, s.Items())

	s.Add("CBC", "CRP", "CBC")
	s.Add("ESR", "CRP")
	assert.Equal(t, []string{"CBC", "CRP", "ESR"}, s.Items())
}
