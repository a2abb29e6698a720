package content_test

import (
	"testing"

	"github.com/myrjola/casefile/internal/content"
	"github.com/stretchr/testify/require"
)

func TestResolver(t *testing.T) {
	r := content.NewResolver([]content.Entry{
		{ID: "le_bon", Name: "Adolphe Le Bon"},
		{ID: "muset", Name: "Isidore Muset"},
		{ID: "prefect", Name: "The Prefect"},
	})
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{input: "muset", want: "muset", wantOK: true},
		{input: "  MUSET ", want: "muset", wantOK: true},
		{input: "le bon", want: "le_bon", wantOK: true},
		{input: "Adolphe Le Bon", want: "le_bon", wantOK: true},
		{input: "prefekt", want: "prefect", wantOK: true},
		{input: "isidore musett", want: "muset", wantOK: true},
		{input: "gardener", wantOK: false},
		{input: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := r.Resolve(tt.input)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCaseResolvers(t *testing.T) {
	c := content.Sample()

	id, ok := c.LocationResolver().Resolve("prefecture of police")
	require.True(t, ok)
	require.Equal(t, "prefecture", id)

	id, ok = c.ClueResolver().Resolve("tawny tuft of hair")
	require.True(t, ok)
	require.Equal(t, "tuft_of_hair", id)

	id, ok = c.CharacterResolver().Resolve("sailor")
	require.True(t, ok)
	require.Equal(t, "sailor", id)
}
