package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/myrjola/casefile/cmd/casefile/img"
	"github.com/myrjola/casefile/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

// execute runs the casefile command line with args and input and returns what it printed.
func execute(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(input))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPlayAndSaves(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	db := filepath.Join(t.TempDir(), "casefile.sqlite")

	out, err := execute(t, "go apartment\nsave one\nquit\n", "--db", db, "play")
	require.NoError(t, err)
	require.Contains(t, out, "MURDER AT RUE MORGUE")
	require.Contains(t, out, "Saved to one.")

	out, err = execute(t, "", "--db", db, "saves", "list")
	require.NoError(t, err)
	require.Contains(t, out, "SLOT")
	require.Contains(t, out, "one")
	require.Contains(t, out, "rue_morgue")

	out, err = execute(t, "look\nquit\n", "--db", db, "play", "--load", "one")
	require.NoError(t, err)
	require.NotContains(t, out, "MURDER AT RUE MORGUE")
	require.Contains(t, out, "L'Espanaye Apartment")

	_, err = execute(t, "", "--db", db, "play", "--load", "two")
	require.Error(t, err)

	out, err = execute(t, "", "--db", db, "saves", "delete", "one")
	require.NoError(t, err)
	require.Contains(t, out, "Deleted one.")

	out, err = execute(t, "", "--db", db, "saves", "list")
	require.NoError(t, err)
	require.Contains(t, out, "No saved games.")
}

func TestPlay_InvalidExhaustionPolicy(t *testing.T) {
	db := filepath.Join(t.TempDir(), "casefile.sqlite")
	_, err := execute(t, "", "--db", db, "play", "--exhaustion", "sleep")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("case:\n  id: broken\nculprit: nobody\nsurprise: true\n"), 0o600))

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "bundled case", path: "../../internal/content/rue_morgue.yaml", want: "Murder at Rue Morgue: 3 chapters"},
		{name: "unknown key", path: broken, wantErr: true},
		{name: "missing file", path: filepath.Join(t.TempDir(), "missing.yaml"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "", "validate", tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Contains(t, out, tt.want)
		})
	}
}

func TestPortrait(t *testing.T) {
	t.Run("without a key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		_, err := execute(t, "", "portrait", "muset")
		require.ErrorIs(t, err, img.ErrNoAPIKey)
	})

	t.Run("unknown character", func(t *testing.T) {
		_, err := execute(t, "", "portrait", "nobody")
		require.Error(t, err)
	})

	t.Run("generated", func(t *testing.T) {
		fake := testhelpers.NewFakeOpenAI(t)
		t.Setenv("OPENAI_API_KEY", "test")
		t.Setenv("CASEFILE_OPENAI_BASE_URL", fake.BaseURL())
		outPath := filepath.Join(t.TempDir(), "muset.png")

		out, err := execute(t, "", "portrait", "isidore", "--out", outPath)
		require.NoError(t, err)
		require.Contains(t, out, "The portrait of Isidore Muset was saved as "+outPath)

		f, err := os.Open(outPath)
		require.NoError(t, err)
		defer f.Close()
		_, err = png.Decode(f)
		require.NoError(t, err)
	})
}
