package img

import (
	"bytes"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"strings"

	"github.com/myrjola/casefile/cmd/casefile/setup"
	"github.com/myrjola/casefile/internal/errors"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "img",
	Title: "Image operations",
}

var ErrNoAPIKey = errors.NewSentinel("OPENAI_API_KEY is not set")

func NewPortrait() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "portrait [character] [direction...]",
		GroupID: Group.ID,
		Short:   "Generate a character portrait",
		Long: `Generates a portrait of a character of the case with Dall-E. The character is drawn from their description,
extra arguments add direction to the prompt.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPortrait,
	}
	cmd.Flags().String("out", "./portrait.png", "path to generated image file")
	return cmd
}

func runPortrait(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := setup.LoadCase(cmd)
	if err != nil {
		return err
	}
	id, ok := c.CharacterResolver().Resolve(args[0])
	if !ok {
		return errors.New("unknown character", slog.String("character", args[0]))
	}
	character, _ := c.Character(id)

	client, ok, err := setup.AIClient()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoAPIKey
	}

	prompt := fmt.Sprintf("Portrait of %s from %q, in the style of a 19th century engraving. %s %s",
		character.Name, c.Meta.Title, character.Description, strings.Join(args[1:], " "))
	imgBytes, err := client.GeneratePortrait(ctx, strings.TrimSpace(prompt))
	if err != nil {
		return errors.Wrap(err, "generate portrait", slog.String("character", id))
	}
	// Decoding checks that the model really returned a PNG.
	imgData, err := png.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return errors.Wrap(err, "decode portrait")
	}

	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return errors.Wrap(err, "invalid out flag")
	}
	file, err := os.Create(outPath)
	if err != nil {
		return errors.Wrap(err, "create image file", slog.String("path", outPath))
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)
	if err = png.Encode(file, imgData); err != nil {
		return errors.Wrap(err, "encode portrait", slog.String("path", outPath))
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "The portrait of %s was saved as %s\n", character.Name, outPath)
	return err //nolint:wrapcheck // nothing to add
}
