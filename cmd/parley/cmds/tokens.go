package cmds

import (
	"context"
	"fmt"
	"io"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/parley/pkg/steps/ai/openai"
	"github.com/go-go-golems/parley/pkg/steps/ai/settings"
	"github.com/pkg/errors"
)

type TokensSettings struct {
	Model string `glazed.parameter:"model"`
	Input string `glazed.parameter:"input"`
}

type TokensCommand struct {
	*cmds.CommandDescription
}

func NewTokensCommand() (*TokensCommand, error) {
	return &TokensCommand{
		CommandDescription: cmds.NewCommandDescription(
			"tokens",
			cmds.WithShort("Count the tokens of a text for a model"),
			cmds.WithLong("Count the tokens of the given files (- for stdin) with the codec of a model, the same count the summarizer budget is checked against."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"model",
					parameters.ParameterTypeString,
					parameters.WithHelp("Model whose codec is used"),
					parameters.WithDefault(settings.DefaultModel),
				),
			),
			cmds.WithArguments(
				parameters.NewParameterDefinition(
					"input",
					parameters.ParameterTypeStringFromFiles,
					parameters.WithHelp("Input files"),
					parameters.WithRequired(true),
				),
			),
		),
	}, nil
}

var _ cmds.WriterCommand = (*TokensCommand)(nil)

func (c *TokensCommand) RunIntoWriter(ctx context.Context, parsedLayers *layers.ParsedLayers, w io.Writer) error {
	s := &TokensSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "could not initialize tokens settings")
	}
	return writeTokenCount(w, s.Model, s.Input)
}

func writeTokenCount(w io.Writer, model string, input string) error {
	n, err := openai.CountTokens(model, input)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Model: %s\nTotal tokens: %d\n", model, n)
	return err
}
