package cmds

import (
	"context"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	glazed_settings "github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type AgentsSettings struct {
	Roster string `glazed.parameter:"roster"`
	Model  string `glazed.parameter:"model"`
}

type AgentsCommand struct {
	*cmds.CommandDescription
}

func NewAgentsCommand() (*AgentsCommand, error) {
	glazedParameterLayer, err := glazed_settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create glazed parameter layer")
	}

	return &AgentsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"agents",
			cmds.WithShort("Print the rendered agent roster"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"roster",
					parameters.ParameterTypeString,
					parameters.WithHelp("Roster YAML file (default: built-in roster)"),
				),
				parameters.NewParameterDefinition(
					"model",
					parameters.ParameterTypeString,
					parameters.WithHelp("Model substituted into the roster (default: chat.default_model)"),
				),
			),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

var _ cmds.GlazeCommand = (*AgentsCommand)(nil)

func (c *AgentsCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &AgentsSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "could not initialize agents settings")
	}

	agents, err := loadAgents(s.Roster, s.Model)
	if err != nil {
		return err
	}
	for _, a := range agents {
		if err := gp.AddRow(ctx, agentRow(a)); err != nil {
			return err
		}
	}
	return nil
}

func agentRow(a conversation.Agent) types.Row {
	return types.NewRow(
		types.MRP("name", a.Name),
		types.MRP("model", a.Model),
		types.MRP("colour", a.Colour),
		types.MRP("voice", a.Voice),
		types.MRP("system", a.System),
	)
}

// loadAgents renders the roster at path, or the built-in one. An empty model
// falls back to chat.default_model.
func loadAgents(path string, model string) ([]conversation.Agent, error) {
	roster := conversation.DefaultRoster()
	if path != "" {
		var err error
		roster, err = conversation.LoadRosterFile(path)
		if err != nil {
			return nil, err
		}
	}

	if model == "" {
		model = viper.GetString("chat.default_model")
	}
	if model == "" {
		model = settings.DefaultModel
	}
	return roster.Render(model)
}
