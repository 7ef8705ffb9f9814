package cmds

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	glazed_settings "github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/parley/pkg/stream"
	"github.com/pkg/errors"
)

type OperationsSettings struct {
	Server string `glazed.parameter:"server"`
}

type OperationsCommand struct {
	*cmds.CommandDescription
}

func NewOperationsCommand() (*OperationsCommand, error) {
	glazedParameterLayer, err := glazed_settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create glazed parameter layer")
	}

	return &OperationsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"operations",
			cmds.WithShort("List the operations a server exposes, with their input schemas"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"server",
					parameters.ParameterTypeString,
					parameters.WithHelp("Server URL"),
					parameters.WithDefault("http://localhost:8080"),
				),
			),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

var _ cmds.GlazeCommand = (*OperationsCommand)(nil)

func (c *OperationsCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &OperationsSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "could not initialize operations settings")
	}

	ops, err := stream.NewClient(s.Server).Operations(ctx)
	if err != nil {
		return err
	}
	for _, op := range ops {
		row, err := operationRow(op)
		if err != nil {
			return err
		}
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// operationRow flattens one operation description into its name, its input
// fields and the required subset of them.
func operationRow(raw json.RawMessage) (types.Row, error) {
	var op struct {
		Name  string `json:"name"`
		Input struct {
			Properties map[string]json.RawMessage `json:"properties"`
			Required   []string                   `json:"required"`
		} `json:"input"`
	}
	if err := json.Unmarshal(raw, &op); err != nil {
		return nil, errors.Wrap(err, "could not decode operation")
	}

	fields := make([]string, 0, len(op.Input.Properties))
	for k := range op.Input.Properties {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	return types.NewRow(
		types.MRP("name", op.Name),
		types.MRP("fields", strings.Join(fields, ",")),
		types.MRP("required", strings.Join(op.Input.Required, ",")),
	), nil
}
