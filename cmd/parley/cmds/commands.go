package cmds

import (
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/spf13/cobra"
)

// RegisterCommands adds every parley command to rootCmd. serve and chat are
// long running and stay plain cobra commands; the listing commands go through
// glazed so their output can be shaped with the usual --output flags.
func RegisterCommands(rootCmd *cobra.Command) error {
	rootCmd.AddCommand(ServeCmd)
	rootCmd.AddCommand(ChatCmd)

	tokensCmd, err := NewTokensCommand()
	if err != nil {
		return err
	}
	tokensCobra, err := cli.BuildCobraCommandFromWriterCommand(tokensCmd)
	if err != nil {
		return err
	}
	rootCmd.AddCommand(tokensCobra)

	agentsCmd, err := NewAgentsCommand()
	if err != nil {
		return err
	}
	agentsCobra, err := cli.BuildCobraCommandFromGlazeCommand(agentsCmd)
	if err != nil {
		return err
	}
	rootCmd.AddCommand(agentsCobra)

	operationsCmd, err := NewOperationsCommand()
	if err != nil {
		return err
	}
	operationsCobra, err := cli.BuildCobraCommandFromGlazeCommand(operationsCmd)
	if err != nil {
		return err
	}
	rootCmd.AddCommand(operationsCobra)

	return nil
}
