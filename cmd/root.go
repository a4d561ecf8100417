// Package cmd assembles the synthizer demo CLI, grounded on the
// teacher's cmd/root.go subcommand-registration shape. Unlike the
// teacher, no viper settings layer is bound here: config-file parsing
// is an explicit non-goal of this module, so flags are read directly
// off each subcommand's own cobra.Command.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/synthizer-project/synthizer/cmd/play"
)

// RootCommand creates and returns the root command for the demo CLI.
func RootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "synthizer",
		Short: "Synthizer audio engine demo CLI",
	}

	rootCmd.AddCommand(play.Command())

	return rootCmd
}
