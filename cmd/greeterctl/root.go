package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/onnwee/greeter/config"
	"github.com/onnwee/greeter/irc"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "greeterctl",
		Short:        "Maintain the greeter's known nicks",
		SilenceUsage: true,
	}

	def := os.Getenv("NICK_SOURCE")
	if def == "" {
		def = config.DefaultNickSource
	}
	cmd.PersistentFlags().String("source", def, "Nick store: JSON file path, sqlite://path or postgres:// DSN.")

	cmd.AddCommand(newNicksCmd())
	cmd.AddCommand(newCanonicalCmd())
	return cmd
}

func newCanonicalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "canonical <nick>...",
		Short: "Print the key each nick is stored under",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, n := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", n, irc.Canonicalize(n))
			}
			return nil
		},
	}
}
