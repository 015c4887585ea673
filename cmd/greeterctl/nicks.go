package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onnwee/greeter/irc"
	"github.com/onnwee/greeter/nicks"
)

func newNicksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nicks",
		Short: "List, add and copy known nicks",
	}

	cmd.AddCommand(newNicksListCmd())
	cmd.AddCommand(newNicksAddCmd())
	cmd.AddCommand(newNicksCopyCmd())
	return cmd
}

// withStore opens the store named by --source and closes it after fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, s nicks.Store) error) (err error) {
	source, _ := cmd.Flags().GetString("source")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := nicks.Open(ctx, source)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, s)
}

func newNicksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every known nick key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s nicks.Store) error {
				set, err := s.Load(ctx)
				if err != nil {
					return err
				}
				for _, k := range set.Sorted() {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			})
		},
	}
}

func newNicksAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <nick>...",
		Short: "Mark nicks as known so they are never welcomed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := nicks.NewSet()
			for _, n := range args {
				keys.Add(irc.Canonicalize(n))
			}
			return withStore(cmd, func(ctx context.Context, s nicks.Store) error {
				if err := s.Save(ctx, keys); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %d nick(s)\n", len(keys))
				return nil
			})
		},
	}
}

func newNicksCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <dest>",
		Short: "Merge every key from --source into another store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, src nicks.Store) error {
				set, err := src.Load(ctx)
				if err != nil {
					return fmt.Errorf("load source: %w", err)
				}
				dst, err := nicks.Open(ctx, args[0])
				if err != nil {
					return err
				}
				defer dst.Close()
				if err := dst.Save(ctx, set); err != nil {
					return fmt.Errorf("save dest: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "copied %d nick(s)\n", len(set))
				return nil
			})
		},
	}
}
