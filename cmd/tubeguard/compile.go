package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tubeguard/internal/settings"
	"tubeguard/internal/stylesheet"
)

func newCompileCommand(ctx *commandContext) *cobra.Command {
	var (
		early     bool
		endscreen bool
		validate  bool
	)
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the stylesheet compiled from the stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			s, err := store.Get(cmd.Context())
			if err != nil {
				return err
			}
			var css string
			switch {
			case endscreen:
				css = stylesheet.Endscreen()
			case early:
				css = stylesheet.EarlyPaint(settings.LocalFlags(s))
			default:
				css = stylesheet.Compile(s)
			}
			if validate {
				if err := stylesheet.Validate(css); err != nil {
					return fmt.Errorf("compiled stylesheet: %w", err)
				}
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), css)
			return err
		},
	}
	cmd.Flags().BoolVar(&early, "early", false, "Compile from the local flag mirror, as at first paint")
	cmd.Flags().BoolVar(&endscreen, "endscreen", false, "Print the end-of-video overlay stylesheet")
	cmd.Flags().BoolVar(&validate, "validate", false, "Parse the output and check every selector")
	return cmd
}
