package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tubeguard/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change stored preferences",
	}
	settingsCmd.AddCommand(newSettingsGetCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	return settingsCmd
}

func newSettingsGetCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get [key...]",
		Short: "Show stored preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			s, err := store.Get(cmd.Context())
			if err != nil {
				return err
			}
			all := settings.ToMap(s)
			keys := args
			if len(keys) == 0 {
				keys = settings.Keys()
			}
			view := make(map[string]any, len(keys))
			for _, k := range keys {
				v, ok := all[k]
				if !ok {
					return fmt.Errorf("%w: %s", settings.ErrUnknownKey, k)
				}
				view[k] = v
			}
			if asJSON {
				return writeJSON(cmd, view)
			}
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{k, fmt.Sprint(view[k])})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), []string{"Key", "Value"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set key=value...",
		Short: "Change stored preferences",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			cur, err := store.Get(cmd.Context())
			if err != nil {
				return err
			}
			next, err := applyAssignments(cur, args)
			if err != nil {
				return err
			}
			if err := store.Set(cmd.Context(), next); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", store.Path())
			return nil
		},
	}
}

// applyAssignments layers key=value pairs over cur. Any unknown key or
// invalid value rejects the whole change.
func applyAssignments(cur settings.Settings, args []string) (settings.Settings, error) {
	raw := settings.ToMap(cur)
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return cur, fmt.Errorf("expected key=value, got %q", arg)
		}
		raw[settings.CanonicalKey(k)] = strings.TrimSpace(v)
	}
	next, problems := settings.FromMap(raw)
	if len(problems) > 0 {
		return cur, errors.Join(problems...)
	}
	return next, nil
}
