package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFirmantesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "firmantes",
		Short: "Signer block commands",
	}
	cmd.AddCommand(newFirmantesListCmd())
	cmd.AddCommand(newFirmantesSetCmd())
	return cmd
}

func newFirmantesListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List signer roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openFromConfig(configPath, nil)
			if err != nil {
				return err
			}
			f := store.Firmantes()
			roles := make([]string, 0, len(f))
			for r := range f {
				roles = append(roles, r)
			}
			sort.Strings(roles)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ROL\tNOMBRE")
			for _, r := range roles {
				fmt.Fprintf(w, "%s\t%s\n", r, dash(f[r]))
			}
			return w.Flush()
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func newFirmantesSetCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "set <role> <name>",
		Short: "Set the person who signs in a role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := openFromConfig(configPath, nil)
			if err != nil {
				return err
			}
			if err := store.SetFirmante(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], args[1])
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}
