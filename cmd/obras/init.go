package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/obras/internal/config"
)

func newInitCmd() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and an empty document",
		Long:  "Writes a default obras.yaml and creates the document it points at if none exists yet. An existing document is left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, configPath, force)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func runInit(cmd *cobra.Command, configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	data, err := config.Default().Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", configPath, err)
	}

	_, store, err := openFromConfig(configPath, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s\n", configPath)
	fmt.Fprintf(out, "Document: %s (%d obras)\n", store.Backend().Name(), store.Count())
	return nil
}
