package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/obras/internal/backup"
	"github.com/zulandar/obras/internal/config"
	"github.com/zulandar/obras/internal/metrics"
	"github.com/zulandar/obras/internal/obra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Document snapshot commands",
	}
	cmd.AddCommand(newBackupRunCmd())
	return cmd
}

func newBackupRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Write a snapshot of the document to every configured sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := openFromConfig(configPath, nil)
			if err != nil {
				return err
			}
			b, err := newBackup(cmd.Context(), cfg, store, nil)
			if err != nil {
				return err
			}
			name, err := b.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", name)
			return nil
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

// newBackup builds the sinks named in the backup config. The directory sink
// is always present; S3 is added when a bucket is configured.
func newBackup(ctx context.Context, cfg *config.Config, store *obra.Store, m *metrics.Metrics) (*backup.Backup, error) {
	sinks := []backup.Sink{&backup.DirSink{Dir: cfg.Backup.Dir, Keep: cfg.Backup.Keep}}
	if s3cfg := cfg.Backup.S3; s3cfg.Bucket != "" {
		s3Sink, err := backup.NewS3Sink(ctx, backup.S3Opts{
			Bucket:    s3cfg.Bucket,
			Region:    s3cfg.Region,
			Endpoint:  s3cfg.Endpoint,
			Prefix:    s3cfg.Prefix,
			PathStyle: s3cfg.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3Sink)
	}
	return backup.New(backup.Opts{Source: store, Sinks: sinks, Metrics: m})
}
