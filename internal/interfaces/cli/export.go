package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/embedscope/internal/application/embedding"
	"github.com/turtacn/embedscope/internal/config"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/internal/infrastructure/storage/minio"
)

// NewExportCmd creates the export command and its list subcommand.
func NewExportCmd() *cobra.Command {
	var embeddingID string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch the point cloud and upload a snapshot to object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return runExport(cmd, cliCtx, embeddingID, EngineOptions{})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots of an embedding, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return runExportList(cmd, cliCtx, embeddingID)
		},
	}
	cmd.PersistentFlags().StringVar(&embeddingID, "embedding-id", "", "embedding id (default: pointcloud.embedding_id)")
	cmd.AddCommand(list)
	return cmd
}

// openSnapshotRepository connects to the configured bucket.
func openSnapshotRepository(ctx context.Context, cfg *config.Config, logger logging.Logger) (*minio.MinIOClient, *minio.SnapshotRepository, error) {
	if err := cfg.ValidateMinIO(); err != nil {
		return nil, nil, err
	}
	client, err := minio.NewMinIOClient(ctx, &minio.MinIOConfig{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKey,
		SecretAccessKey: cfg.MinIO.SecretKey,
		UseSSL:          cfg.MinIO.UseSSL,
		Region:          cfg.MinIO.Region,
		Bucket:          cfg.MinIO.Bucket,
		Prefix:          cfg.MinIO.Prefix,
		PresignExpiry:   cfg.MinIO.PresignExpiry,
		RetentionDays:   cfg.MinIO.RetentionDays,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, minio.NewSnapshotRepository(client, logger), nil
}

func runExport(cmd *cobra.Command, cliCtx *CLIContext, embeddingID string, engineOpts EngineOptions) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	client, repo, err := openSnapshotRepository(ctx, cliCtx.Config, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer client.Close()

	return exportTo(ctx, cmd, cliCtx, repo, embeddingID, engineOpts)
}

func exportTo(ctx context.Context, cmd *cobra.Command, cliCtx *CLIContext, dst embedding.SnapshotStore, embeddingID string, engineOpts EngineOptions) error {
	engine, err := NewEngine(ctx, cliCtx.Config, cliCtx.Logger, engineOpts)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := fetchOnce(ctx, engine, embeddingID); err != nil {
		return err
	}
	loc, err := embedding.ExportSnapshot(ctx, engine.Session, dst, time.Now())
	if err != nil {
		return err
	}
	if cliCtx.OutputFormat == "json" {
		return printJSON(cmd, loc)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Snapshot uploaded to s3://%s/%s (%d bytes)\n", loc.Bucket, loc.Key, loc.Size)
	if loc.URL != "" {
		fmt.Fprintf(out, "Download: %s\n", loc.URL)
	}
	return nil
}

func runExportList(cmd *cobra.Command, cliCtx *CLIContext, embeddingID string) error {
	if embeddingID == "" {
		embeddingID = cliCtx.Config.PointCloud.EmbeddingID
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	client, repo, err := openSnapshotRepository(ctx, cliCtx.Config, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer client.Close()

	infos, err := repo.List(ctx, embeddingID)
	if err != nil {
		return err
	}
	if cliCtx.OutputFormat == "json" {
		return printJSON(cmd, infos)
	}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Key", "Size", "Last Modified"})
	table.SetAutoFormatHeaders(false)
	for _, info := range infos {
		table.Append([]string{info.Key, strconv.FormatInt(info.Size, 10), info.LastModified.UTC().Format(time.RFC3339)})
	}
	table.Render()
	return nil
}
