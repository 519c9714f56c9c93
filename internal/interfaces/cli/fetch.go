package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/embedscope/internal/application/embedding"
	"github.com/turtacn/embedscope/internal/domain/pointcloud"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/pkg/errors"
)

type fetchOptions struct {
	embeddingID string
	sort        string
	dir         string
}

// NewFetchCmd creates the fetch command: one fetch, then the cluster list.
func NewFetchCmd() *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the point cloud once and print its clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return runFetch(cmd, cliCtx, opts, EngineOptions{})
		},
	}
	cmd.Flags().StringVar(&opts.embeddingID, "embedding-id", "", "embedding to fetch (default: pointcloud.embedding_id)")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "sort column: size|driftRatio|primaryMetricValue")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "sort direction: asc|desc")
	return cmd
}

func runFetch(cmd *cobra.Command, cliCtx *CLIContext, opts *fetchOptions, engineOpts EngineOptions) error {
	by, err := pointcloud.ParseClusterSort(opts.sort, opts.dir)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	engine, err := NewEngine(ctx, cliCtx.Config, cliCtx.Logger, engineOpts)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := fetchOnce(ctx, engine, opts.embeddingID); err != nil {
		return err
	}
	if cliCtx.OutputFormat == "json" {
		doc, err := engine.Session.Document(time.Now())
		if err != nil {
			return err
		}
		return printJSON(cmd, doc)
	}
	views := pointcloud.SortClusterViews(engine.Store.Snapshot().ClusterViews(), by)
	renderClusters(cmd.OutOrStdout(), views, cliCtx.NoColor)
	return nil
}

// fetchOnce issues the initial request, or the request for embeddingID when
// it differs from the configured one, and waits for it.
func fetchOnce(ctx context.Context, engine *Engine, embeddingID string) error {
	var h *embedding.Handle
	if embeddingID != "" && embeddingID != engine.Session.Parameters().EmbeddingID {
		var err error
		if h, err = engine.Session.SetEmbeddingID(ctx, embeddingID); err != nil {
			return err
		}
	} else {
		h = engine.Session.Start(ctx)
	}

	start := time.Now()
	outcome, err := h.Wait(ctx)
	if err != nil {
		return err
	}
	if outcome != embedding.OutcomeResolved {
		state := engine.Session.State()
		detail := ""
		if state.Error != nil {
			detail = *state.Error
		}
		return errors.ErrFetchFailed.WithDetail(detail)
	}
	snap := engine.Store.Snapshot()
	engine.logger.Info("point cloud fetched",
		logging.String("embedding_id", engine.Session.Parameters().EmbeddingID),
		logging.Int("points", len(snap.Points)),
		logging.Int("clusters", len(snap.Clusters)),
		logging.Duration("elapsed", time.Since(start)))
	return nil
}
