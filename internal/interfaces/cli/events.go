package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/embedscope/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/pkg/errors"
)

// NewEventsCmd creates the events command, which tails the lifecycle topic.
func NewEventsCmd() *cobra.Command {
	var (
		groupID       string
		fromBeginning bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail point cloud lifecycle events from Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			kc := cliCtx.Config.Kafka
			if len(kc.Brokers) == 0 || kc.Topic == "" {
				return errors.ErrInvalidConfig.WithDetail("kafka.brokers and kafka.topic are required")
			}
			if groupID == "" {
				groupID = kc.GroupID
			}
			offset := "latest"
			if fromBeginning {
				offset = "earliest"
			}
			handler := eventPrinter(cmd, cliCtx)
			consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
				Brokers:         kc.Brokers,
				GroupID:         groupID,
				Topic:           kc.Topic,
				AutoOffsetReset: offset,
			}, handler, cliCtx.Logger)
			if err != nil {
				return err
			}
			return tailEvents(cmd.Context(), consumer)
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "consumer group (default: kafka.group_id)")
	cmd.Flags().BoolVar(&fromBeginning, "from-beginning", false, "start at the earliest retained event")
	return cmd
}

type eventSource interface {
	Start(ctx context.Context) error
	Close() error
}

// tailEvents runs src until ctx is cancelled.
func tailEvents(ctx context.Context, src eventSource) error {
	if err := src.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return src.Close()
}

// eventPrinter writes one line per event, or the raw envelope in json mode.
func eventPrinter(cmd *cobra.Command, cliCtx *CLIContext) kafka.MessageHandler {
	out := cmd.OutOrStdout()
	return func(_ context.Context, msg *kafka.Message) error {
		env, err := kafka.MessageToEventEnvelope(msg)
		if err != nil {
			return err
		}
		if cliCtx.OutputFormat == "json" {
			return printJSON(cmd, env)
		}
		ev, err := env.LifecycleEvent()
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s  %-18s  %s", env.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"), env.EventType, env.AggregateID)
		if ev.Generation > 0 {
			line += fmt.Sprintf("  gen=%d", ev.Generation)
		}
		switch {
		case ev.Error != "":
			line += "  error=" + ev.Error
		case ev.Interaction != "":
			line += "  interaction=" + ev.Interaction
		case ev.Points > 0 || ev.Clusters > 0:
			line += fmt.Sprintf("  points=%d clusters=%d duration=%dms", ev.Points, ev.Clusters, ev.DurationMillis)
		}
		fmt.Fprintln(out, line)
		cliCtx.Logger.Debug("event printed", logging.String("event_id", env.EventID), logging.Int64("offset", msg.Offset))
		return nil
	}
}
