package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/turtacn/embedscope/internal/application/embedding"
	"github.com/turtacn/embedscope/internal/config"
	"github.com/turtacn/embedscope/internal/domain/pointcloud"
	"github.com/turtacn/embedscope/internal/infrastructure/database/redis"
	"github.com/turtacn/embedscope/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/embedscope/pkg/client"
)

// EngineOptions overrides parts of the wiring.  Zero values build everything
// from the configuration.
type EngineOptions struct {
	// Fetcher replaces the GraphQL client.
	Fetcher embedding.FetchService
	// Notify receives error notifications.  Nil logs them.
	Notify embedding.NotificationSink
	Now    func() time.Time
}

// Engine is one fully wired point cloud session together with the
// infrastructure it owns.
type Engine struct {
	Config    *config.Config
	Store     *pointcloud.Store
	Session   *embedding.Session
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	coord    *embedding.Coordinator
	notifier *embedding.Notifier
	redis    *redis.Client
	producer *kafka.Producer
	stream   *embedding.EventStream
	logger   logging.Logger

	reloadMu sync.Mutex
}

// NewEngine builds the fetch pipeline described by cfg:
//
//	GraphQL client -> [redis cache] -> coordinator -> store <- session
//
// with lifecycle events going to kafka when enabled.
func NewEngine(ctx context.Context, cfg *config.Config, logger logging.Logger, opts EngineOptions) (_ *Engine, err error) {
	logger = logging.OrNop(logger)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	e.Collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return nil, err
	}
	e.Metrics = prometheus.NewAppMetrics(e.Collector)

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher, err = client.NewClient(cfg.Fetch.Endpoint, cfg.Fetch.APIKey,
			client.WithTimeout(cfg.Fetch.Timeout),
			client.WithGraphQLPath(cfg.Fetch.GraphQLPath),
			client.WithLogger(clientLogger{logger.Named("graphql")}),
		)
		if err != nil {
			return nil, err
		}
	}
	var invalidator embedding.CacheInvalidator
	if cfg.Fetch.Policy == config.PolicyCacheFirst {
		redisCfg := cfg.Redis
		e.redis, err = redis.NewClient(&redisCfg, logger)
		if err != nil {
			return nil, err
		}
		cache := redis.NewRedisCache(e.redis, logger,
			redis.WithPrefix(cfg.Redis.KeyPrefix),
			redis.WithDefaultTTL(cfg.Fetch.CacheTTL),
			redis.WithLoadTimeout(cfg.Fetch.Timeout))
		cached := embedding.NewCachedFetchService(fetcher, cache, cfg.Fetch.CacheTTL, e.Metrics, logger)
		fetcher, invalidator = cached, cached
	}

	if cfg.Kafka.Enabled {
		if err := ensureLifecycleTopic(ctx, cfg.Kafka, logger); err != nil {
			return nil, err
		}
		e.producer, err = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:          cfg.Kafka.Brokers,
			Topic:            cfg.Kafka.Topic,
			Acks:             cfg.Kafka.Acks,
			BatchTimeout:     cfg.Kafka.BatchTimeout,
			WriteTimeout:     cfg.Kafka.WriteTimeout,
			CompressionCodec: cfg.Kafka.Compression,
		}, logger)
		if err != nil {
			return nil, err
		}
		e.stream = embedding.NewEventStream(e.producer, logger.Named("events"))
	}

	mode, err := pointcloud.ParseDisplayMode(cfg.PointCloud.DisplayMode)
	if err != nil {
		return nil, err
	}
	shortNames := cfg.PointCloud.ShortNameRegistry()
	e.Store = pointcloud.NewStore(logger,
		pointcloud.WithShortNames(shortNames),
		pointcloud.WithRecorder(e.Metrics))
	e.coord = embedding.NewCoordinator(fetcher, e.Store, logger,
		embedding.WithFetchTimeout(cfg.Fetch.Timeout),
		embedding.WithDisplayMode(mode),
		embedding.WithFetchRecorder(e.Metrics),
		embedding.WithEventStream(e.stream))

	datasets, err := datasetContext(cfg.PointCloud, opts.Now())
	if err != nil {
		return nil, err
	}
	def, err := cfg.PointCloud.MetricDefinition()
	if err != nil {
		return nil, err
	}
	umap := cfg.PointCloud.UMAPParameters()
	hdbscan := cfg.PointCloud.HDBSCANParameters()
	e.Session, err = embedding.NewSession(e.Store, e.coord, embedding.SessionConfig{
		EmbeddingID: cfg.PointCloud.EmbeddingID,
		Datasets:    datasets,
		Window:      cfg.PointCloud.Window,
		UMAP:        &umap,
		HDBSCAN:     &hdbscan,
		Metric:      def,
		ShortNames:  shortNames,
		Cache:       invalidator,
		Recorder: embedding.FanoutRecorder{
			e.Metrics,
			embedding.SelectionEvents{Stream: e.stream, EmbeddingID: e.embeddingID},
		},
	}, logger)
	if err != nil {
		return nil, err
	}

	sink := opts.Notify
	if sink == nil {
		sink = embedding.LogSink{Logger: logger}
	}
	e.notifier = embedding.NewNotifier(e.Store, sink, logger)
	return e, nil
}

func (e *Engine) embeddingID() string {
	if e.Session == nil {
		return e.Config.PointCloud.EmbeddingID
	}
	return e.Session.Parameters().EmbeddingID
}

// Reload applies the point cloud parameters that changed between the last
// applied configuration and cfg.  Parameters the configuration did not touch
// keep their current values, including ones changed over the API since.
// Unchanged parameters issue nothing.
func (e *Engine) Reload(ctx context.Context, cfg *config.Config) (*embedding.Handle, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	prev, next := e.Config.PointCloud, cfg.PointCloud
	def, err := next.MetricDefinition()
	if err != nil {
		return nil, err
	}
	prevDef, _ := prev.MetricDefinition()

	h, err := e.Session.Update(ctx, func(p *embedding.Parameters) {
		if next.EmbeddingID != prev.EmbeddingID {
			p.EmbeddingID = next.EmbeddingID
		}
		if u := next.UMAPParameters(); u != prev.UMAPParameters() {
			p.UMAP = u
		}
		if hp := next.HDBSCANParameters(); hp != prev.HDBSCANParameters() {
			p.HDBSCAN = hp
		}
		if def != nil && def != prevDef {
			p.Metric = def
		}
	})
	if err != nil {
		return nil, err
	}
	e.Config = cfg
	return h, nil
}

// Ping checks the cache backend.  It is nil when no cache is configured.
func (e *Engine) Ping(ctx context.Context) error {
	if e.redis == nil {
		return nil
	}
	return e.redis.Ping(ctx)
}

// Close releases everything in reverse construction order.  Buffered
// lifecycle events are flushed before the producer closes.
func (e *Engine) Close() {
	if e.notifier != nil {
		e.notifier.Close()
	}
	if e.coord != nil {
		e.coord.Close()
	}
	e.stream.Close()
	if e.producer != nil {
		if err := e.producer.Close(); err != nil {
			e.logger.Warn("kafka producer close failed", logging.Err(err))
		}
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.logger.Warn("redis close failed", logging.Err(err))
		}
	}
}

func ensureLifecycleTopic(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) error {
	if !cfg.AutoCreateTopics {
		return nil
	}
	tm, err := kafka.NewTopicManager(cfg.Brokers, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopic(ctx, kafka.LifecycleTopic(cfg.Topic, cfg.NumPartitions, cfg.ReplicationFactor))
}

// datasetContext resolves the configured windows.  Without a primary window
// the dataset is the trailing window ending at now.
func datasetContext(pc config.PointCloudConfig, now time.Time) (embedding.DatasetContext, error) {
	var d embedding.DatasetContext
	if pc.Datasets.Primary == (config.DatasetWindow{}) {
		now = now.UTC()
		d.Primary = embedding.DatasetBounds{Start: now.Add(-pc.Window), End: now}
	} else {
		start, end, err := pc.Datasets.Primary.Bounds()
		if err != nil {
			return d, err
		}
		d.Primary = embedding.DatasetBounds{Start: start, End: end}
	}
	if pc.Datasets.Reference != nil {
		start, end, err := pc.Datasets.Reference.Bounds()
		if err != nil {
			return d, err
		}
		d.Reference = &embedding.DatasetBounds{Start: start, End: end}
	}
	return d, nil
}

// clientLogger adapts logging.Logger to the printf-style client.Logger.
type clientLogger struct{ l logging.Logger }

func (c clientLogger) Debugf(format string, args ...interface{}) { c.l.Debug(fmt.Sprintf(format, args...)) }
func (c clientLogger) Infof(format string, args ...interface{})  { c.l.Info(fmt.Sprintf(format, args...)) }
func (c clientLogger) Errorf(format string, args ...interface{}) { c.l.Error(fmt.Sprintf(format, args...)) }
