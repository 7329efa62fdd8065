// Package app wires the services from configuration for the binaries in cmd.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aquatracking/aquatracking/internal/cache"
	"github.com/aquatracking/aquatracking/internal/cloud"
	"github.com/aquatracking/aquatracking/internal/config"
	"github.com/aquatracking/aquatracking/internal/database"
	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/metrics"
	"github.com/aquatracking/aquatracking/internal/notify"
	"github.com/aquatracking/aquatracking/internal/repository"
	"github.com/aquatracking/aquatracking/internal/service"
)

// SetupLogging configures the global logger from LOG_LEVEL and LOG_PRETTY.
func SetupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(config.LogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if config.LogPretty() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// Runtime holds the wired services and whatever has to be closed on exit.
type Runtime struct {
	Services *service.Services
	Metrics  *metrics.Metrics
	closers  []func() error
}

func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}
}

// Build opens the configured store and attaches the optional notifiers,
// archive and cache.
func Build(ctx context.Context) (*Runtime, error) {
	rt := &Runtime{Metrics: metrics.New()}

	store, err := rt.openStore(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	notifiers := notify.Multi{notify.Log{Logger: log.With().Str("component", "alerts").Logger()}}
	if brokers := config.KafkaBrokers(); len(brokers) > 0 {
		k := notify.NewKafka(brokers, config.KafkaAlertTopic())
		rt.closers = append(rt.closers, k.Close)
		notifiers = append(notifiers, k)
		log.Info().Strs("brokers", brokers).Str("topic", config.KafkaAlertTopic()).Msg("kafka alert stream enabled")
	}

	var archiver service.Archiver
	if config.UseCloudServices() {
		if arn := config.SNSTopicArn(); arn != "" {
			snsClient, err := cloud.NewSNSClient(ctx, config.AWSRegion(), arn)
			if err != nil {
				rt.Close()
				return nil, err
			}
			notifiers = append(notifiers, snsClient)
			log.Info().Str("topic", arn).Msg("sns notifications enabled")
		}
		s3Client, err := cloud.NewS3Client(ctx, config.AWSRegion(), config.S3Bucket())
		if err != nil {
			rt.Close()
			return nil, err
		}
		archiver = s3Client
		log.Info().Str("bucket", config.S3Bucket()).Msg("s3 archive enabled")
	}

	var c cache.Cache = cache.Nop{}
	if addr := config.RedisAddr(); addr != "" {
		r := cache.NewRedis(addr)
		if err := r.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", addr).Msg("redis unavailable, dashboard cache disabled")
			_ = r.Close()
		} else {
			rt.closers = append(rt.closers, r.Close)
			c = r
		}
	}

	rt.Services = service.New(service.Deps{
		Store:    store,
		Policy:   config.Policy(),
		Notifier: notifiers,
		Archiver: archiver,
		Cache:    c,
		CacheTTL: config.CacheTTL(),
		Metrics:  rt.Metrics,
		Logger:   &log.Logger,
	})
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context) (docstore.Store, error) {
	switch backend := config.StoreBackend(); backend {
	case "memory":
		log.Warn().Msg("using the in-memory store; data is lost on exit")
		return docstore.NewMemory(), nil
	case "dynamodb":
		store, err := cloud.NewDynamoDBStore(ctx, config.AWSRegion(), config.TablePrefix())
		if err != nil {
			return nil, err
		}
		if err := store.EnsureTables(ctx, repository.AllCollections...); err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		db, err := database.Connect(config.DBDSN())
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, db.Close)
		store := database.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}
}
