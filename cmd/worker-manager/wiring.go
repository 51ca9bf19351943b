// cmd/worker-manager/wiring.go
package main

import (
	"context"
	"fmt"
	"time"

	"template-verifier/internal/assets"
	awsclient "template-verifier/internal/common/aws"
	"template-verifier/internal/common/config"
	"template-verifier/internal/common/database"
	"template-verifier/internal/common/logger"
	"template-verifier/internal/common/observability"
	"template-verifier/internal/common/validation"
	"template-verifier/internal/events"
	"template-verifier/internal/extraction"
	"template-verifier/internal/matching"
	"template-verifier/internal/search"
	"template-verifier/internal/templates"
	"template-verifier/internal/verification"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"
)

// components holds everything the workers and the ops server share.
type components struct {
	service *verification.Service
	schemas *validation.SchemaSet
	pingers map[string]database.Pinger
	closers []func() error
}

func (c *components) addCloser(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close releases backing connections in reverse order of creation.
func (c *components) Close(log logger.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Warn("close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	c.closers = nil
}

func buildComponents(ctx context.Context, cfg *config.Config, obs *observability.Observability, log logger.Logger) (*components, error) {
	c := &components{pingers: map[string]database.Pinger{}}

	schemas, err := validation.LoadSchemaSet(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("load activity registry: %w", err)
	}
	c.schemas = schemas

	repo, err := buildRepository(ctx, cfg, c, log)
	if err != nil {
		c.Close(log)
		return nil, err
	}

	index, err := buildIndex(ctx, cfg, repo, c, log)
	if err != nil {
		c.Close(log)
		return nil, err
	}

	publisher, err := buildPublisher(ctx, cfg, c)
	if err != nil {
		c.Close(log)
		return nil, err
	}

	engine, err := buildEngine(cfg.Matching, obs.TracerProvider())
	if err != nil {
		c.Close(log)
		return nil, fmt.Errorf("build matching engine: %w", err)
	}

	store, err := assets.NewFileStore(afero.NewOsFs(), cfg.Storage.AssetDir)
	if err != nil {
		c.Close(log)
		return nil, fmt.Errorf("open asset store: %w", err)
	}

	opts := []verification.Option{
		verification.WithAssetStore(store),
		verification.WithIndex(index),
		verification.WithPublisher(publisher),
		verification.WithMatchRecorder(obs),
		verification.WithAssessmentRules(assessmentRules(cfg.Matching.Assessment)),
		verification.WithTracerProvider(obs.TracerProvider()),
	}
	if cfg.Extractor.Enabled {
		extractor, err := extraction.NewHTTPExtractor(extraction.Config{
			BaseURL:      cfg.Extractor.BaseURL,
			Path:         cfg.Extractor.Path,
			Timeout:      cfg.Extractor.Timeout,
			FieldMapping: extraction.FieldMapping(cfg.Extractor.FieldMapping),
		}, log)
		if err != nil {
			c.Close(log)
			return nil, fmt.Errorf("build extractor: %w", err)
		}
		opts = append(opts, verification.WithExtractor(extractor))
	}

	c.service = verification.NewService(repo, engine, log, opts...)
	return c, nil
}

func buildRepository(ctx context.Context, cfg *config.Config, c *components, log logger.Logger) (templates.Repository, error) {
	ids := templates.NewIDGenerator(time.Now)

	var repo templates.Repository
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pg, err := database.NewPostgres(ctx, cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		c.addCloser(pg.Close)
		c.pingers["postgres"] = pg

		pgRepo := templates.NewPostgresRepository(pg.DB, ids)
		if cfg.Database.Postgres.EnsureSchema {
			if err := pgRepo.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("ensure template schema: %w", err)
			}
		}
		repo = pgRepo
		log.Info("template repository ready", map[string]interface{}{"backend": "postgres"})
	default:
		repo = templates.NewMemoryRepository(ids)
		log.Info("template repository ready", map[string]interface{}{"backend": "memory"})
	}

	if cfg.Storage.Cache.Enabled {
		rc := database.NewRedis(cfg.Database.Redis)
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, err
		}
		c.addCloser(rc.Close)
		c.pingers["redis"] = rc
		repo = templates.NewCachedRepository(repo, rc.Client, cfg.Storage.Cache.TTL, cfg.Storage.Cache.Prefix, log)
	}
	return repo, nil
}

// buildIndex prefers Elasticsearch. Without it an in-process index is
// seeded from the repository so search works from the first job.
func buildIndex(ctx context.Context, cfg *config.Config, repo templates.Repository, c *components, log logger.Logger) (search.Index, error) {
	if cfg.Database.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		idx := search.NewTemplateIndex(es.Client, cfg.Search.Index, log, search.WithRefresh(cfg.Search.Refresh))
		if err := idx.EnsureIndex(ctx); err != nil {
			return nil, err
		}
		c.pingers["elasticsearch"] = es
		return idx, nil
	}

	idx := search.NewMemoryIndex()
	records, err := repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed search index: %w", err)
	}
	for _, rec := range records {
		if err := idx.Index(ctx, rec); err != nil {
			return nil, err
		}
	}
	log.Info("in-memory search index seeded", map[string]interface{}{"templates": len(records)})
	return idx, nil
}

func buildPublisher(ctx context.Context, cfg *config.Config, c *components) (events.Publisher, error) {
	var sinks events.Fanout

	if sns := cfg.Notifications.SNS; sns.Enabled {
		client, err := awsclient.NewSNSClient(ctx, sns.Region, sns.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("create sns client: %w", err)
		}
		sinks = append(sinks, events.NewSNSPublisher(client, sns.TopicARN))
	}
	if kafka := cfg.Notifications.Kafka; kafka.Enabled {
		kp := events.NewKafkaPublisher(events.ParseBrokers(kafka.Brokers), kafka.Topic)
		c.addCloser(kp.Close)
		sinks = append(sinks, kp)
	}

	if len(sinks) == 0 {
		return events.NopPublisher{}, nil
	}
	return sinks, nil
}

func buildEngine(mc config.MatchingConfig, tp trace.TracerProvider) (*matching.Engine, error) {
	engineCfg := matching.DefaultConfig()
	engineCfg.Weights = overlayWeights(engineCfg.Weights, mc.Weights)
	if mc.RelevanceThreshold > 0 {
		engineCfg.RelevanceThreshold = mc.RelevanceThreshold
	}
	if mc.MatchThreshold > 0 {
		engineCfg.MatchThreshold = mc.MatchThreshold
	}
	if mc.LowConfidenceCoverage > 0 {
		engineCfg.LowConfidenceCoverage = mc.LowConfidenceCoverage
	}
	engineCfg.Parallelism = mc.Parallelism

	patterns := matching.DefaultPatternSet()
	if len(mc.ExtraAnchors) > 0 {
		var err error
		patterns, err = patterns.Extend(mc.PatternVersion, mc.ExtraAnchors...)
		if err != nil {
			return nil, err
		}
	}
	return matching.NewEngine(engineCfg, patterns, matching.WithTracerProvider(tp))
}

func overlayWeights(w matching.Weights, o config.WeightsConfig) matching.Weights {
	set := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	set(&w.Board, o.Board)
	set(&w.Program, o.Program)
	set(&w.StudentName, o.StudentName)
	set(&w.Identifier, o.Identifier)
	set(&w.ExamYear, o.ExamYear)
	set(&w.Subjects, o.Subjects)
	set(&w.RawText, o.RawText)
	return w
}

func assessmentRules(ac config.AssessmentConfig) matching.AssessmentRules {
	rules := matching.DefaultAssessmentRules()
	if len(ac.ProgramKeywords) > 0 {
		rules.ProgramKeywords = ac.ProgramKeywords
	}
	if len(ac.LenientBoards) > 0 {
		rules.LenientBoards = ac.LenientBoards
	}
	if len(ac.LenientPrograms) > 0 {
		rules.LenientPrograms = ac.LenientPrograms
	}
	return rules
}
