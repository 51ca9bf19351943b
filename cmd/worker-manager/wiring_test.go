// cmd/worker-manager/wiring_test.go
package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"template-verifier/internal/common/camunda/camundatest"
	"template-verifier/internal/common/config"
	"template-verifier/internal/common/database"
	"template-verifier/internal/common/logger"
	"template-verifier/internal/common/observability"
	"template-verifier/internal/events"
	"template-verifier/internal/matching"
	"template-verifier/internal/models"
	"template-verifier/internal/search"
	"template-verifier/internal/templates"
	"template-verifier/internal/verification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App:      config.AppConfig{Name: "template-verifier"},
		Camunda:  config.CamundaConfig{MaxJobsActive: 4, Timeout: 20000},
		Storage:  config.StorageConfig{Backend: config.BackendMemory, AssetDir: t.TempDir()},
		Registry: config.RegistryConfig{Path: filepath.Join("..", "..", "configs", "activity-registry.json")},
		Matching: config.MatchingConfig{
			RelevanceThreshold:    0.6,
			MatchThreshold:        0.65,
			LowConfidenceCoverage: 0.5,
			PatternVersion:        "v1",
		},
		Search: config.SearchConfig{Index: "reference-templates"},
	}
}

func TestBuildEngine_Overrides(t *testing.T) {
	engine, err := buildEngine(config.MatchingConfig{
		MatchThreshold: 0.7,
		Weights:        config.WeightsConfig{Subjects: 0.5},
		ExtraAnchors:   []string{"Provisional Marksheet"},
		PatternVersion: "v2",
	}, noop.NewTracerProvider())
	require.NoError(t, err)

	cfg := engine.Config()
	defaults := matching.DefaultConfig()
	assert.Equal(t, 0.7, cfg.MatchThreshold)
	assert.Equal(t, defaults.RelevanceThreshold, cfg.RelevanceThreshold)
	assert.Equal(t, 0.5, cfg.Weights.Subjects)
	assert.Equal(t, defaults.Weights.Board, cfg.Weights.Board)

	assert.Equal(t, "v2", engine.Patterns().Version())
	assert.Contains(t, engine.Patterns().Labels(), "PROVISIONAL MARKSHEET")
}

func TestBuildEngine_InvalidThreshold(t *testing.T) {
	_, err := buildEngine(config.MatchingConfig{MatchThreshold: 1.4}, noop.NewTracerProvider())
	assert.Error(t, err)
}

func TestAssessmentRules(t *testing.T) {
	defaults := matching.DefaultAssessmentRules()

	rules := assessmentRules(config.AssessmentConfig{})
	assert.Equal(t, defaults, rules)

	rules = assessmentRules(config.AssessmentConfig{LenientBoards: []string{"GSEB"}})
	assert.Equal(t, []string{"GSEB"}, rules.LenientBoards)
	assert.Equal(t, defaults.ProgramKeywords, rules.ProgramKeywords)
}

func TestBuildIndex_SeedsMemoryIndex(t *testing.T) {
	ctx := context.Background()
	repo := templates.NewMemoryRepository(templates.NewIDGenerator(time.Now))
	_, err := repo.Add(ctx, templates.Draft{
		Board:    "CBSE",
		Program:  "AISSE",
		FieldSet: models.ExtractedFieldSet{StudentName: "Asha Rao", RawText: "CENTRAL BOARD OF SECONDARY EDUCATION"},
	})
	require.NoError(t, err)

	c := &components{pingers: map[string]database.Pinger{}}
	idx, err := buildIndex(ctx, memoryConfig(t), repo, c, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.Empty(t, c.pingers)

	res, err := idx.Search(ctx, search.Query{Text: "central board"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, "CBSE", res.Hits[0].Board)
}

func TestBuildPublisher(t *testing.T) {
	ctx := context.Background()

	c := &components{pingers: map[string]database.Pinger{}}
	pub, err := buildPublisher(ctx, memoryConfig(t), c)
	require.NoError(t, err)
	assert.IsType(t, events.NopPublisher{}, pub)

	cfg := memoryConfig(t)
	cfg.Notifications.Kafka = config.KafkaConfig{Enabled: true, Brokers: "kafka-1:9092, kafka-2:9092", Topic: "template-events"}
	pub, err = buildPublisher(ctx, cfg, c)
	require.NoError(t, err)
	fanout, ok := pub.(events.Fanout)
	require.True(t, ok)
	assert.Len(t, fanout, 1)
	assert.Len(t, c.closers, 1)
	c.Close(logger.NewTestLogger(t))
}

func TestBuildComponents_MemoryBackend(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger(t)
	obs := observability.New("template-verifier-test")
	defer obs.Shutdown()

	comps, err := buildComponents(ctx, memoryConfig(t), obs, log)
	require.NoError(t, err)
	defer comps.Close(log)

	require.NotNil(t, comps.service)
	assert.True(t, comps.schemas.Has("match-document"))
	assert.Empty(t, comps.pingers)

	fs := models.ExtractedFieldSet{
		StudentName: "Asha Rao",
		SeatNumber:  "B123456",
		ExamYear:    "2021",
		RawText:     "CENTRAL BOARD OF SECONDARY EDUCATION MARKS STATEMENT",
	}
	rec, err := comps.service.RegisterTemplate(ctx, verification.RegisterRequest{Board: "CBSE", Program: "AISSE", FieldSet: &fs})
	require.NoError(t, err)

	res, err := comps.service.SearchTemplates(ctx, search.Query{Board: "cbse"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, rec.ID, res.Hits[0].TemplateID)
}

func TestRegistrations(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger(t)
	obs := observability.New("template-verifier-test")
	defer obs.Shutdown()

	cfg := memoryConfig(t)
	cfg.Workers = map[string]config.WorkerConfig{
		"delete-template": {Enabled: false},
		"match-document":  {Enabled: true, MaxJobsActive: 2, Timeout: 5000},
	}
	comps, err := buildComponents(ctx, cfg, obs, log)
	require.NoError(t, err)
	defer comps.Close(log)

	regs, err := buildRegistrations(cfg, comps, log)
	require.NoError(t, err)
	assert.Len(t, regs, 8)

	enabled := enabledRegistrations(cfg, regs, log)
	require.Len(t, enabled, 7)
	byType := map[string]registration{}
	for _, r := range enabled {
		byType[r.taskType] = r
	}
	assert.NotContains(t, byType, "delete-template")
	assert.Equal(t, 2, byType["match-document"].maxJobsActive)
	assert.Equal(t, 5*time.Second, byType["match-document"].timeout)

	list, ok := byType["list-templates"]
	require.True(t, ok)
	client := camundatest.NewJobClient()
	instrument(obs, list.taskType, list.handler)(client, camundatest.NewJob(t, 7, list.taskType, map[string]interface{}{}))

	vars := client.CompletedVariables(t)
	assert.EqualValues(t, 0, vars["count"])
}
