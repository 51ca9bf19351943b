// internal/workers/templates/register-template/handler.go
package registertemplate

import (
	"context"
	"fmt"
	"time"

	"template-verifier/internal/common/camunda"
	"template-verifier/internal/common/config"
	"template-verifier/internal/common/errors"
	"template-verifier/internal/common/logger"
	"template-verifier/internal/common/metrics"
	"template-verifier/internal/common/validation"
	"template-verifier/internal/models"
	"template-verifier/internal/verification"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "register-template"

type Registrar interface {
	RegisterTemplate(ctx context.Context, req verification.RegisterRequest) (*models.TemplateRecord, error)
}

type Handler struct {
	config  *Config
	service Registrar
	schemas *validation.SchemaSet
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Service      Registrar
	Schemas      *validation.SchemaSet
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("%s: verification service is required", TaskType)
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"worker": TaskType})

	return &Handler{
		config:  cfg,
		service: opts.Service,
		schemas: opts.Schemas,
		errors:  errors.NewErrorHandler(log),
		logger:  log,
	}, nil
}

func (h *Handler) Config() *Config { return h.config }

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing template registration", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	var input Input
	if err := camunda.DecodeVariables(h.schemas, TaskType, job, &input); err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.WithError(err).Error("Failed to complete job", map[string]interface{}{"jobKey": job.GetKey()})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewValidationError("input is required")
	}

	storeImage := input.StoreImage
	if storeImage && !h.config.AllowImageStore {
		h.logger.Warn("storeImage requested but disabled, keeping field set only", map[string]interface{}{
			"imagePath": input.ImagePath,
		})
		storeImage = false
	}

	rec, err := h.service.RegisterTemplate(ctx, verification.RegisterRequest{
		Board:      input.Board,
		Program:    input.Program,
		FieldSet:   input.ExtractedFieldSet,
		ImagePath:  input.ImagePath,
		StoreImage: storeImage,
		Metadata:   input.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return &Output{TemplateID: rec.ID, Template: rec.Summary()}, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}
