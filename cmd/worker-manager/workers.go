// cmd/worker-manager/workers.go
package main

import (
	"context"
	"fmt"
	"time"

	"template-verifier/internal/common/camunda"
	"template-verifier/internal/common/config"
	"template-verifier/internal/common/logger"
	"template-verifier/internal/common/observability"
	deletetemplate "template-verifier/internal/workers/templates/delete-template"
	gettemplate "template-verifier/internal/workers/templates/get-template"
	listtemplates "template-verifier/internal/workers/templates/list-templates"
	registertemplate "template-verifier/internal/workers/templates/register-template"
	searchtemplates "template-verifier/internal/workers/templates/search-templates"
	updatetemplate "template-verifier/internal/workers/templates/update-template"
	matchdocument "template-verifier/internal/workers/verification/match-document"
	validateextraction "template-verifier/internal/workers/verification/validate-extraction"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// registration is one handler ready to be subscribed to its task type.
type registration struct {
	taskType      string
	handler       worker.JobHandler
	maxJobsActive int
	timeout       time.Duration
}

func buildRegistrations(cfg *config.Config, c *components, log logger.Logger) ([]registration, error) {
	var regs []registration

	// --- Template workers ---
	register, err := registertemplate.NewHandler(registertemplate.HandlerOptions{
		AppConfig: cfg, Service: c.service, Schemas: c.schemas, Logger: log,
	})
	if err != nil {
		return nil, err
	}
	regs = append(regs, registration{registertemplate.TaskType, register.Handle, register.Config().MaxJobsActive, register.Config().Timeout})

	get, err := gettemplate.NewHandler(gettemplate.HandlerOptions{
		AppConfig: cfg, Service: c.service, Schemas: c.schemas, Logger: log,
	})
	if err != nil {
		return nil, err
	}
	regs = append(regs, registration{gettemplate.TaskType, get.Handle, get.Config().MaxJobsActive, get.Config().Timeout})

	list, err := listtemplates.NewHandler(listtemplates.HandlerOptions{
		AppConfig: cfg, Service: c.service, Schemas: c.schemas, Logger: log,
	})
	if err != nil {
		return nil, err
	}
	regs = append(regs, registration{listtemplates.TaskType, list.Handle, list.Config().MaxJobsActive, list.Config().Timeout})

	update, err := updatetemplate.NewHandler(updatetemplate.HandlerOptions{
		AppConfig: cfg, Service: c.service, Schemas: c.schemas, Logger: log,
	})
	if err != nil {
		return nil, err
	}
	regs = append(regs, registration{updatetemplate.TaskType, update.Handle, update.Config().MaxJobsActive, update.Config().Timeout})

	del, err := deletetemplate.NewHandler(deletetemplate.HandlerOptions{
		AppConfig: cfg, Service: c.service, Schemas: c.schemas, Logger: log,
	})
	if err != nil {
		return nil, err
	}
	regs = append(regs, registration{deletetemplate.TaskType, del.Handle, del.Config().MaxJobsActive, del.Config().Timeout})

	searcher, err := searchtemplates.NewHandler(searchtemplates.HandlerOptions{
		AppConfig: cfg, Service: c.service, Schemas: c.schemas, Logger: log,
	})
	if err != nil {
		return nil, err
	}
	regs = append(regs, registration{searchtemplates.TaskType, searcher.Handle, searcher.Config().MaxJobsActive, searcher.Config().Timeout})

	// --- Verification workers ---
	match, err := matchdocument.NewHandler(matchdocument.HandlerOptions{
		AppConfig: cfg, Service: c.service, Schemas: c.schemas, Logger: log,
	})
	if err != nil {
		return nil, err
	}
	regs = append(regs, registration{matchdocument.TaskType, match.Handle, match.Config().MaxJobsActive, match.Config().Timeout})

	validate, err := validateextraction.NewHandler(validateextraction.HandlerOptions{
		AppConfig: cfg, Service: c.service, Schemas: c.schemas, Logger: log,
	})
	if err != nil {
		return nil, err
	}
	regs = append(regs, registration{validateextraction.TaskType, validate.Handle, validate.Config().MaxJobsActive, validate.Config().Timeout})

	return regs, nil
}

func enabledRegistrations(cfg *config.Config, regs []registration, log logger.Logger) []registration {
	var out []registration
	for _, r := range regs {
		if !config.IsWorkerEnabled(cfg, r.taskType) {
			log.Info("worker disabled", map[string]interface{}{"taskType": r.taskType})
			continue
		}
		out = append(out, r)
	}
	return out
}

func startWorkers(client zbc.Client, regs []registration, obs *observability.Observability, log logger.Logger) []*camunda.CamundaWorker {
	workers := make([]*camunda.CamundaWorker, 0, len(regs))
	for _, r := range regs {
		workers = append(workers, camunda.NewWorker(client, camunda.WorkerOptions{
			TaskType:      r.taskType,
			MaxJobsActive: r.maxJobsActive,
			Timeout:       r.timeout,
		}, instrument(obs, r.taskType, r.handler), log))
	}
	log.Info(fmt.Sprintf("%d workers registered", len(workers)), nil)
	return workers
}

// instrument records the OpenTelemetry job counter and duration around a
// handler; the Prometheus collectors are updated by the handler itself.
func instrument(obs *observability.Observability, taskType string, next worker.JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		next(client, job)

		ctx := context.Background()
		obs.RecordJobProcessed(ctx, taskType)
		obs.RecordJobDuration(ctx, time.Since(start), taskType)
	}
}
