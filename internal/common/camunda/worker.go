// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler processes a single activated job and completes it itself.
// A returned error fails or throws the job through errors.ErrorHandler.
type JobHandler interface {
	Handle(ctx context.Context, client worker.JobClient, job entities.Job) error
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// WorkerOptions tunes a job worker.
type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
}

func NewWorker(
	client zbc.Client,
	taskType string,
	opts WorkerOptions,
	handler JobHandler,
	obs *observability.Observability,
	log logger.Logger,
) *CamundaWorker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	errHandler := errors.NewErrorHandler(log)

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxJobsActive == 0 {
		opts.MaxJobsActive = 5
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(func(jc worker.JobClient, job entities.Job) {
			ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
			defer cancel()

			start := time.Now()
			err := handler.Handle(ctx, jc, job)
			elapsed := time.Since(start)
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())

			if err != nil {
				stdErr := errors.AsStandard(err)
				metrics.WorkerJobsFailed.WithLabelValues(taskType, string(stdErr.Code)).Inc()
				obs.RecordJob(ctx, taskType, "failed", elapsed)
				errHandler.HandleJobError(ctx, jc, job, stdErr)
				return
			}
			metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
			obs.RecordJob(ctx, taskType, "completed", elapsed)
		}).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Open()

	log.Info("worker started", map[string]interface{}{"maxJobsActive": opts.MaxJobsActive})

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

// Stop closes the job worker and waits for in-flight jobs.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
