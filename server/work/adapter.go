package work

import (
	"fmt"

	"github.com/bestsecurity/meetman/server/cron"
	"github.com/bestsecurity/meetman/server/models"
	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
)

const MAX_CONCURRENCY = 1

// WorkerPoolAdapter ties the job queue to a cron scheduler, so callers can
// run jobs now, at a delay, or on a recurring schedule.
type WorkerPoolAdapter struct {
	cronScheduler      *gocron.Scheduler
	pool               *workerPool
	scheduledRequeuer  *requeuer
	inProgressRequeuer *requeuer
}

func NewWorkerAdapter(timeZone string) *WorkerPoolAdapter {
	pool, err := newWorkerPool(MAX_CONCURRENCY)
	if err != nil {
		logg.Panic(err)
	}

	scheduledRequeuer, err := newRequeuer(models.SCHEDULED_JOB)
	if err != nil {
		logg.Panic(err)
	}

	inProgressRequeuer, err := newRequeuer(models.IN_PROGRESS_JOB)
	if err != nil {
		logg.Panic(err)
	}

	return &WorkerPoolAdapter{
		cronScheduler:      cron.NewCronScheduler(timeZone),
		pool:               pool,
		scheduledRequeuer:  scheduledRequeuer,
		inProgressRequeuer: inProgressRequeuer,
	}
}

// Start starts the cron scheduler, requeuers & worker pool
func (adapter *WorkerPoolAdapter) Start() error {
	logg.Info("Starting cron scheduler & worker pool")
	adapter.cronScheduler.StartAsync()
	adapter.scheduledRequeuer.start()
	adapter.inProgressRequeuer.start()
	adapter.pool.start()

	return nil
}

// Stop stops the cron scheduler, requeuers & worker pool
func (adapter *WorkerPoolAdapter) Stop() error {
	logg.Info("Stopping cron scheduler & worker pool")
	adapter.cronScheduler.Stop()
	adapter.scheduledRequeuer.stop()
	adapter.inProgressRequeuer.stop()
	adapter.pool.stop()

	return nil
}

// Register binds a name to a handler.
func (adapter *WorkerPoolAdapter) Register(name string, handler Handler) error {
	return adapter.pool.registerHandler(name, handler)
}

// Perform sends a new job to the queue, now - to be executed as soon as a
// worker is available
func (adapter *WorkerPoolAdapter) Perform(job JobParams) error {
	logg.Infof("Enqueuing job: %v", job.Name)

	err := adapter.pool.enqueue(job)
	if errors.Is(err, models.ErrDuplicateJob) {
		logg.Warnf("Duplicate job already in queue for: %v", job.Name)
		return nil
	}

	if err != nil {
		return fmt.Errorf("error enqueuing job: %v, %v", job.Name, err)
	}

	return nil
}

// PerformIn sends a new job to the queue, to be executed 'secondsInFuture'
// seconds from now
func (adapter *WorkerPoolAdapter) PerformIn(secondsInFuture int64, job JobParams) error {
	logg.Infof("Scheduling job: %v to run in %vs", job.Name, secondsInFuture)

	err := adapter.pool.enqueueIn(secondsInFuture, job)
	if errors.Is(err, models.ErrDuplicateJob) {
		logg.Warnf("Duplicate job already in queue for: %v", job.Name)
		return nil
	}

	if err != nil {
		return fmt.Errorf("error scheduling job: %v, %v", job.Name, err)
	}

	return nil
}

// PeriodicallyPerform adds a job to the queue (to be executed)
// periodically, based on the 'cronExpression' expression provided
func (adapter *WorkerPoolAdapter) PeriodicallyPerform(cronExpression string, job JobParams) error {
	_, err := adapter.cronScheduler.Cron(cronExpression).Tag(job.Name).
		Do(
			func(job JobParams) {
				err := adapter.Perform(job)
				if err != nil {
					logg.Error(err)
				}
			},
			job,
		)

	return err
}

func (adapter *WorkerPoolAdapter) RemovePeriodicJob(jobName string) {
	adapter.cronScheduler.RemoveByTag(jobName)
}
