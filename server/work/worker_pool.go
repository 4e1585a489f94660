package work

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bestsecurity/meetman/server/logger"
	"github.com/bestsecurity/meetman/server/models"
	"github.com/pkg/errors"
)

var (
	DefaultTickerDuration = 5 * time.Millisecond
	TickerDurationOnError = 10 * time.Millisecond

	ErrDuplicateHandler = errors.New("handler with provided name already mapped")

	logg = logger.NewLogger()
)

type JobParams struct {
	Name    string
	Handler string
	Args    map[string]interface{}
}

type Handler func(map[string]interface{}) error

type workerPool struct {
	handlers    map[string]Handler
	workers     []*worker
	concurrency int
	started     bool
}

func newWorkerPool(concurrency int) (*workerPool, error) {
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %v", concurrency)
	}

	wp := workerPool{handlers: make(map[string]Handler), concurrency: concurrency}
	for i := 0; i < concurrency; i++ {
		wp.workers = append(wp.workers, newWorker([]int64{0, 10, 100, 120}))
	}

	return &wp, nil
}

// registerHandler binds a name to a job handler for all workers in pool
func (wp *workerPool) registerHandler(name string, handler Handler) error {
	if _, ok := wp.handlers[name]; ok {
		return ErrDuplicateHandler
	}
	wp.handlers[name] = handler

	for _, worker := range wp.workers {
		err := worker.registerHandler(name, handler)

		// Only panic on an unexpected error i.e. !ErrDuplicateHandler
		if err != nil && !errors.Is(err, ErrDuplicateHandler) {
			logg.Panic(err)
		}
	}
	return nil
}

// enqueue adds a job to the queue(to be executed) by creating a DB record
// based on 'JobParams' provided
func (wp *workerPool) enqueue(job JobParams) error {
	return wp.enqueueIn(0, job)
}

// enqueueIn adds a job to the queue, to be executed 'secondsInFuture'
// seconds from now
func (wp *workerPool) enqueueIn(secondsInFuture int64, job JobParams) error {
	if strings.TrimSpace(job.Name) == "" || strings.TrimSpace(job.Handler) == "" {
		return fmt.Errorf("both a name & handler is required for a job")
	}

	argsAsJson, err := json.Marshal(job.Args)
	if err != nil {
		return err
	}

	// This ensures that all jobs currently scheduled, in the queue or
	// in-progress are unique
	return models.CreateUniqueJobByName(
		job.Name, job.Handler, string(argsAsJson),
		time.Now().Add(time.Duration(secondsInFuture)*time.Second))
}

// start starts all workers in pool i.e the workers can start processing jobs
func (wp *workerPool) start() {
	if wp.started {
		return
	}
	wp.started = true

	for _, worker := range wp.workers {
		worker.start()
	}
}

// stop stops all workers in pool i.e jobs will stop being processed
func (wp *workerPool) stop() {
	if !wp.started {
		return
	}

	wg := sync.WaitGroup{}
	for _, w := range wp.workers {
		wg.Add(1)
		go func(w *worker) {
			w.stop()
			wg.Done()
		}(w)
	}
	wg.Wait()
	wp.started = false
}
