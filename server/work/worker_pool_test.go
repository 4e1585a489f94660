package work

import (
	"testing"
	"time"

	"github.com/bestsecurity/meetman/server/models"
	"github.com/stretchr/testify/assert"
)

func TestEnqueueIn(t *testing.T) {
	models.InitializeTestDb()

	workerPool, err := newWorkerPool(MAX_CONCURRENCY)
	assert.Nil(t, err)

	err = workerPool.enqueueIn(1, JobParams{
		Name:    "booking_confirmation",
		Handler: "send_booking_confirmation",
		Args: map[string]interface{}{
			"booking_reference": "BK-0042",
			"phone_number":      "15551234567",
		},
	})
	assert.Nil(t, err)

	// At some point we need to be able to
	// mock the current time, instead of stopping the
	// process. For now, keep it simple
	time.Sleep(1 * time.Second)

	// Make sure the correct job is created & scheduled to be run
	job, err := models.FirstScheduledJobToBeQueued()
	assert.Nil(t, err)
	assert.Equal(t, "booking_confirmation", job.Name, "The job name should match the expected job name")
	assert.Contains(t, job.Args, "BK-0042", "Should contain the correct arg values")
	assert.Equal(t, models.SCHEDULED_JOB, job.JobStatus.Name, "The job should be in scheduled queue")
}

func TestEnqueueRequiresNameAndHandler(t *testing.T) {
	models.InitializeTestDb()

	workerPool, err := newWorkerPool(MAX_CONCURRENCY)
	assert.Nil(t, err)

	err = workerPool.enqueue(JobParams{Name: " ", Handler: "send_booking_confirmation"})
	assert.NotNil(t, err)

	err = workerPool.enqueue(JobParams{Name: "booking_confirmation", Handler: ""})
	assert.NotNil(t, err)
}

func TestRegisterHandlerRejectsDuplicates(t *testing.T) {
	workerPool, err := newWorkerPool(MAX_CONCURRENCY)
	assert.Nil(t, err)

	noop := func(m map[string]interface{}) error { return nil }

	err = workerPool.registerHandler("send_booking_confirmation", noop)
	assert.Nil(t, err)

	err = workerPool.registerHandler("send_booking_confirmation", noop)
	assert.ErrorIs(t, err, ErrDuplicateHandler)
}
