package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrDuplicateJob = errors.New("job with the given name already exists in queue")

type Job struct {
	BaseModel
	Fails       int        `json:"fails"`
	Name        string     `json:"name"`
	Handler     string     `json:"handler"`
	Args        string     `json:"args"`
	LastError   string     `json:"last_error"`
	Claimed     bool       `json:"claimed" gorm:"default:false"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	JobStatusID uint       `json:"job_status_id"`
	JobStatus   *JobStatus `json:"status"`
}

// MarkAsClaimed claims a job for a worker. Returns false when another worker
// got to the job first.
func (job *Job) MarkAsClaimed() (bool, error) {
	inProgressStatus, err := FindJobStatus(IN_PROGRESS_JOB)
	if err != nil {
		return false, err
	}

	res := db.Model(&Job{}).Where("id = ? AND claimed = ?", job.ID, false).Updates(map[string]interface{}{
		"claimed":       true,
		"job_status_id": inProgressStatus.ID,
	})

	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

func (job *Job) Update(data map[string]interface{}) error {
	return db.Model(job).Updates(data).Error
}

// CreateUniqueJobByName creates a job record, ensuring that all jobs
// currently scheduled, in queue or in-progress are unique by name.
func CreateUniqueJobByName(name, handler, args string, enqueueAt time.Time) error {
	queuedJobStatuses := []JobStatus{}
	err := db.Where("name IN ?", []string{ENQUEUED_JOB, IN_PROGRESS_JOB, SCHEDULED_JOB}).
		Find(&queuedJobStatuses).Error
	if err != nil {
		return err
	}

	statusIDs := []uint{}
	statusIDByName := make(map[string]uint)
	for _, jobStatus := range queuedJobStatuses {
		statusIDs = append(statusIDs, jobStatus.ID)
		statusIDByName[jobStatus.Name] = jobStatus.ID
	}

	results := db.Where("name = ? AND job_status_id IN ?", name, statusIDs).First(&Job{})
	if results.Error != nil && !errors.Is(results.Error, gorm.ErrRecordNotFound) {
		return results.Error
	}

	if results.RowsAffected > 0 {
		return ErrDuplicateJob
	}

	statusID := statusIDByName[ENQUEUED_JOB]
	if enqueueAt.After(time.Now()) {
		statusID = statusIDByName[SCHEDULED_JOB]
	}

	return db.Create(&Job{
		Name:        name,
		Handler:     handler,
		Args:        args,
		EnqueuedAt:  enqueueAt,
		JobStatusID: statusID,
	}).Error
}

func LastJob(status string, claimed bool) (*Job, error) {
	job := Job{}
	err := db.Joins("INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ? AND claimed = ? ",
		status, claimed).Last(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// FirstScheduledJobToBeQueued returns the oldest 'scheduled' job whose
// enqueue time has elapsed, so the requeuer can move it to 'enqueued'.
func FirstScheduledJobToBeQueued() (*Job, error) {
	scheduledStatus, err := FindJobStatus(SCHEDULED_JOB)
	if err != nil {
		return nil, err
	}

	job := Job{}
	err = db.Preload("JobStatus").
		Where("job_status_id = ? AND enqueued_at <= ?", scheduledStatus.ID, time.Now()).
		First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func FetchJobsByStatus(status string, page int) ([]Job, *Paging, error) {
	const JOIN_QUERY = "INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?"

	var total int64
	jobs := []Job{}

	err := db.Joins(JOIN_QUERY, status).Model(&Job{}).Count(&total).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, MAX_PAGE_SIZE)).
		Preload("JobStatus").Order("jobs.id desc").
		Joins(JOIN_QUERY, status).Find(&jobs).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	return jobs, newPaging(int64(page), MAX_PAGE_SIZE, total), nil
}

func FetchJobs(page int) ([]Job, *Paging, error) {
	var total int64
	jobs := []Job{}

	err := db.Model(&Job{}).Count(&total).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, MAX_PAGE_SIZE)).
		Preload("JobStatus").Order("jobs.id desc").Find(&jobs).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	return jobs, newPaging(int64(page), MAX_PAGE_SIZE, total), nil
}

func CurrentJobsStats() (*JobsStats, error) {
	const JOIN_QUERY = "INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?"
	stats := JobsStats{}

	counts := []struct {
		status string
		dest   *int64
	}{
		{ENQUEUED_JOB, &stats.EnqueuedJobCount},
		{IN_PROGRESS_JOB, &stats.InProgressJobCount},
		{SUCCESSFUL_JOB, &stats.SuccessfulJobCount},
		{DEAD_JOB, &stats.DeadJobCount},
	}

	for _, count := range counts {
		err := db.Joins(JOIN_QUERY, count.status).Model(&Job{}).Count(count.dest).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return &stats, nil
}

// LastJobLastUpdated returns the last job which was last updated 'minutesAgo'
// minutes ago and is of 'status' status.
//
// WARNING: THIS QUERY IS UNIQUE TO SQLITE, REMEMBER TO UPDATE IT IF/WHEN
// OTHER SQL DATABASES ARE SUPPORTED
func LastJobLastUpdated(minutesAgo uint, status string) (*Job, error) {
	jobStatus, err := FindJobStatus(status)
	if err != nil {
		return nil, err
	}

	job := Job{}
	err = db.Where(
		fmt.Sprintf("job_status_id = ? AND datetime(updated_at, '+%v minute') <= datetime('now')", minutesAgo),
		jobStatus.ID,
	).Last(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}
