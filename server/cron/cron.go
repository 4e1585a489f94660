package cron

import (
	"time"

	"github.com/bestsecurity/meetman/server/logger"
	"github.com/go-co-op/gocron"
)

var logg = logger.NewLogger()

// NewCronScheduler returns a scheduler pinned to the provided IANA time
// zone e.g. "America/Toronto". Falls back to UTC when the zone can't be
// loaded.
func NewCronScheduler(timeZoneArg string) *gocron.Scheduler {
	timeZone, err := time.LoadLocation(timeZoneArg)
	if err != nil {
		logg.Warnf("unable to load time zone %q, falling back to UTC: %v", timeZoneArg, err)
		timeZone = time.UTC
	}

	scheduler := gocron.NewScheduler(timeZone)
	scheduler.TagsUnique()

	return scheduler
}
