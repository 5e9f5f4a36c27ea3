// Package cleanup removes terminal executions past their retention window on
// a cron schedule.
package cleanup

import (
	"time"

	"github.com/robfig/cron/v3"

	"storylab-engine/internal/common/logging"
	"storylab-engine/internal/storage"
)

// Cleaner deletes executions whose completion time is older than the
// retention window. Running and pending executions are never touched.
type Cleaner struct {
	storage   storage.Storage
	retention time.Duration
	schedule  string
	logger    logging.Logger
	cron      *cron.Cron
}

// NewCleaner creates a retention cleaner. schedule is a standard five-field
// cron expression.
func NewCleaner(store storage.Storage, retention time.Duration, schedule string, logger logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Cleaner{
		storage:   store,
		retention: retention,
		schedule:  schedule,
		logger:    logger,
	}
}

// Start schedules the cleanup job. Returns an error for an invalid schedule.
func (c *Cleaner) Start() error {
	c.cron = cron.New()
	if _, err := c.cron.AddFunc(c.schedule, c.RunOnce); err != nil {
		return err
	}
	c.cron.Start()

	c.logger.Info("Execution retention cleanup scheduled",
		logging.Field{Key: "schedule", Value: c.schedule},
		logging.Field{Key: "retention", Value: c.retention.String()},
	)
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (c *Cleaner) Stop() {
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
}

// RunOnce deletes expired executions immediately.
func (c *Cleaner) RunOnce() {
	cutoff := time.Now().UTC().Add(-c.retention)

	deleted, err := c.storage.DeleteExecutionsBefore(cutoff)
	if err != nil {
		c.logger.Error("Execution cleanup failed", err)
		return
	}

	if deleted > 0 {
		c.logger.Info("Expired executions deleted",
			logging.Field{Key: "deleted", Value: deleted},
			logging.Field{Key: "cutoff", Value: cutoff.Format(time.RFC3339)},
		)
	}
}
