// Package cron runs periodic background maintenance, currently pruning of
// idle conversation sessions and their lane locks.
package cron

import "context"

// Job is a periodic background task.
type Job interface {
	// Name uniquely identifies the job for registration and logging.
	Name() string

	// Schedule is a 5-field cron expression, e.g. "*/5 * * * *".
	Schedule() string

	// Run executes one tick. Long-running jobs should honor ctx.Done().
	Run(ctx context.Context) error
}
