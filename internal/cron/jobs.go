package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/casahub/concierge/internal/conversation"
)

// SessionPruneJob removes conversation sessions idle longer than MaxIdle
// and drops the lane locks of sessions that no longer exist.
type SessionPruneJob struct {
	Sessions     *conversation.Store
	Lanes        *conversation.LaneLock
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*SessionPruneJob)(nil)

// Name implements Job.
func (j *SessionPruneJob) Name() string {
	return "session_prune"
}

// Schedule implements Job.
func (j *SessionPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run prunes idle sessions, then cleans lanes against the surviving set.
func (j *SessionPruneJob) Run(_ context.Context) error {
	pruned := j.Sessions.Prune(j.MaxIdle)
	if j.Lanes != nil {
		j.Lanes.Cleanup(j.Sessions.ActiveIDs())
	}
	if pruned > 0 && j.Logger != nil {
		j.Logger.Info("cron: pruned idle sessions", "count", pruned)
	}
	return nil
}
