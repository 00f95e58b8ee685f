// Package tracker keeps the navigation-bar counters: elapsed solving time and
// the room's active/total headcount.
package tracker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/codive/internal/session"
)

// Timer adds one second to the session's elapsed time per tick and persists
// it, so a restarted client resumes from the stored value.
type Timer struct {
	sess   *session.Context
	log    *zap.Logger
	paused atomic.Bool
}

func NewTimer(sess *session.Context, log *zap.Logger) *Timer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Timer{sess: sess, log: log}
}

// Pause stops counting, e.g. while the report is shown.
func (t *Timer) Pause()  { t.paused.Store(true) }
func (t *Timer) Resume() { t.paused.Store(false) }

func (t *Timer) Elapsed() time.Duration {
	return time.Duration(t.sess.Snapshot().ElapsedSeconds) * time.Second
}

// Run consumes ticks until ctx ends or ticks is closed. Callers normally pass
// a time.Ticker's channel with a one second period.
func (t *Timer) Run(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			if t.paused.Load() {
				continue
			}
			if err := t.sess.Update(func(s *session.Session) { s.ElapsedSeconds++ }); err != nil {
				t.log.Warn("persist elapsed time", zap.Error(err))
			}
		}
	}
}

// FormatElapsed renders d as "HH : MM : SS".
func FormatElapsed(d time.Duration) string {
	total := int(d / time.Second)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d : %02d : %02d", total/3600, total/60%60, total%60)
}
