package tracker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/codive/internal/session"
	"github.com/DoyleJ11/codive/pkg/types"
)

type StatsSource interface {
	UserStats(ctx context.Context, code string) (types.UserStats, error)
}

// StatsPoller refreshes the remaining-users counter while the session has a
// room. Without an identity a tick is skipped; failures wait for the next tick.
type StatsPoller struct {
	api      StatsSource
	sess     *session.Context
	log      *zap.Logger
	onUpdate func(types.UserStats)
}

func NewStatsPoller(api StatsSource, sess *session.Context, log *zap.Logger, onUpdate func(types.UserStats)) *StatsPoller {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsPoller{api: api, sess: sess, log: log, onUpdate: onUpdate}
}

func (p *StatsPoller) Run(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			p.Poll(ctx)
		}
	}
}

// Poll performs a single refresh and reports whether it succeeded.
func (p *StatsPoller) Poll(ctx context.Context) bool {
	id, ok := p.sess.Identity()
	if !ok {
		return false
	}
	stats, err := p.api.UserStats(ctx, id.RoomCode)
	if err != nil {
		p.log.Warn("poll user stats", zap.String("room", id.RoomCode), zap.Error(err))
		return false
	}
	if err := p.sess.Update(func(s *session.Session) {
		s.RemainingUsers = session.RemainingUsers{Active: stats.ActiveUsers, Total: stats.TotalUsers}
	}); err != nil {
		p.log.Warn("persist user stats", zap.Error(err))
	}
	if p.onUpdate != nil {
		p.onUpdate(stats)
	}
	return true
}

// FormatHeadcount renders "active / total" with two digits, e.g. "01 / 05".
func FormatHeadcount(r session.RemainingUsers) string {
	return fmt.Sprintf("%02d / %02d", r.Active, r.Total)
}
