package room

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/codive/pkg/types"
)

type WaitHooks struct {
	// OnCount is called for every headcount frame.
	OnCount func(n int)
	// Start carries host start requests. Nil means none.
	Start <-chan struct{}
}

// Wait holds the waiting room open until the room starts. The connection is
// opened here and closed on every return path. A cancelled ctx leaves the
// room (back to idle); a dropped connection keeps the waiting state so Wait
// can be called again.
func (l *Lifecycle) Wait(ctx context.Context, hooks WaitHooks) error {
	if l.State() != StateWaiting {
		return fmt.Errorf("%w: wait while %s", ErrWrongState, l.State())
	}
	id, ok := l.sess.Identity()
	if !ok {
		return ErrNoIdentity
	}
	host := l.sess.Snapshot().Host

	conn, err := l.dial(ctx, l.api.RoomSocketURL(id.RoomCode))
	if err != nil {
		if ctx.Err() != nil {
			_ = l.transition(StateIdle, StateWaiting)
			return ctx.Err()
		}
		return fmt.Errorf("open waiting room: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			l.log.Debug("close room socket", zap.Error(err))
		}
	}()

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan types.RoomEvent)
	readErr := make(chan error, 1)
	go func() {
		for {
			ev, err := conn.Next(readCtx)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case events <- ev:
			case <-readCtx.Done():
				return
			}
		}
	}()

	// Socket frames and start requests are handled one at a time here.
	for {
		select {
		case <-ctx.Done():
			_ = l.transition(StateIdle, StateWaiting)
			return ctx.Err()

		case err := <-readErr:
			if ctx.Err() != nil {
				_ = l.transition(StateIdle, StateWaiting)
				return ctx.Err()
			}
			return fmt.Errorf("waiting room connection: %w", err)

		case ev := <-events:
			switch e := ev.(type) {
			case types.CountEvent:
				l.mu.Lock()
				l.headcount = e.N
				l.mu.Unlock()
				if hooks.OnCount != nil {
					hooks.OnCount(e.N)
				}
			case types.StartedEvent:
				l.log.Info("room started", zap.String("room", id.RoomCode))
				return l.transition(StateInProgress, StateWaiting)
			}

		case <-hooks.Start:
			if !host {
				l.log.Warn("ignoring start request", zap.Error(ErrNotHost))
				continue
			}
			if err := conn.SendStart(ctx); err != nil {
				l.log.Warn("send start", zap.Error(err))
			}
		}
	}
}
