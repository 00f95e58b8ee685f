// Package workflow drives a user through the problem set: it feeds commands
// to the engine and performs the backend calls the resulting events ask for.
package workflow

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/codive/internal/engine"
	"github.com/DoyleJ11/codive/pkg/types"
)

const HintFallback = "AI로부터 응답을 받을 수 없습니다. 다시 시도해주세요."

type Backend interface {
	SubmitAnswer(ctx context.Context, a types.Answer) error
	FinishUser(ctx context.Context, userID string) error
	GenerateHint(ctx context.Context, req types.HintRequest) (string, error)
}

// Hint is a finished hint request for the panel that is currently open.
type Hint struct {
	Gen        int
	QuestionID int
	Text       string
	Err        error
}

// Outcome of a Next call. Finished is only set once the finish notification
// has a definite result; FinishErr holds its failure.
type Outcome struct {
	QuestionID int
	SubmitErr  error
	Finished   bool
	FinishErr  error
}

// Progress is reported after every advance and once the finish outcome is
// known, so callers can persist where the user is.
type Progress struct {
	Current  int
	Finished bool
}

type Controller struct {
	api        Backend
	userID     string
	maxTokens  int
	startAt    int
	onProgress func(Progress)
	log        *zap.Logger

	mu         sync.Mutex
	state      engine.State
	history    []engine.Event
	hintCancel context.CancelFunc

	hints chan Hint
	wg    sync.WaitGroup
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.log = l } }

func WithHintMaxTokens(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithStartAt resumes at problem current; earlier problems are never
// submitted again.
func WithStartAt(current int) Option { return func(c *Controller) { c.startAt = current } }

func WithProgress(fn func(Progress)) Option { return func(c *Controller) { c.onProgress = fn } }

func New(api Backend, userID string, allowHint bool, opts ...Option) *Controller {
	c := &Controller{
		api:       api,
		userID:    userID,
		maxTokens: 300,
		startAt:   1,
		log:       zap.NewNop(),
		hints:     make(chan Hint, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state = engine.ResumeState(c.startAt, allowHint)
	return c
}

func (c *Controller) State() engine.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns every event applied so far.
func (c *Controller) History() []engine.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]engine.Event(nil), c.history...)
}

func (c *Controller) Hints() <-chan Hint { return c.hints }

func (c *Controller) apply(cmd engine.Command) ([]engine.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	events, next, err := engine.Apply(c.state, cmd)
	if err != nil {
		return nil, err
	}
	c.state = next
	c.history = append(c.history, events...)
	return events, nil
}

func (c *Controller) Edit(code string) error {
	_, err := c.apply(engine.Command{Type: engine.CmdEdit, Code: code})
	return err
}

// Next submits the current problem and moves on. On the last problem it also
// notifies the backend that this user is done and waits for the answer.
func (c *Controller) Next(ctx context.Context) (Outcome, error) {
	events, err := c.apply(engine.Command{Type: engine.CmdNext})
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtAnswerSubmitted:
			out.QuestionID = ev.QuestionID
			out.SubmitErr = c.submit(ctx, ev)

		case engine.EvtProblemAdvanced:
			c.progress(Progress{Current: ev.QuestionID})

		case engine.EvtSessionFinishing:
			finishErr := c.api.FinishUser(ctx, c.userID)
			if finishErr != nil {
				c.log.Error("finish notification failed", zap.String("user", c.userID), zap.Error(finishErr))
			}
			if _, err := c.apply(engine.Command{Type: engine.CmdFinishOutcome, Err: finishErr}); err != nil {
				return out, err
			}
			out.Finished = true
			out.FinishErr = finishErr
			c.cancelHint()
			c.progress(Progress{Current: ev.QuestionID, Finished: true})
		}
	}
	return out, nil
}

func (c *Controller) progress(p Progress) {
	if c.onProgress != nil {
		c.onProgress(p)
	}
}

// Submissions are never retried; a failure is logged and reported back.
func (c *Controller) submit(ctx context.Context, ev engine.Event) error {
	err := c.api.SubmitAnswer(ctx, types.Answer{
		Content:    ev.Code,
		QuestionID: ev.QuestionID,
		UserID:     c.userID,
	})
	if err != nil {
		c.log.Error("submit answer failed", zap.Int("question_id", ev.QuestionID), zap.Error(err))
		return err
	}
	c.log.Info("answer submitted", zap.Int("question_id", ev.QuestionID), zap.String("user", c.userID))
	return nil
}

// ToggleHint flips the hint panel and reports whether it is now open. Opening
// starts a request whose result arrives on Hints; any request still in flight
// from an earlier opening is cancelled.
func (c *Controller) ToggleHint(ctx context.Context) (bool, error) {
	events, err := c.apply(engine.Command{Type: engine.CmdToggleHint})
	if err != nil {
		return false, err
	}
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtHintRequested:
			c.requestHint(ctx, ev)
			return true, nil
		case engine.EvtHintCollapsed:
			return false, nil
		}
	}
	return false, nil
}

func (c *Controller) requestHint(ctx context.Context, ev engine.Event) {
	hctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.hintCancel != nil {
		c.hintCancel()
	}
	c.hintCancel = cancel
	c.mu.Unlock()

	req := types.HintRequest{
		UserCode:         ev.Code,
		ProblemStatement: ev.Prompt,
		MaxTokens:        c.maxTokens,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		text, err := c.api.GenerateHint(hctx, req)
		if errors.Is(hctx.Err(), context.Canceled) {
			return
		}
		if err != nil {
			c.log.Warn("hint request failed", zap.Int("gen", ev.HintGen), zap.Error(err))
		}
		if err != nil || text == "" {
			text = HintFallback
		}

		c.mu.Lock()
		current := c.state.HintOpen && c.state.HintGen == ev.HintGen
		c.mu.Unlock()
		if !current {
			c.log.Debug("dropping stale hint", zap.Int("gen", ev.HintGen))
			return
		}

		select {
		case c.hints <- Hint{Gen: ev.HintGen, QuestionID: ev.QuestionID, Text: text, Err: err}:
		case <-hctx.Done():
		}
	}()
}

func (c *Controller) cancelHint() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hintCancel != nil {
		c.hintCancel()
		c.hintCancel = nil
	}
}

// Close cancels any hint in flight and waits for it to return.
func (c *Controller) Close() {
	c.cancelHint()
	c.wg.Wait()
}
