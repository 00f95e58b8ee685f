// Package report assembles the post-session summary: every submission of the
// user with its analysis and sandbox run, plus the user's place in the room.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/codive/internal/api"
	"github.com/DoyleJ11/codive/internal/engine"
	"github.com/DoyleJ11/codive/internal/session"
	"github.com/DoyleJ11/codive/pkg/types"
)

// NotSubmitted fills every text cell of a row that has nothing to show.
const NotSubmitted = "코드제출 x"

var ErrNoIdentity = errors.New("report needs a room identity")

type Backend interface {
	Answers(ctx context.Context) ([]types.Answer, error)
	UserStats(ctx context.Context, code string) (types.UserStats, error)
	GenerateAnalysis(ctx context.Context, req types.AnalysisRequest) (api.Analysis, error)
	ExecuteCode(ctx context.Context, req types.ExecuteRequest) (types.ExecuteResponse, error)
}

type Row struct {
	QuestionID     int
	Submitted      bool
	Code           string
	TimeComplexity string
	CodeStyle      []string
	ExecutionTime  float64 // seconds
	MemoryKB       float64
	Output         string
	TestPass       bool
	// Executed is false when the sandbox call itself failed.
	Executed bool
}

type Report struct {
	GuestID string
	Stats   types.UserStats
	Rank    int
	Rows    [engine.ProblemCount]Row
	// Failures joins every per-row error that was replaced by a placeholder.
	Failures error
}

// Rank is the place shown to the user: how many have already finished.
func Rank(s types.UserStats) int {
	return s.TotalUsers - s.ActiveUsers
}

// WithStats returns a copy with fresher headcounts.
func (r Report) WithStats(s types.UserStats) Report {
	r.Stats = s
	r.Rank = Rank(s)
	return r
}

type Assembler struct {
	api         Backend
	log         *zap.Logger
	concurrency int
	maxTokens   int
}

type Option func(*Assembler)

func WithLogger(l *zap.Logger) Option { return func(a *Assembler) { a.log = l } }

// WithConcurrency bounds the number of analysis and execution calls in flight.
func WithConcurrency(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

func NewAssembler(api Backend, opts ...Option) *Assembler {
	a := &Assembler{api: api, log: zap.NewNop(), concurrency: 4, maxTokens: 1000}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func placeholder(id int) Row {
	return Row{QuestionID: id, TimeComplexity: NotSubmitted, CodeStyle: []string{NotSubmitted}}
}

// Assemble builds the report for the session's identity. A failed answers or
// stats fetch degrades to empty rows or zero stats; it never fails the report.
func (a *Assembler) Assemble(ctx context.Context, snap session.Session) (Report, error) {
	id, ok := session.ParseGuestID(snap.GuestID)
	if !ok {
		return Report{}, ErrNoIdentity
	}
	rep := Report{GuestID: id.GuestID}
	for i := range rep.Rows {
		rep.Rows[i] = placeholder(i + 1)
	}

	var (
		answers  []types.Answer
		stats    types.UserStats
		mu       sync.Mutex
		failures error
	)
	fail := func(err error) {
		mu.Lock()
		failures = multierr.Append(failures, err)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		all, err := a.api.Answers(gctx)
		if err != nil {
			fail(fmt.Errorf("answers: %w", err))
			return nil
		}
		answers = latestByQuestion(all, id.GuestID)
		return nil
	})
	g.Go(func() error {
		s, err := a.api.UserStats(gctx, id.RoomCode)
		if err != nil {
			fail(fmt.Errorf("user stats: %w", err))
			return nil
		}
		stats = s
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	rows := errgroup.Group{}
	rows.SetLimit(a.concurrency)
	for _, ans := range answers {
		ans := ans
		rows.Go(func() error {
			row, err := a.row(ctx, ans)
			if err != nil {
				fail(err)
			}
			mu.Lock()
			rep.Rows[ans.QuestionID-1] = row
			mu.Unlock()
			return nil
		})
	}
	_ = rows.Wait()
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	rep.Failures = failures
	if failures != nil {
		a.log.Warn("report has placeholder rows", zap.Errors("failures", multierr.Errors(failures)))
	}
	return rep.WithStats(stats), nil
}

// latestByQuestion keeps the user's last answer per known problem, indexed by
// question id.
func latestByQuestion(all []types.Answer, userID string) []types.Answer {
	byQ := map[int]types.Answer{}
	for _, ans := range all {
		if ans.UserID != userID {
			continue
		}
		if _, ok := engine.ProblemByID(ans.QuestionID); !ok {
			continue
		}
		byQ[ans.QuestionID] = ans
	}
	out := make([]types.Answer, 0, len(byQ))
	for q := 1; q <= engine.ProblemCount; q++ {
		if ans, ok := byQ[q]; ok {
			out = append(out, ans)
		}
	}
	return out
}

// row runs analysis and execution for one answer. Each half falls back to
// placeholders on its own.
func (a *Assembler) row(ctx context.Context, ans types.Answer) (Row, error) {
	p, _ := engine.ProblemByID(ans.QuestionID)
	row := placeholder(p.ID)
	row.Submitted = true
	row.Code = ans.Content

	var errs error
	analysis, err := a.api.GenerateAnalysis(ctx, types.AnalysisRequest{Problem: p.Prompt, Answer: ans.Content, MaxTokens: a.maxTokens})
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("analysis q%d: %w", p.ID, err))
	} else {
		row.TimeComplexity = analysis.TimeComplexity
		row.CodeStyle = analysis.CodeStyle
	}

	res, err := a.api.ExecuteCode(ctx, types.ExecuteRequest{Code: ans.Content, InputData: p.Input})
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("execute q%d: %w", p.ID, err))
	} else {
		row.Executed = true
		row.ExecutionTime = res.Seconds()
		row.MemoryKB = res.MemoryKB()
		row.Output = res.Text()
		row.TestPass = res.Error == "" && strings.TrimSpace(res.Text()) == p.Expected
	}
	return row, errs
}
