package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/DoyleJ11/codive/internal/api"
	"github.com/DoyleJ11/codive/internal/config"
	"github.com/DoyleJ11/codive/internal/engine"
	"github.com/DoyleJ11/codive/internal/metrics"
	"github.com/DoyleJ11/codive/internal/report"
	"github.com/DoyleJ11/codive/internal/room"
	"github.com/DoyleJ11/codive/internal/session"
	"github.com/DoyleJ11/codive/internal/tracker"
	"github.com/DoyleJ11/codive/internal/workflow"
	"github.com/DoyleJ11/codive/internal/ws"
	"github.com/DoyleJ11/codive/pkg/logger"
	"github.com/DoyleJ11/codive/pkg/types"
)

type app struct {
	cfg     *config.Config
	log     *zap.Logger
	con     *console
	api     *api.Client
	sess    *session.Context
	life    *room.Lifecycle
	metrics *http.Server
}

func newApp(configDir string, fs *pflag.FlagSet, in io.Reader, out io.Writer) (*app, error) {
	cfg, err := config.Load(configDir, fs)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log)

	m := metrics.New()
	client, err := api.New(cfg.Backend.BaseURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
		api.WithTransport(m.InstrumentTransport),
		api.WithLogger(log),
		api.WithExecutePath(cfg.Backend.ExecutePath),
	)
	if err != nil {
		return nil, err
	}

	sess, err := session.Open(session.NewFileStore(cfg.Session.StatePath))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, con: newConsole(in, out), api: client, sess: sess}
	// Socket reads idle for as long as the room waits, so the dialer gets no
	// client timeout; it still shares the cookie jar.
	socketClient := &http.Client{Jar: client.Jar()}
	dial := func(ctx context.Context, url string) (room.Conn, error) {
		return ws.Dial(ctx, url, socketClient, log)
	}
	a.life = room.NewLifecycle(client, dial, sess, log)

	if cfg.Metrics.Addr != "" {
		a.metrics = &http.Server{Addr: cfg.Metrics.Addr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("metrics server", zap.Error(err))
			}
		}()
	}
	return a, nil
}

func (a *app) close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
	_ = a.log.Sync()
}

var errAborted = errors.New("aborted")

func (a *app) showFormError(err error) bool {
	var fe *room.FormError
	if !errors.As(err, &fe) {
		return false
	}
	if fe.Field == room.FieldForm {
		a.con.printf("! %s\n", fe.Message)
	} else {
		a.con.printf("! [%s] %s\n", fe.Field, fe.Message)
	}
	return true
}

func (a *app) create(ctx context.Context) error {
	if err := a.life.BeginCreate(); err != nil {
		return err
	}
	for {
		var form room.CreateForm
		var ok bool
		if form.Code, ok = a.con.ask(ctx, "초대코드"); !ok {
			return errAborted
		}
		if form.Password, ok = a.con.ask(ctx, "비밀번호"); !ok {
			return errAborted
		}
		if form.ConfirmPassword, ok = a.con.ask(ctx, "비밀번호 확인"); !ok {
			return errAborted
		}
		if form.Options.AllowTimeLimit, ok = a.con.confirm(ctx, "시간제한 허용"); !ok {
			return errAborted
		}
		if form.Options.AllowAIHint, ok = a.con.confirm(ctx, "AI코드 추천 허용"); !ok {
			return errAborted
		}
		if form.Options.AllowErrorLocation, ok = a.con.confirm(ctx, "오류위치 제공 허용"); !ok {
			return errAborted
		}

		err := a.life.Create(ctx, form)
		if err == nil {
			break
		}
		if !a.showFormError(err) {
			return err
		}
	}
	return a.waitAndSolve(ctx)
}

func (a *app) join(ctx context.Context) error {
	if err := a.life.BeginJoin(); err != nil {
		return err
	}
	for {
		var form room.JoinForm
		var ok bool
		if form.Code, ok = a.con.ask(ctx, "초대코드"); !ok {
			return errAborted
		}
		if form.Password, ok = a.con.ask(ctx, "비밀번호"); !ok {
			return errAborted
		}
		err := a.life.Join(ctx, form)
		if err == nil {
			break
		}
		if !a.showFormError(err) {
			return err
		}
	}
	return a.waitAndSolve(ctx)
}

func (a *app) resume(ctx context.Context) error {
	if err := a.life.Resume(); err != nil {
		if errors.Is(err, room.ErrFinished) {
			a.con.printf("이미 제출을 마쳤습니다. codive report 로 결과를 확인하세요.\n")
		}
		return err
	}
	reloaded, err := a.sess.ConsumeReload()
	if err != nil {
		a.log.Warn("persist reload flag", zap.Error(err))
	}
	if reloaded {
		a.con.printf("이전 세션을 이어서 진행합니다. (%s)\n", tracker.FormatElapsed(time.Duration(a.sess.Snapshot().ElapsedSeconds)*time.Second))
	}
	return a.solve(ctx)
}

func (a *app) waitAndSolve(ctx context.Context) error {
	if err := a.waitingRoom(ctx); err != nil {
		return err
	}
	return a.solve(ctx)
}

// waitingRoom keeps the socket open until the host starts. Typing "start"
// (host only) starts the room and "leave" goes back.
func (a *app) waitingRoom(ctx context.Context) error {
	host := a.sess.Snapshot().Host
	if id, ok := a.sess.Identity(); ok {
		a.con.printf("대기실 %s 입장 (%s)\n", id.RoomCode, id.GuestID)
	}
	if host {
		a.con.printf("start 를 입력하면 시작합니다. leave 로 나갑니다.\n")
	} else {
		a.con.printf("방장이 시작할 때까지 기다립니다. leave 로 나갑니다.\n")
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	start := make(chan struct{}, 1)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			l, ok := a.con.line(wctx)
			if !ok {
				return
			}
			// Lines typed after the room started belong to the first problem.
			if wctx.Err() != nil || a.life.State() != room.StateWaiting {
				a.con.unread(l)
				return
			}
			switch strings.TrimSpace(l) {
			case "start":
				select {
				case start <- struct{}{}:
				default:
				}
			case "leave":
				cancel()
				return
			}
		}
	}()

	err := a.life.Wait(wctx, room.WaitHooks{
		OnCount: func(n int) { a.con.printf("참가자 %d명\n", n) },
		Start:   start,
	})
	cancel()
	<-readerDone
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.Canceled) {
			a.con.printf("대기실을 나왔습니다.\n")
			return errAborted
		}
		return err
	}
	a.con.printf("시작합니다!\n")
	return nil
}

// solve runs the problem loop. Code is typed line by line; ":next" submits,
// ":hint" toggles the hint panel and ":quit" stops without finishing.
func (a *app) solve(ctx context.Context) error {
	snap := a.sess.Snapshot()
	allowHint := snap.Options != nil && snap.Options.AllowAIHint

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := tracker.NewTimer(a.sess, a.log)
	seconds := time.NewTicker(time.Second)
	defer seconds.Stop()
	go timer.Run(sctx, seconds.C)

	poller := tracker.NewStatsPoller(a.api, a.sess, a.log, nil)
	poll := time.NewTicker(a.cfg.Poll.StatsInterval)
	defer poll.Stop()
	poller.Poll(sctx)
	go poller.Run(sctx, poll.C)

	ctl := workflow.New(a.api, snap.GuestID, allowHint,
		workflow.WithLogger(a.log),
		workflow.WithHintMaxTokens(a.cfg.Backend.HintMaxTokens),
		workflow.WithStartAt(snap.Current),
		workflow.WithProgress(func(p workflow.Progress) {
			if err := a.sess.Update(func(s *session.Session) {
				s.Current = p.Current
				s.Finished = p.Finished
			}); err != nil {
				a.log.Warn("persist progress", zap.Error(err))
			}
		}),
	)
	defer ctl.Close()
	go func() {
		for {
			select {
			case h := <-ctl.Hints():
				a.con.printf("\n[AI 힌트 #%d]\n%s\n\n", h.QuestionID, h.Text)
			case <-sctx.Done():
				return
			}
		}
	}()

	var code []string
	a.showProblem(ctl.State(), timer)
	for {
		l, ok := a.con.line(sctx)
		if !ok {
			return errAborted
		}
		switch strings.TrimSpace(l) {
		case ":quit":
			return errAborted

		case ":hint":
			if err := ctl.Edit(strings.Join(code, "\n")); err != nil {
				return err
			}
			open, err := ctl.ToggleHint(sctx)
			if errors.Is(err, engine.ErrHintNotAllowed) {
				a.con.printf("이 방은 AI 힌트를 허용하지 않습니다.\n")
				continue
			}
			if err != nil {
				return err
			}
			if open {
				a.con.printf("AI에게 힌트를 요청했습니다...\n")
			} else {
				a.con.printf("힌트를 닫았습니다.\n")
			}

		case ":next":
			if err := ctl.Edit(strings.Join(code, "\n")); err != nil {
				return err
			}
			out, err := ctl.Next(sctx)
			if err != nil {
				return err
			}
			code = code[:0]
			if out.SubmitErr != nil {
				a.con.printf("! 코드 제출 중 오류가 발생했습니다.\n")
			}
			if out.Finished {
				if out.FinishErr != nil {
					a.con.printf("! 종료 처리에 실패했습니다: %v\n", out.FinishErr)
				}
				if err := a.life.Finish(); err != nil {
					a.log.Warn("finish transition", zap.Error(err))
				}
				timer.Pause()
				cancel()
				return a.showReport(ctx, false)
			}
			a.showProblem(ctl.State(), timer)

		default:
			code = append(code, l)
		}
	}
}

func (a *app) showProblem(st engine.State, timer *tracker.Timer) {
	p, _ := engine.ProblemByID(st.Current)
	snap := a.sess.Snapshot()
	a.con.printf("\n[%s | %s]\n#%d %s\n입력 예시: %s\n%s\n(:next=%s, :hint, :quit)\n",
		tracker.FormatElapsed(timer.Elapsed()), tracker.FormatHeadcount(snap.RemainingUsers),
		p.ID, p.Prompt, p.Input, engine.DefaultCode, engine.ActionLabel(st))
}

func (a *app) report(ctx context.Context, watch bool) error {
	return a.showReport(ctx, watch)
}

func (a *app) showReport(ctx context.Context, watch bool) error {
	a.con.printf("보고서를 생성하는 중...\n")
	asm := report.NewAssembler(a.api,
		report.WithLogger(a.log),
		report.WithConcurrency(a.cfg.Report.Concurrency),
		report.WithMaxTokens(a.cfg.Backend.AnalysisMaxTokens),
	)
	rep, err := asm.Assemble(ctx, a.sess.Snapshot())
	if err != nil {
		return err
	}
	if err := a.con.write(func(w io.Writer) error { return report.Render(w, rep) }); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	poller := tracker.NewStatsPoller(a.api, a.sess, a.log, func(s types.UserStats) {
		next := rep.WithStats(s)
		if next.Rank != rep.Rank || next.Stats != rep.Stats {
			rep = next
			a.con.printf("순위 갱신: %02d명 중 %d등\n", rep.Stats.TotalUsers, rep.Rank)
		}
	})
	ticks := time.NewTicker(a.cfg.Poll.StatsInterval)
	defer ticks.Stop()
	poller.Run(ctx, ticks.C)
	return nil
}

func (a *app) guests(ctx context.Context, code string) error {
	guests, err := a.api.Guests(ctx, code)
	if err != nil {
		return fmt.Errorf("list guests: %w", err)
	}
	count, err := a.api.GuestCount(ctx, code)
	if err != nil {
		a.log.Warn("guest count", zap.Error(err))
		count = len(guests)
	}
	a.con.printf("%s: %d명\n", code, count)
	for _, g := range guests {
		status := "진행중"
		if g.Finished {
			status = "완료"
		}
		a.con.printf("  %s\t%s\n", g.ID, status)
	}
	return nil
}
