package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/codive/internal/engine"
	"github.com/DoyleJ11/codive/pkg/types"
)

type fakeBackend struct {
	mu          sync.Mutex
	answers     []types.Answer
	finished    []string
	hintReqs    []types.HintRequest
	submitErr   error
	finishErr   error
	hintText    string
	hintErr     error
	hintRelease chan struct{} // when set, GenerateHint blocks until closed or ctx ends
}

func (f *fakeBackend) SubmitAnswer(ctx context.Context, a types.Answer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, a)
	return f.submitErr
}

func (f *fakeBackend) FinishUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, userID)
	return f.finishErr
}

func (f *fakeBackend) GenerateHint(ctx context.Context, req types.HintRequest) (string, error) {
	f.mu.Lock()
	f.hintReqs = append(f.hintReqs, req)
	release := f.hintRelease
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.hintText, f.hintErr
}

func (f *fakeBackend) hintCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hintReqs)
}

func recvHint(t *testing.T, c *Controller, within time.Duration) Hint {
	t.Helper()
	select {
	case h := <-c.Hints():
		return h
	case <-time.After(within):
		t.Fatalf("timed out waiting for hint")
		return Hint{}
	}
}

func recvNoHint(t *testing.T, c *Controller, within time.Duration) {
	t.Helper()
	select {
	case h := <-c.Hints():
		t.Fatalf("expected no hint, got %+v", h)
	case <-time.After(within):
	}
}

func TestController_FullRunSubmitsFiveAndFinishes(t *testing.T) {
	be := &fakeBackend{}
	c := New(be, "ROOM-1", false, WithLogger(zaptest.NewLogger(t)))
	defer c.Close()
	ctx := context.Background()

	for i := 1; i <= engine.ProblemCount; i++ {
		require.Equal(t, i, c.State().Current)
		require.NoError(t, c.Edit("print("+string(rune('0'+i))+")"))

		out, err := c.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, out.QuestionID)
		assert.Equal(t, i == engine.ProblemCount, out.Finished)
	}

	require.Len(t, be.answers, engine.ProblemCount)
	for i, a := range be.answers {
		assert.Equal(t, i+1, a.QuestionID)
		assert.Equal(t, "ROOM-1", a.UserID)
		assert.Equal(t, "print("+string(rune('1'+i))+")", a.Content)
	}
	assert.Equal(t, []string{"ROOM-1"}, be.finished)
	assert.Equal(t, engine.PhaseDone, c.State().Phase)

	_, err := c.Next(ctx)
	require.ErrorIs(t, err, engine.ErrSessionFinished)
	assert.Len(t, be.answers, engine.ProblemCount)
}

func TestController_SubmitFailureDoesNotBlockProgress(t *testing.T) {
	be := &fakeBackend{submitErr: errors.New("boom")}
	c := New(be, "ROOM-1", false)
	defer c.Close()

	out, err := c.Next(context.Background())
	require.NoError(t, err)
	require.Error(t, out.SubmitErr)
	assert.Equal(t, 2, c.State().Current)
	assert.Len(t, be.answers, 1)
}

func TestController_FinishFailureIsSurfaced(t *testing.T) {
	finishErr := errors.New("finish rejected")
	be := &fakeBackend{finishErr: finishErr}
	c := New(be, "ROOM-1", false)
	defer c.Close()

	var out Outcome
	var err error
	for i := 0; i < engine.ProblemCount; i++ {
		out, err = c.Next(context.Background())
		require.NoError(t, err)
	}

	assert.True(t, out.Finished)
	require.ErrorIs(t, out.FinishErr, finishErr)
	require.ErrorIs(t, c.State().FinishErr, finishErr)
}

func TestController_HintDisabled(t *testing.T) {
	c := New(&fakeBackend{}, "ROOM-1", false)
	defer c.Close()

	_, err := c.ToggleHint(context.Background())
	require.ErrorIs(t, err, engine.ErrHintNotAllowed)
}

func TestController_HintDeliveredVerbatim(t *testing.T) {
	be := &fakeBackend{hintText: "  try a loop\n"}
	c := New(be, "ROOM-1", true, WithHintMaxTokens(123))
	defer c.Close()

	require.NoError(t, c.Edit("\tprint(1)\n\n"))
	open, err := c.ToggleHint(context.Background())
	require.NoError(t, err)
	require.True(t, open)

	h := recvHint(t, c, time.Second)
	assert.Equal(t, "  try a loop\n", h.Text)
	assert.Equal(t, 1, h.QuestionID)

	require.Len(t, be.hintReqs, 1)
	assert.Equal(t, "print(1)", be.hintReqs[0].UserCode)
	assert.Equal(t, engine.Problems[0].Prompt, be.hintReqs[0].ProblemStatement)
	assert.Equal(t, 123, be.hintReqs[0].MaxTokens)
}

func TestController_HintFailureShowsFallback(t *testing.T) {
	be := &fakeBackend{hintErr: errors.New("model down")}
	c := New(be, "ROOM-1", true)
	defer c.Close()

	_, err := c.ToggleHint(context.Background())
	require.NoError(t, err)

	h := recvHint(t, c, time.Second)
	assert.Equal(t, HintFallback, h.Text)
	require.Error(t, h.Err)
}

func TestController_CloseThenOpenSendsOneNewRequest(t *testing.T) {
	be := &fakeBackend{hintText: "hint"}
	c := New(be, "ROOM-1", true)
	defer c.Close()
	ctx := context.Background()

	open, err := c.ToggleHint(ctx)
	require.NoError(t, err)
	require.True(t, open)
	recvHint(t, c, time.Second)
	require.Equal(t, 1, be.hintCount())

	open, err = c.ToggleHint(ctx)
	require.NoError(t, err)
	require.False(t, open)
	require.Equal(t, 1, be.hintCount(), "closing must not request")

	open, err = c.ToggleHint(ctx)
	require.NoError(t, err)
	require.True(t, open)
	recvHint(t, c, time.Second)
	assert.Equal(t, 2, be.hintCount())
}

func TestController_ReopenCancelsInFlightHint(t *testing.T) {
	be := &fakeBackend{hintText: "fresh", hintRelease: make(chan struct{})}
	c := New(be, "ROOM-1", true)
	defer c.Close()
	ctx := context.Background()

	_, err := c.ToggleHint(ctx) // gen 1, blocks in backend
	require.NoError(t, err)
	require.Eventually(t, func() bool { return be.hintCount() == 1 }, time.Second, 5*time.Millisecond)

	_, err = c.ToggleHint(ctx) // close
	require.NoError(t, err)
	_, err = c.ToggleHint(ctx) // gen 2 cancels gen 1
	require.NoError(t, err)
	require.Eventually(t, func() bool { return be.hintCount() == 2 }, time.Second, 5*time.Millisecond)

	close(be.hintRelease)
	h := recvHint(t, c, time.Second)
	assert.Equal(t, 2, h.Gen)
	recvNoHint(t, c, 100*time.Millisecond)
}

func TestController_HintDroppedAfterNext(t *testing.T) {
	be := &fakeBackend{hintText: "late", hintRelease: make(chan struct{})}
	c := New(be, "ROOM-1", true)
	defer c.Close()

	_, err := c.ToggleHint(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return be.hintCount() == 1 }, time.Second, 5*time.Millisecond)

	_, err = c.Next(context.Background())
	require.NoError(t, err)
	require.False(t, c.State().HintOpen)

	close(be.hintRelease)
	recvNoHint(t, c, 100*time.Millisecond)
}

func TestController_ResumeSubmitsOnlyRemainingProblems(t *testing.T) {
	be := &fakeBackend{}
	var progress []Progress
	c := New(be, "ROOM-1", false,
		WithStartAt(4),
		WithProgress(func(p Progress) { progress = append(progress, p) }),
	)
	defer c.Close()
	ctx := context.Background()

	require.Equal(t, 4, c.State().Current)
	_, err := c.Next(ctx)
	require.NoError(t, err)
	out, err := c.Next(ctx)
	require.NoError(t, err)
	assert.True(t, out.Finished)

	require.Len(t, be.answers, 2)
	assert.Equal(t, 4, be.answers[0].QuestionID)
	assert.Equal(t, 5, be.answers[1].QuestionID)
	assert.Equal(t, []Progress{{Current: 5}, {Current: 5, Finished: true}}, progress)
}
