package report

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/codive/internal/api"
	"github.com/DoyleJ11/codive/internal/session"
	"github.com/DoyleJ11/codive/pkg/types"
)

type fakeBackend struct {
	answers    []types.Answer
	answersErr error
	stats      types.UserStats
	statsErr   error
	analysis   map[string]api.Analysis // by answer content
	exec       map[string]types.ExecuteResponse
	inFlight   atomic.Int32
	maxSeen    atomic.Int32
	mu         sync.Mutex
	execInputs []string
}

func (f *fakeBackend) Answers(ctx context.Context) ([]types.Answer, error) {
	return f.answers, f.answersErr
}

func (f *fakeBackend) UserStats(ctx context.Context, code string) (types.UserStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeBackend) track() func() {
	n := f.inFlight.Add(1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeBackend) GenerateAnalysis(ctx context.Context, req types.AnalysisRequest) (api.Analysis, error) {
	defer f.track()()
	a, ok := f.analysis[req.Answer]
	if !ok {
		return api.Analysis{}, api.ErrBadAnalysis
	}
	return a, nil
}

func (f *fakeBackend) ExecuteCode(ctx context.Context, req types.ExecuteRequest) (types.ExecuteResponse, error) {
	defer f.track()()
	f.mu.Lock()
	f.execInputs = append(f.execInputs, req.InputData)
	f.mu.Unlock()
	r, ok := f.exec[req.Code]
	if !ok {
		return types.ExecuteResponse{}, errors.New("sandbox down")
	}
	return r, nil
}

func snap(guest string) session.Session { return session.Session{GuestID: guest} }

func TestAssemble_NoIdentity(t *testing.T) {
	a := NewAssembler(&fakeBackend{}, WithLogger(zaptest.NewLogger(t)))
	_, err := a.Assemble(context.Background(), snap(""))
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestAssemble_RowsOrderedWithPlaceholders(t *testing.T) {
	be := &fakeBackend{
		answers: []types.Answer{
			{QuestionID: 3, Content: "sum", UserID: "ABC-1"},
			{QuestionID: 1, Content: "old", UserID: "ABC-1"},
			{QuestionID: 1, Content: "add", UserID: "ABC-1"},
			{QuestionID: 2, Content: "other", UserID: "ABC-2"},
			{QuestionID: 4, Content: "broken", UserID: "ABC-1"},
		},
		stats: types.UserStats{ActiveUsers: 2, TotalUsers: 5},
		analysis: map[string]api.Analysis{
			"add": {TimeComplexity: "O(1)", CodeStyle: api.StyleWarnings{"C0304 - Final newline missing"}},
			"sum": {TimeComplexity: "O(n)"},
		},
		exec: map[string]types.ExecuteResponse{
			"add": {Output: "8\n", ExecutionTime: 0.01, MemoryUsedKB: 900},
			"sum": {Stdout: "54", ExecutionTime: 0.02, MemoryUsage: 1000},
		},
	}
	a := NewAssembler(be, WithLogger(zaptest.NewLogger(t)))
	rep, err := a.Assemble(context.Background(), snap("ABC-1"))
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Rank)
	for i, row := range rep.Rows {
		assert.Equal(t, i+1, row.QuestionID)
	}

	q1 := rep.Rows[0]
	assert.True(t, q1.Submitted)
	assert.Equal(t, "add", q1.Code, "latest answer wins")
	assert.Equal(t, "O(1)", q1.TimeComplexity)
	assert.True(t, q1.TestPass)
	assert.Equal(t, 900.0, q1.MemoryKB)

	assert.False(t, rep.Rows[1].Submitted, "other user's answer is filtered")
	assert.Equal(t, NotSubmitted, rep.Rows[1].TimeComplexity)

	q3 := rep.Rows[2]
	assert.False(t, q3.TestPass, "54 != 55")
	assert.Equal(t, 1000.0, q3.MemoryKB)

	q4 := rep.Rows[3]
	assert.True(t, q4.Submitted)
	assert.Equal(t, NotSubmitted, q4.TimeComplexity)
	assert.False(t, q4.TestPass)
	require.Error(t, rep.Failures)
	assert.ErrorIs(t, rep.Failures, api.ErrBadAnalysis)

	assert.False(t, rep.Rows[4].Submitted)
	assert.ElementsMatch(t, []string{"3 5", "10", "codive"}, be.execInputs)
}

func TestAssemble_SandboxErrorFails(t *testing.T) {
	be := &fakeBackend{
		answers:  []types.Answer{{QuestionID: 5, Content: "mul", UserID: "R-1"}},
		analysis: map[string]api.Analysis{"mul": {TimeComplexity: "O(1)"}},
		exec:     map[string]types.ExecuteResponse{"mul": {Output: "42", Error: "Traceback"}},
	}
	rep, err := NewAssembler(be).Assemble(context.Background(), snap("R-1"))
	require.NoError(t, err)
	assert.False(t, rep.Rows[4].TestPass)
	assert.NoError(t, rep.Failures)
}

func TestAssemble_FetchFailuresDegrade(t *testing.T) {
	be := &fakeBackend{answersErr: api.ErrServer, statsErr: api.ErrServer}
	rep, err := NewAssembler(be, WithLogger(zaptest.NewLogger(t))).Assemble(context.Background(), snap("R-1"))
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Rank)
	for _, row := range rep.Rows {
		assert.False(t, row.Submitted)
	}
	assert.ErrorIs(t, rep.Failures, api.ErrServer)
}

func TestAssemble_BoundedConcurrency(t *testing.T) {
	be := &fakeBackend{analysis: map[string]api.Analysis{}, exec: map[string]types.ExecuteResponse{}}
	for q := 1; q <= 5; q++ {
		code := string(rune('a' + q))
		be.answers = append(be.answers, types.Answer{QuestionID: q, Content: code, UserID: "R-1"})
		be.analysis[code] = api.Analysis{TimeComplexity: "O(1)"}
		be.exec[code] = types.ExecuteResponse{Output: "x"}
	}
	_, err := NewAssembler(be, WithConcurrency(2)).Assemble(context.Background(), snap("R-1"))
	require.NoError(t, err)
	assert.LessOrEqual(t, be.maxSeen.Load(), int32(2))
}

func TestWithStatsRecomputesRank(t *testing.T) {
	r := Report{}.WithStats(types.UserStats{ActiveUsers: 4, TotalUsers: 5})
	assert.Equal(t, 1, r.Rank)
	r = r.WithStats(types.UserStats{ActiveUsers: 0, TotalUsers: 5})
	assert.Equal(t, 5, r.Rank)
}

func TestRender(t *testing.T) {
	r := Report{Stats: types.UserStats{ActiveUsers: 4, TotalUsers: 5}, Rank: 1}
	for i := range r.Rows {
		r.Rows[i] = placeholder(i + 1)
	}
	r.Rows[0] = Row{QuestionID: 1, Submitted: true, Executed: true, TimeComplexity: "O(n)", CodeStyle: []string{"E113"}, MemoryKB: 74200, ExecutionTime: 0.456789, TestPass: true}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "05명 중 1등 !")
	assert.Contains(t, out, "#01")
	assert.Contains(t, out, "O(n)")
	assert.Contains(t, out, "72 MiB")
	assert.Contains(t, out, "0.456789 seconds")
	assert.Contains(t, out, "통과")
	assert.Contains(t, out, NotSubmitted)
}

func TestAssemble_ExecuteFailureLeavesCellsEmpty(t *testing.T) {
	be := &fakeBackend{
		answers:  []types.Answer{{QuestionID: 2, Content: "down", UserID: "R-1"}},
		analysis: map[string]api.Analysis{"down": {TimeComplexity: "O(n)"}},
		exec:     map[string]types.ExecuteResponse{},
	}
	rep, err := NewAssembler(be, WithLogger(zaptest.NewLogger(t))).Assemble(context.Background(), snap("R-1"))
	require.NoError(t, err)
	require.Error(t, rep.Failures)

	row := rep.Rows[1]
	assert.True(t, row.Submitted)
	assert.False(t, row.Executed)
	assert.Equal(t, "O(n)", row.TimeComplexity)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, rep))
	out := buf.String()
	assert.NotContains(t, out, "0 B")
	assert.NotContains(t, out, "seconds")
	assert.NotContains(t, out, "실패")
	assert.Contains(t, out, "O(n)")
}

func TestAssemble_MillisecondSandboxInSeconds(t *testing.T) {
	be := &fakeBackend{
		answers:  []types.Answer{{QuestionID: 1, Content: "ms", UserID: "R-1"}},
		analysis: map[string]api.Analysis{"ms": {TimeComplexity: "O(1)"}},
		exec:     map[string]types.ExecuteResponse{"ms": {Stdout: "x", ExecutionTime: 250, MemoryUsage: 1024, TimeInMillis: true}},
	}
	rep, err := NewAssembler(be).Assemble(context.Background(), snap("R-1"))
	require.NoError(t, err)
	assert.InDelta(t, 0.25, rep.Rows[0].ExecutionTime, 1e-9)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, rep))
	assert.Contains(t, buf.String(), "0.250000 seconds")
	assert.Contains(t, buf.String(), "1.0 MiB")
}
