package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/codive/internal/api"
	"github.com/DoyleJ11/codive/internal/config"
	"github.com/DoyleJ11/codive/internal/httpapi"
	"github.com/DoyleJ11/codive/internal/hub"
	"github.com/DoyleJ11/codive/internal/room"
	"github.com/DoyleJ11/codive/internal/session"
	"github.com/DoyleJ11/codive/internal/ws"
	"github.com/DoyleJ11/codive/pkg/types"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() *config.Config {
	return &config.Config{
		Backend: config.BackendConfig{HintMaxTokens: 100, AnalysisMaxTokens: 100},
		Poll:    config.PollConfig{StatsInterval: time.Hour},
		Report:  config.ReportConfig{Concurrency: 2},
	}
}

// testApp wires an app against a dev server with scripted stdin.
func testApp(t *testing.T, baseURL string, store session.Store, input string) (*app, *syncBuffer) {
	t.Helper()
	log := zaptest.NewLogger(t)
	client, err := api.New(baseURL, api.WithLogger(log), api.WithExecutePath("/execute-code/"))
	require.NoError(t, err)
	sess, err := session.Open(store)
	require.NoError(t, err)

	out := &syncBuffer{}
	a := &app{cfg: testConfig(), log: log, con: newConsole(strings.NewReader(input), out), api: client, sess: sess}
	dial := func(ctx context.Context, url string) (room.Conn, error) {
		return ws.Dial(ctx, url, &http.Client{Jar: client.Jar()}, log)
	}
	a.life = room.NewLifecycle(client, dial, sess, log)
	return a, out
}

// enteredSession creates a room and returns a store holding the host's identity.
func enteredSession(t *testing.T, ctx context.Context, baseURL, code string) *session.MemoryStore {
	t.Helper()
	client, err := api.New(baseURL)
	require.NoError(t, err)
	require.NoError(t, client.CreateRoom(ctx, types.RoomCreateRequest{CodeID: code, PW: "pw", Options: &types.RoomOptions{}}))
	resp, err := client.EnterRoom(ctx, types.RoomEnterRequest{CodeID: code, PW: "pw"})
	require.NoError(t, err)
	return session.NewMemoryStore(session.Session{GuestID: resp.GuestID, Host: true, Options: &types.RoomOptions{}})
}

func answersByQuestion(t *testing.T, ctx context.Context, baseURL, userID string) map[int]int {
	t.Helper()
	client, err := api.New(baseURL)
	require.NoError(t, err)
	all, err := client.Answers(ctx)
	require.NoError(t, err)
	counts := map[int]int{}
	for _, a := range all {
		if a.UserID == userID {
			counts[a.QuestionID]++
		}
	}
	return counts
}

func TestResume_ContinuesFromSavedProblem(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h := hub.NewHub(ctx)
	srv := httptest.NewServer(httpapi.SetupRoutes(h, httpapi.Deps{Log: zaptest.NewLogger(t)}))
	defer srv.Close()

	store := enteredSession(t, ctx, srv.URL, "RESUME")

	first, _ := testApp(t, srv.URL, store, "print(8)\n:next\nprint(9)\n:next\n:quit\n")
	require.ErrorIs(t, first.resume(ctx), errAborted)

	second, _ := testApp(t, srv.URL, store, "x\n:next\n:quit\n")
	require.ErrorIs(t, second.resume(ctx), errAborted)

	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1}, answersByQuestion(t, ctx, srv.URL, "RESUME-1"))
	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, saved.Current)
	assert.False(t, saved.Finished)

	third, out := testApp(t, srv.URL, store, ":next\n:next\n")
	require.NoError(t, third.resume(ctx))
	assert.Contains(t, out.String(), "내 순위는?")
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1, 4: 1, 5: 1}, answersByQuestion(t, ctx, srv.URL, "RESUME-1"))

	saved, err = store.Load()
	require.NoError(t, err)
	assert.True(t, saved.Finished)

	done, _ := testApp(t, srv.URL, store, ":next\n")
	require.ErrorIs(t, done.resume(ctx), room.ErrFinished)
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1, 4: 1, 5: 1}, answersByQuestion(t, ctx, srv.URL, "RESUME-1"))
}

func TestConsole_UnreadComesFirst(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c := newConsole(strings.NewReader("second\n"), &syncBuffer{})
	c.unread("first")

	l, ok := c.line(ctx)
	require.True(t, ok)
	assert.Equal(t, "first", l)
	l, ok = c.line(ctx)
	require.True(t, ok)
	assert.Equal(t, "second", l)
	_, ok = c.line(ctx)
	assert.False(t, ok)
}
