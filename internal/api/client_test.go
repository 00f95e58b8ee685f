package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/codive/pkg/types"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestEnterRoom_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{name: "bad code", status: http.StatusNotFound, want: ErrRoomNotFound},
		{name: "bad password", status: http.StatusForbidden, want: ErrWrongPassword},
		{name: "already started", status: http.StatusBadRequest, want: ErrAlreadyStarted},
		{name: "anything else", status: http.StatusInternalServerError, want: ErrServer},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			_, err := c.EnterRoom(context.Background(), types.RoomEnterRequest{CodeID: "A", PW: "p"})
			require.ErrorIs(t, err, tc.want)

			var serr *StatusError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tc.status, serr.Status)
		})
	}
}

func TestCreateRoom_DuplicateIsConflict(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	err := c.CreateRoom(context.Background(), types.RoomCreateRequest{CodeID: "A", PW: "p"})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestEnterRoom_GuestIDFromCookie(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req types.RoomEnterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		http.SetCookie(w, &http.Cookie{Name: GuestCookie, Value: req.CodeID + "-4", Path: "/"})
		_ = json.NewEncoder(w).Encode(types.RoomEnterResponse{GuestID: "ignored-1"})
	}))

	resp, err := c.EnterRoom(context.Background(), types.RoomEnterRequest{CodeID: "ROOM", PW: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ROOM-4", resp.GuestID)
}

func TestTransportFailureIsServerError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.UserStats(context.Background(), "ROOM")
	require.ErrorIs(t, err, ErrServer)
}

func TestRoomSocketURL(t *testing.T) {
	c, err := New("https://example.com/base/")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/base/ws/AB%20C", c.RoomSocketURL("AB C"))

	c, err = New("http://localhost:8000")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/ws/ROOM", c.RoomSocketURL("ROOM"))
}

func TestNew_RejectsNonHTTP(t *testing.T) {
	_, err := New("ftp://x")
	require.Error(t, err)
}

func TestExecuteCode_UsesConfiguredPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(types.ExecuteResponse{Stdout: "3", ExecutionTime: 1.5})
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithExecutePath("/execute-code/"))
	require.NoError(t, err)
	res, err := c.ExecuteCode(context.Background(), types.ExecuteRequest{Code: "print(3)"})
	require.NoError(t, err)
	assert.Equal(t, "/execute-code/", gotPath)
	assert.Equal(t, "3", res.Text())
}

func TestExecuteCode_MillisecondBodyReportsSeconds(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stdout":"3\n","execution_time":1500,"memory_usage":2048}`))
	}))
	res, err := c.ExecuteCode(context.Background(), types.ExecuteRequest{Code: "print(3)"})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, res.Seconds(), 1e-9)
	assert.InDelta(t, 2048, res.MemoryKB(), 1e-9)
}
