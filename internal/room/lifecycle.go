// Package room implements the room lifecycle on the client: creating or
// joining a room, waiting for the host to start, and finishing.
package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/DoyleJ11/codive/internal/session"
	"github.com/DoyleJ11/codive/pkg/types"
)

type State string

const (
	StateIdle       State = "idle"
	StateAwaiting   State = "awaiting-creation-or-join"
	StateWaiting    State = "waiting-room"
	StateInProgress State = "in-progress"
	StateFinished   State = "finished"
)

type Mode string

const (
	ModeCreate Mode = "create"
	ModeJoin   Mode = "join"
)

var (
	ErrWrongState = errors.New("invalid room transition")
	ErrNoIdentity = errors.New("no room identity")
	ErrNotHost    = errors.New("only the host can start the room")
	ErrFinished   = errors.New("session already finished")
)

type API interface {
	CreateRoom(ctx context.Context, req types.RoomCreateRequest) error
	EnterRoom(ctx context.Context, req types.RoomEnterRequest) (types.RoomEnterResponse, error)
	RoomSocketURL(code string) string
}

// Conn is the waiting-room push connection.
type Conn interface {
	Next(ctx context.Context) (types.RoomEvent, error)
	SendStart(ctx context.Context) error
	Close() error
}

type Dialer func(ctx context.Context, url string) (Conn, error)

type Lifecycle struct {
	api  API
	dial Dialer
	sess *session.Context
	log  *zap.Logger

	mu        sync.Mutex
	state     State
	mode      Mode
	headcount int

	// pending is a room this client created but has not entered yet.
	pending *types.RoomEnterRequest
}

func NewLifecycle(api API, dial Dialer, sess *session.Context, log *zap.Logger) *Lifecycle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Lifecycle{api: api, dial: dial, sess: sess, log: log, state: StateIdle}
}

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) Mode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

func (l *Lifecycle) Headcount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.headcount
}

// transition moves to `to` if the current state is one of from.
func (l *Lifecycle) transition(to State, from ...State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range from {
		if l.state == s {
			l.log.Debug("room state", zap.String("from", string(l.state)), zap.String("to", string(to)))
			l.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrWrongState, l.state, to)
}

func (l *Lifecycle) begin(mode Mode) error {
	if err := l.transition(StateAwaiting, StateIdle, StateAwaiting); err != nil {
		return err
	}
	l.mu.Lock()
	l.mode = mode
	l.mu.Unlock()
	return nil
}

func (l *Lifecycle) BeginCreate() error { return l.begin(ModeCreate) }
func (l *Lifecycle) BeginJoin() error   { return l.begin(ModeJoin) }

// Cancel closes the create/join form or leaves the waiting room.
func (l *Lifecycle) Cancel() error {
	return l.transition(StateIdle, StateAwaiting, StateWaiting)
}

func (l *Lifecycle) requireForm(mode Mode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateAwaiting || l.mode != mode {
		return fmt.Errorf("%w: %s form while %s/%s", ErrWrongState, mode, l.state, l.mode)
	}
	return nil
}

// Create registers a new room and enters it as host. Form problems come back
// as *FormError and leave the form open.
func (l *Lifecycle) Create(ctx context.Context, form CreateForm) error {
	if err := l.requireForm(ModeCreate); err != nil {
		return err
	}
	form.Code = normalizeCode(form.Code)
	if err := validateForm(form); err != nil {
		return err
	}

	opts := form.Options
	req := types.RoomEnterRequest{CodeID: form.Code, PW: form.Password}
	l.mu.Lock()
	created := l.pending != nil && *l.pending == req
	l.mu.Unlock()

	if created {
		l.log.Info("retrying enter of created room", zap.String("room", form.Code))
	} else {
		err := l.api.CreateRoom(ctx, types.RoomCreateRequest{CodeID: form.Code, PW: form.Password, Options: &opts})
		if err != nil {
			l.log.Info("create room rejected", zap.String("room", form.Code), zap.Error(err))
			return createError(err)
		}
		l.log.Info("room created", zap.String("room", form.Code))
		l.mu.Lock()
		l.pending = &req
		l.mu.Unlock()
	}

	return l.enter(ctx, form.Code, form.Password, true, opts)
}

func (l *Lifecycle) Join(ctx context.Context, form JoinForm) error {
	if err := l.requireForm(ModeJoin); err != nil {
		return err
	}
	form.Code = normalizeCode(form.Code)
	if err := validateForm(form); err != nil {
		return err
	}
	return l.enter(ctx, form.Code, form.Password, false, types.RoomOptions{})
}

// normalizeCode trims the invite code and composes Hangul typed as separate
// jamo, so codes match whatever input method produced them.
func normalizeCode(code string) string {
	return norm.NFC.String(strings.TrimSpace(code))
}

func (l *Lifecycle) enter(ctx context.Context, code, password string, host bool, hostOpts types.RoomOptions) error {
	resp, err := l.api.EnterRoom(ctx, types.RoomEnterRequest{CodeID: code, PW: password})
	if err != nil {
		l.log.Info("enter room rejected", zap.String("room", code), zap.Error(err))
		return enterError(err)
	}
	if _, ok := session.ParseGuestID(resp.GuestID); !ok {
		return &FormError{Field: FieldForm, Message: MsgServer, Err: fmt.Errorf("%w: backend sent %q", ErrNoIdentity, resp.GuestID)}
	}

	opts := hostOpts
	if resp.Options != nil {
		opts = *resp.Options
	}
	if err := l.sess.Update(func(s *session.Session) {
		*s = session.Session{GuestID: resp.GuestID, Host: host, Options: &opts}
	}); err != nil {
		l.log.Warn("persist session", zap.Error(err))
	}
	l.mu.Lock()
	l.pending = nil
	l.mu.Unlock()
	l.log.Info("entered room", zap.String("guest", resp.GuestID), zap.Bool("host", host))
	return l.transition(StateWaiting, StateAwaiting)
}

// Resume picks up a stored session that already passed the waiting room. A
// finished session only has its report left.
func (l *Lifecycle) Resume() error {
	if _, ok := l.sess.Identity(); !ok {
		return ErrNoIdentity
	}
	if l.sess.Snapshot().Finished {
		return ErrFinished
	}
	return l.transition(StateInProgress, StateIdle)
}

// Finish marks the end of the problem sequence.
func (l *Lifecycle) Finish() error {
	return l.transition(StateFinished, StateInProgress)
}
