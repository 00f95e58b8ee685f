// Package hub is the dev server's room registry. A single goroutine owns every
// room; handlers talk to it through messages.
package hub

import (
	"context"
	"errors"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/DoyleJ11/codive/internal/lobby"
	"github.com/DoyleJ11/codive/pkg/types"
)

var (
	ErrRoomExists    = errors.New("room code already exists")
	ErrRoomNotFound  = errors.New("room not found")
	ErrWrongPassword = errors.New("wrong password")
	ErrRoomStarted   = errors.New("room already started")
	ErrGuestNotFound = errors.New("guest not found")
	ErrHubClosed     = errors.New("hub closed")
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Code     string
	Password string
	Options  types.RoomOptions
	Reply    chan error
}

type EnterRoom struct {
	Code     string
	Password string
	Reply    chan EnterResult
}

type EnterResult struct {
	GuestID string
	Options types.RoomOptions
	Err     error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type ListGuests struct {
	Code  string
	Reply chan GuestsResult
}

type GuestsResult struct {
	Guests []types.Guest
	Err    error
}

type FinishGuest struct {
	GuestID string
	Reply   chan error
}

type RemoveRoom struct {
	Code string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (EnterRoom) isHubMsg()   {}
func (GetLobby) isHubMsg()    {}
func (ListGuests) isHubMsg()  {}
func (FinishGuest) isHubMsg() {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type room struct {
	pwHash  []byte
	options types.RoomOptions
	lobby   *lobby.Lobby
	guests  []types.Guest
	nextSeq int
	// expire removes the room once every guest has finished.
	expire *time.Timer
}

// DefaultRetention is how long a room outlives its last finisher, so late
// report views can still read the stats.
const DefaultRetention = 10 * time.Minute

type Hub struct {
	inbox chan HubMsg
	rooms map[string]*room
	// guest id -> room code
	guestRooms map[string]string
	retention  time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
}

type Option func(*Hub)

// WithRetention sets how long a room is kept after every guest finished.
func WithRetention(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.retention = d
		}
	}
}

func NewHub(parent context.Context, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:      make(chan HubMsg, 64),
		rooms:      make(map[string]*room),
		guestRooms: make(map[string]string),
		retention:  DefaultRetention,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.loop()
	return h
}

// HostID is the guest id the room creator gets: the creator enters first.
func HostID(code string) string { return code + "-1" }

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create(msg)

			case EnterRoom:
				msg.Reply <- h.enter(msg)

			case GetLobby:
				if r := h.rooms[msg.Code]; r != nil {
					msg.Reply <- r.lobby
					break
				}
				msg.Reply <- nil // May be nil

			case ListGuests:
				r := h.rooms[msg.Code]
				if r == nil {
					msg.Reply <- GuestsResult{Err: ErrRoomNotFound}
					break
				}
				msg.Reply <- GuestsResult{Guests: append([]types.Guest(nil), r.guests...)}

			case FinishGuest:
				msg.Reply <- h.finish(msg.GuestID)

			case RemoveRoom:
				if r := h.rooms[msg.Code]; r != nil {
					if r.expire != nil {
						r.expire.Stop()
					}
					r.lobby.Send(lobby.Shutdown{})
					for _, g := range r.guests {
						delete(h.guestRooms, g.ID)
					}
					delete(h.rooms, msg.Code)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, r := range h.rooms {
		if r.expire != nil {
			r.expire.Stop()
		}
		r.lobby.Send(lobby.Shutdown{})
	}
	clear(h.rooms)
	clear(h.guestRooms)
	h.cancel()
}

func (h *Hub) create(msg CreateRoom) error {
	if h.rooms[msg.Code] != nil {
		return ErrRoomExists
	}
	// Throwaway in-memory rooms: the minimum cost keeps tests fast.
	hash, err := bcrypt.GenerateFromPassword([]byte(msg.Password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	h.rooms[msg.Code] = &room{
		pwHash:  hash,
		options: msg.Options,
		lobby:   lobby.NewLobby(h.ctx),
	}
	return nil
}

func (h *Hub) enter(msg EnterRoom) EnterResult {
	r := h.rooms[msg.Code]
	if r == nil {
		return EnterResult{Err: ErrRoomNotFound}
	}
	if bcrypt.CompareHashAndPassword(r.pwHash, []byte(msg.Password)) != nil {
		return EnterResult{Err: ErrWrongPassword}
	}
	if v, ok := r.lobby.State(h.ctx); ok && v.Started {
		return EnterResult{Err: ErrRoomStarted}
	}

	r.nextSeq++
	id := msg.Code + "-" + strconv.Itoa(r.nextSeq)
	// A guest entering after everyone finished keeps the room alive.
	if r.expire != nil {
		r.expire.Stop()
		r.expire = nil
	}
	r.guests = append(r.guests, types.Guest{ID: id})
	h.guestRooms[id] = msg.Code
	return EnterResult{GuestID: id, Options: r.options}
}

func (h *Hub) finish(guestID string) error {
	code := h.guestRooms[guestID]
	r := h.rooms[code]
	if r == nil {
		return ErrGuestNotFound
	}
	found, all := false, true
	for i := range r.guests {
		if r.guests[i].ID == guestID {
			r.guests[i].Finished = true
			found = true
		}
		all = all && r.guests[i].Finished
	}
	if !found {
		return ErrGuestNotFound
	}
	if all && r.expire == nil {
		r.expire = time.AfterFunc(h.retention, func() {
			select {
			case h.inbox <- RemoveRoom{Code: code}:
			case <-h.ctx.Done():
			}
		})
	}
	return nil
}

// request sends msg and waits for the reply on ch.
func request[T any](ctx context.Context, h *Hub, msg HubMsg, ch chan T) (T, error) {
	var zero T
	select {
	case h.inbox <- msg:
	case <-h.ctx.Done():
		return zero, ErrHubClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-ch:
		return v, nil
	case <-h.ctx.Done():
		return zero, ErrHubClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Hub) Create(ctx context.Context, code, password string, opts types.RoomOptions) error {
	reply := make(chan error, 1)
	err, rerr := request(ctx, h, CreateRoom{Code: code, Password: password, Options: opts, Reply: reply}, reply)
	if rerr != nil {
		return rerr
	}
	return err
}

func (h *Hub) Enter(ctx context.Context, code, password string) EnterResult {
	reply := make(chan EnterResult, 1)
	res, err := request(ctx, h, EnterRoom{Code: code, Password: password, Reply: reply}, reply)
	if err != nil {
		return EnterResult{Err: err}
	}
	return res
}

func (h *Hub) Lobby(ctx context.Context, code string) (*lobby.Lobby, bool) {
	reply := make(chan *lobby.Lobby, 1)
	lb, err := request(ctx, h, GetLobby{Code: code, Reply: reply}, reply)
	return lb, err == nil && lb != nil
}

func (h *Hub) Guests(ctx context.Context, code string) ([]types.Guest, error) {
	reply := make(chan GuestsResult, 1)
	res, err := request(ctx, h, ListGuests{Code: code, Reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	return res.Guests, res.Err
}

// Stats counts guests that have not finished as active.
func (h *Hub) Stats(ctx context.Context, code string) (types.UserStats, error) {
	guests, err := h.Guests(ctx, code)
	if err != nil {
		return types.UserStats{}, err
	}
	stats := types.UserStats{TotalUsers: len(guests)}
	for _, g := range guests {
		if !g.Finished {
			stats.ActiveUsers++
		}
	}
	return stats, nil
}

func (h *Hub) Finish(ctx context.Context, guestID string) error {
	reply := make(chan error, 1)
	err, rerr := request(ctx, h, FinishGuest{GuestID: guestID, Reply: reply}, reply)
	if rerr != nil {
		return rerr
	}
	return err
}

func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
}
