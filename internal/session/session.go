// Package session holds the client-side persisted state: who the user is in
// which room, how long they have been solving, and the last known headcount.
package session

import (
	"strings"
	"sync"

	"github.com/DoyleJ11/codive/pkg/types"
)

// Session is the persisted form. JSON names match the cookies the web client
// used so an exported browser state can be dropped in as-is.
type Session struct {
	GuestID        string             `json:"guest_id,omitempty"`
	ElapsedSeconds int                `json:"elapsedTime"`
	RemainingUsers RemainingUsers     `json:"remainingUsers"`
	Reloaded       bool               `json:"reloaded"`
	Options        *types.RoomOptions `json:"options,omitempty"`
	Host           bool               `json:"host,omitempty"`
	// Current is the problem being solved; every earlier one is submitted.
	Current  int  `json:"currentProblem,omitempty"`
	Finished bool `json:"finished,omitempty"`
}

type RemainingUsers struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}

type Identity struct {
	GuestID  string
	RoomCode string
	Seq      string
}

// ParseGuestID splits "<roomCode>-<userSeq>". Anything without a room code
// before the first '-' is treated as no identity.
func ParseGuestID(id string) (Identity, bool) {
	code, seq, found := strings.Cut(id, "-")
	if !found || code == "" {
		return Identity{}, false
	}
	return Identity{GuestID: id, RoomCode: code, Seq: seq}, true
}

// Context is the single owner of the Session for a running client. It is read
// from the store once in Open and written back through Update.
type Context struct {
	mu    sync.Mutex
	s     Session
	store Store
}

func Open(store Store) (*Context, error) {
	s, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Context{s: s, store: store}, nil
}

func (c *Context) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.s
	if s.Options != nil {
		opts := *s.Options
		s.Options = &opts
	}
	return s
}

func (c *Context) Identity() (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ParseGuestID(c.s.GuestID)
}

// Update applies fn and persists the result. The in-memory state keeps the
// change even when the save fails.
func (c *Context) Update(fn func(*Session)) error {
	c.mu.Lock()
	fn(&c.s)
	s := c.s
	c.mu.Unlock()
	return c.store.Save(s)
}

// ConsumeReload reports true the first time it is called for a stored session
// and false afterwards.
func (c *Context) ConsumeReload() (bool, error) {
	c.mu.Lock()
	if c.s.Reloaded {
		c.mu.Unlock()
		return false, nil
	}
	c.s.Reloaded = true
	s := c.s
	c.mu.Unlock()
	return true, c.store.Save(s)
}

// Reset forgets the room identity and counters, keeping nothing.
func (c *Context) Reset() error {
	return c.Update(func(s *Session) { *s = Session{} })
}
