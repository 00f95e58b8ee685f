// Package lobby is the dev server's per-room waiting-room actor. It tracks the
// connected sockets and fans out headcount and start frames to them.
package lobby

import (
	"context"

	"github.com/DoyleJ11/codive/pkg/types"
)

type Msg interface{ isLobbyMsg() }

type Join struct {
	ClientID string
	Outbox   chan types.RoomEvent // where this client wants to receive events
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

// Start begins the room for everyone. Later starts are ignored.
type Start struct{}

func (Start) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	NumClients int
	Started    bool
}

type Lobby struct {
	inbox   chan Msg
	started bool
	clients map[string]chan types.RoomEvent
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewLobby(parent context.Context) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		inbox:   make(chan Msg, 64), // Small buffer
		clients: make(map[string]chan types.RoomEvent),
		ctx:     ctx,
		cancel:  cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client, then tell everyone the new headcount
				l.clients[msg.ClientID] = msg.Outbox
				l.broadcast(types.CountEvent{N: len(l.clients)})
				if l.started {
					l.sendTo(msg.ClientID, types.StartedEvent{})
				}

			case Leave:
				if _, ok := l.clients[msg.ClientID]; !ok {
					break
				}
				close(l.clients[msg.ClientID])
				delete(l.clients, msg.ClientID)
				l.broadcast(types.CountEvent{N: len(l.clients)})

			case Start:
				if l.started {
					break
				}
				l.started = true
				l.broadcast(types.StartedEvent{})

			case GetState:
				msg.Reply <- View{NumClients: len(l.clients), Started: l.started}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more events
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(ev types.RoomEvent) {
	for id := range l.clients {
		l.sendTo(id, ev)
	}
}

func (l *Lobby) sendTo(id string, ev types.RoomEvent) {
	ch, ok := l.clients[id]
	if !ok {
		return
	}
	select {
	case ch <- ev:
		//ok
	default:
		// Client is slow/full - drop them.
		close(ch)
		delete(l.clients, id)
	}
}

// Inbox exposes the raw inbox for tests.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Send delivers m unless the lobby has already shut down.
func (l *Lobby) Send(m Msg) bool {
	select {
	case l.inbox <- m:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// State asks the lobby for a view. ok is false once the lobby is gone.
func (l *Lobby) State(ctx context.Context) (View, bool) {
	reply := make(chan View, 1)
	if !l.Send(GetState{Reply: reply}) {
		return View{}, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-l.ctx.Done():
		return View{}, false
	case <-ctx.Done():
		return View{}, false
	}
}

func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }
