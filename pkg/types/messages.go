package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Server -> Client text frames on /ws/{code}:
//   count:<n>   current number of guests in the waiting room
//   started     the host started the room
//
// Client -> Server:
//   start       host asks the server to start the room for everyone

const (
	countPrefix  = "count:"
	startedFrame = "started"

	StartCommand = "start"
)

var ErrUnknownFrame = errors.New("unknown room frame")

// RoomEvent is the decoded form of a server frame. The set of variants is closed.
type RoomEvent interface{ isRoomEvent() }

type CountEvent struct {
	N int
}

type StartedEvent struct{}

func (CountEvent) isRoomEvent()   {}
func (StartedEvent) isRoomEvent() {}

func DecodeRoomEvent(frame []byte) (RoomEvent, error) {
	s := strings.TrimSpace(string(frame))
	switch {
	case s == startedFrame:
		return StartedEvent{}, nil
	case strings.HasPrefix(s, countPrefix):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(s, countPrefix)))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad count %q", ErrUnknownFrame, s)
		}
		return CountEvent{N: n}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, s)
	}
}

func EncodeRoomEvent(ev RoomEvent) []byte {
	switch e := ev.(type) {
	case CountEvent:
		return []byte(countPrefix + strconv.Itoa(e.N))
	case StartedEvent:
		return []byte(startedFrame)
	default:
		return nil
	}
}

// IsStartCommand reports whether a client frame asks to start the room.
func IsStartCommand(frame []byte) bool {
	return strings.TrimSpace(string(frame)) == StartCommand
}
