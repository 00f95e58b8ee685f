package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/codive/pkg/types"
)

// Conn is the client side of the waiting-room push connection.
type Conn struct {
	c         *websocket.Conn
	log       *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

// Dial opens the connection at url (ws:// or wss://). hc may be nil; passing
// the API client's http.Client sends the same cookies.
func Dial(ctx context.Context, url string, hc *http.Client, log *zap.Logger) (*Conn, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: hc})
	if err != nil {
		return nil, fmt.Errorf("dial room socket: %w", err)
	}
	return &Conn{c: c, log: log}, nil
}

// Next blocks until the next known room event. Unknown or binary frames are
// skipped.
func (c *Conn) Next(ctx context.Context) (types.RoomEvent, error) {
	for {
		typ, data, err := c.c.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ != websocket.MessageText {
			continue
		}
		ev, err := types.DecodeRoomEvent(data)
		if errors.Is(err, types.ErrUnknownFrame) {
			c.log.Debug("skipping room frame", zap.ByteString("frame", data))
			continue
		}
		if err != nil {
			return nil, err
		}
		return ev, nil
	}
}

func (c *Conn) SendStart(ctx context.Context) error {
	return c.c.Write(ctx, websocket.MessageText, []byte(types.StartCommand))
}

// Close is safe to call more than once and from any goroutine.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.c.Close(websocket.StatusNormalClosure, "bye")
	})
	return c.closeErr
}

// IsNormalClose reports whether err is the peer closing cleanly.
func IsNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
