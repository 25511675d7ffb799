package signals

import (
	"context"

	"github.com/gorilla/websocket"
)

// MessageConn is one live message stream to a source endpoint.
type MessageConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens message streams. The websocket implementation is used in
// production; tests substitute scripted connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (MessageConn, error)
}

// sourceSpec binds a source name to its endpoint, its post-connect
// subscription frame (nil when the endpoint streams unsolicited), and
// its payload normalizer.
type sourceSpec struct {
	name      Source
	url       string
	subscribe []byte
	normalize func(payload []byte) (*Signal, error)
}

type wsDialer struct{}

// NewWebsocketDialer returns the production dialer.
func NewWebsocketDialer() Dialer {
	return wsDialer{}
}

func (wsDialer) Dial(ctx context.Context, url string) (MessageConn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
	return c.conn.Close()
}
