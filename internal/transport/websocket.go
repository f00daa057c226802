package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Upgrader is the shared WebSocket upgrader. Origin checking is left open;
// rooms are joinable by code and carry no credentials.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSRecipient adapts a gorilla WebSocket connection to the Recipient
// interface. Writes are serialized with a mutex; gorilla connections
// support one concurrent writer.
type WSRecipient struct {
	playerID string
	conn     *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewWSRecipient wraps an upgraded connection for a player.
func NewWSRecipient(playerID string, conn *websocket.Conn) *WSRecipient {
	return &WSRecipient{playerID: playerID, conn: conn}
}

// PlayerID returns the owning player's ID.
func (w *WSRecipient) PlayerID() string {
	return w.playerID
}

// Send writes one frame as a JSON text message.
func (w *WSRecipient) Send(f Frame) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteJSON(f)
}

// Close shuts the connection down.
func (w *WSRecipient) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.conn.Close()
	})
	return err
}

// ReadFrames pumps inbound frames to the handler until the connection
// drops. It is meant to run as the connection's read goroutine; the
// returned error is the read error that ended the loop.
func (w *WSRecipient) ReadFrames(handler func(Frame)) error {
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return err
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			// Malformed client input is dropped, not fatal.
			continue
		}
		handler(f)
	}
}

// Type returns the frame's type field, or "" if absent.
func (f Frame) Type() string {
	s, _ := f["type"].(string)
	return s
}

// String returns the named field as a string, or "" if absent or not a
// string.
func (f Frame) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Bool returns the named field as a bool.
func (f Frame) Bool(key string) bool {
	b, _ := f[key].(bool)
	return b
}
