package protocol

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn serializes writes to a websocket connection, which supports only one
// concurrent writer.
type Conn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{Conn: conn}
}

func (c *Conn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.Conn.WriteJSON(v)
}
