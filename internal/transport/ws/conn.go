package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	sendBuffer = 64
)

// frame pairs encoded wire bytes with the websocket frame kind they must
// travel on.
type frame struct {
	data   []byte
	binary bool
}

// conn owns one websocket connection. All writes go through the buffered
// send channel so writePump stays the only writer on the socket.
type conn struct {
	id   string
	sock *websocket.Conn
	send chan frame

	mu     sync.Mutex
	closed bool
}

func newConn(id string, sock *websocket.Conn) *conn {
	return &conn{
		id:   id,
		sock: sock,
		send: make(chan frame, sendBuffer),
	}
}

// enqueue - never blocks. false means the connection is closed or the peer
// stopped draining its socket.
func (that *conn) enqueue(f frame) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}
	select {
	case that.send <- f:
		return true
	default:
		return false
	}
}

func (that *conn) close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return
	}
	that.closed = true
	close(that.send)
}

// writePump - drains the send channel onto the socket and keeps the
// connection alive with pings. Exits when the channel closes or a write
// fails, closing the socket either way.
func (that *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = that.sock.Close()
	}()

	for {
		select {
		case f, ok := <-that.send:
			_ = that.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = that.sock.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			kind := websocket.TextMessage
			if f.binary {
				kind = websocket.BinaryMessage
			}
			if err := that.sock.WriteMessage(kind, f.data); err != nil {
				return
			}
		case <-ticker.C:
			_ = that.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump - delivers raw frames until the connection dies. readLimit of
// zero leaves the transport limit off.
func (that *conn) readPump(readLimit int64, onFrame func(data []byte, binary bool)) {
	if readLimit > 0 {
		that.sock.SetReadLimit(readLimit)
	}
	_ = that.sock.SetReadDeadline(time.Now().Add(pongWait))
	that.sock.SetPongHandler(func(string) error {
		return that.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := that.sock.ReadMessage()
		if err != nil {
			return
		}
		onFrame(data, kind == websocket.BinaryMessage)
	}
}
