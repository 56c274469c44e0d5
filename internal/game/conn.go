package game

// Conn is the game's view of one client connection. The WebSocket
// transport implements it; tests use in-memory fakes.
type Conn interface {
	// WriteJSON sends one JSON message. Implementations must be safe
	// for concurrent use; the game never serializes its senders.
	WriteJSON(v interface{}) error
	Close() error
}

// delivery is one message bound for one connection, built under the
// game lock and sent after it is released.
type delivery struct {
	playerID string
	conn     Conn
	payload  interface{}
}

// outbox collects deliveries during a locked section.
type outbox struct {
	deliveries []delivery
}

func (o *outbox) add(playerID string, conn Conn, payload interface{}) {
	if conn == nil {
		return
	}
	o.deliveries = append(o.deliveries, delivery{playerID: playerID, conn: conn, payload: payload})
}
