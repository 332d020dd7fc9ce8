package events

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

var ErrBusClosed = errors.New("bus closed")

// Bus is a websocket link to the UI hub. Outgoing events are written as JSON
// text frames; incoming frames are decoded as events (usually commands).
type Bus struct {
	url    string
	reconn time.Duration
	source string

	mu     sync.Mutex // guards conn; held across writes
	conn   *ws.Conn
	closed bool
}

func NewBus(rawURL, source string, reconn time.Duration) (*Bus, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse bus url: %w", err)
	}
	if reconn <= 0 {
		reconn = time.Second
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus: %w", err)
	}

	log.Info("Connected to bus", "url", rawURL)
	return &Bus{url: u.String(), reconn: reconn, source: source, conn: conn}, nil
}

type frame struct {
	From string `json:"from"`
	Event
}

// Publish writes ev to the hub. A failed write is logged and triggers a
// reconnect; the event is dropped.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := json.Marshal(frame{From: b.source, Event: ev})
	if err != nil {
		log.Error("Failed to encode bus event", "kind", ev.Kind, "err", err)
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	conn := b.conn
	err = conn.WriteMessage(ws.TextMessage, data)
	b.mu.Unlock()

	if err != nil {
		log.Warn("Bus write failed, reconnecting", "err", err)
		go b.reconnect(conn)
	}
}

// Read blocks for the next inbound event, reconnecting when the hub drops
// the connection.
func (b *Bus) Read() (Event, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return Event{}, ErrBusClosed
		}
		conn := b.conn
		b.mu.Unlock()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if b.isClosed() {
				return Event{}, ErrBusClosed
			}
			if IsClosed(err) {
				log.Warn("Bus connection closed, reconnecting", "err", err)
			} else {
				log.Warn("Bus read failed, reconnecting", "err", err)
			}
			b.reconnect(conn)
			continue
		}

		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			log.Warn("Dropping malformed bus frame", "err", err)
			continue
		}
		log.Debug("Read bus", "kind", f.Kind, "from", f.From)
		return f.Event, nil
	}
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.conn.Close()
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// reconnect replaces stale with a fresh connection unless the bus was closed
// or someone else already replaced it.
func (b *Bus) reconnect(stale *ws.Conn) {
	_ = stale.Close()
	for {
		if !b.current(stale) {
			return
		}
		conn, _, err := ws.DefaultDialer.Dial(b.url, nil)
		if err != nil {
			time.Sleep(b.reconn)
			continue
		}

		b.mu.Lock()
		if b.closed || b.conn != stale {
			b.mu.Unlock()
			_ = conn.Close()
			return
		}
		b.conn = conn
		b.mu.Unlock()

		log.Info("Reconnected to bus", "url", b.url)
		return
	}
}

func (b *Bus) current(conn *ws.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.conn == conn
}

func IsClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
