package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"monkArenaAPI/internal/core"
	"monkArenaAPI/internal/roomsync"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. The feed is one-way;
	// clients only ever send control frames.
	maxMessageSize = 512
)

// RoomFeedClient streams leaderboard snapshots for one room over a
// websocket. Each connection owns its own sync controller: load and
// subscribe on open, reset on close, so the room subscription can never
// outlive the viewer.
type RoomFeedClient struct {
	Conn *websocket.Conn
	Send chan []byte

	ctrl   *roomsync.Controller
	roomID uuid.UUID
}

func NewRoomFeedClient(conn *websocket.Conn, store core.Store, notifier core.Notifier, roomID uuid.UUID) *RoomFeedClient {
	c := &RoomFeedClient{
		Conn:   conn,
		Send:   make(chan []byte, 8),
		roomID: roomID,
	}
	c.ctrl = roomsync.NewController(store, notifier, c.pushSnapshot)
	return c
}

// Start loads the initial snapshot and opens the live subscription.
// The first full leaderboard goes out before any change event can.
func (c *RoomFeedClient) Start(ctx context.Context) error {
	if err := c.ctrl.Load(ctx, c.roomID); err != nil {
		return err
	}
	return c.ctrl.Subscribe(c.roomID)
}

func (c *RoomFeedClient) pushSnapshot(snap roomsync.Snapshot) {
	payload := map[string]any{
		"action":  "leaderboard_update",
		"room_id": snap.RoomID,
		"entries": snap.Entries,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("RoomFeed: failed to marshal snapshot: %v", err)
		return
	}

	select {
	case c.Send <- data:
	default:
		// Slow consumer; drop this frame, the next refresh supersedes it.
	}
}

// ReadPump drains the connection until the client goes away, then
// releases the room subscription. Clients do not send data frames.
func (c *RoomFeedClient) ReadPump() {
	// Send is deliberately never closed: a late silent refresh may still
	// try to push a frame after teardown, and a buffered send to a live
	// channel is safe where a send to a closed one is not. WritePump
	// exits on its own once the connection is gone.
	defer func() {
		c.ctrl.Reset()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("RoomFeed: read error: %v", err)
			}
			return
		}
	}
}

// WritePump handles messages going to the client plus keepalive pings.
func (c *RoomFeedClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
