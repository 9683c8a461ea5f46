// Websocket connection pumps
//
// Copyright (c) 2024, 2025  The teamchess authors
//
// This file is part of teamchess.
//
// teamchess is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// teamchess is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with teamchess. If not, see
// <http://www.gnu.org/licenses/>

package web

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"teamchess"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueue      = 64
)

// frame is the wire shape of every message in both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{ws: ws, send: make(chan []byte, sendQueue)}
}

// push queues a message and reports whether the connection is still
// usable.  A client that cannot keep up is dropped, like an agent
// that stops answering pings; the caller must then forget the
// connection, as a dropped one may never be pushed to again.
func (c *conn) push(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		teamchess.Log.Debugf("send queue full, dropping %s", c.ws.RemoteAddr())
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// pushEvent marshals and queues one event for this connection only.
func (c *conn) pushEvent(e teamchess.Event) {
	if data := marshal(e); data != nil {
		c.push(data)
	}
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with pings.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump feeds inbound frames into the dispatcher until the
// connection dies or the client says goodbye.
func (c *conn) readPump(pid string, dispatch func(pid, event string, data json.RawMessage) error) {
	defer c.ws.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			teamchess.Log.Debugf("malformed frame from %s: %s", pid, err)
			continue
		}
		if f.Event == "disconnect" {
			return
		}
		if err := dispatch(pid, f.Event, f.Data); err != nil {
			c.pushEvent(teamchess.Event{
				Name: "error",
				Data: errorPayload{Message: err.Error()},
			})
		}
	}
}
