// HTTP server and websocket endpoint
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

// Package web accepts websocket connections and couples them to the
// room: one reader and one writer goroutine per connection, with the
// hub as the room's broadcast transport.
package web

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"teamchess"
	"teamchess/conf"
	"teamchess/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The room does its own admission control; cross-origin
	// browsers are allowed in.
	CheckOrigin: func(*http.Request) bool { return true },
}

type Server struct {
	conf *conf.Conf
	room *room.Room
	hub  *Hub
}

func New(c *conf.Conf, rm *room.Room, hub *Hub) *Server {
	return &Server{conf: c, room: rm, hub: hub}
}

// ListenAndServe blocks serving the websocket endpoint.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/socket", s.serveWs)

	addr := fmt.Sprintf("%s:%d", s.conf.Web.Host, s.conf.Web.Port)
	teamchess.Log.Infof("listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// serveWs upgrades the connection and runs it against the room.  The
// handshake carries the client's pid and name as query parameters; a
// missing pid gets a freshly minted one.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		teamchess.Log.Debugf("upgrade failed: %s", err)
		return
	}

	pid := r.URL.Query().Get("pid")
	name := r.URL.Query().Get("name")
	if pid == "" {
		pid = uuid.NewString()
	}

	c := newConn(ws)
	go c.writePump()

	// Register before admission so the catch-up snapshot reaches
	// this socket.
	s.hub.register(pid, c)
	if _, err := s.room.Connect(pid, name); err != nil {
		c.pushEvent(teamchess.Event{
			Name: "kicked",
			Data: errorPayload{Message: err.Error()},
		})
		s.hub.unregister(pid, c)
		c.close()
		return
	}

	go func() {
		c.readPump(pid, s.room.Dispatch)
		s.hub.unregister(pid, c)
		c.close()
		s.room.Disconnect(pid)
	}()
}
