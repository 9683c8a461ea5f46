// Connection hub
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

	"teamchess"
)

// Hub tracks the live connections of every player and implements the
// room's outbound transport.
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[*conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*conn]struct{})}
}

func (h *Hub) register(pid string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[pid] == nil {
		h.conns[pid] = make(map[*conn]struct{})
	}
	h.conns[pid][c] = struct{}{}
}

func (h *Hub) unregister(pid string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.conns[pid]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, pid)
		}
	}
}

func marshal(e teamchess.Event) []byte {
	data, err := json.Marshal(e)
	if err != nil {
		teamchess.Log.Errorf("cannot encode %s event: %s", e.Name, err)
		return nil
	}
	return data
}

// Broadcast sends E to every connection.  Connections whose queue
// overflowed are forgotten on the spot, so a dead connection is never
// pushed to again.
func (h *Hub) Broadcast(e teamchess.Event) {
	data := marshal(e)
	if data == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for pid, set := range h.conns {
		for c := range set {
			if !c.push(data) {
				delete(set, c)
			}
		}
		if len(set) == 0 {
			delete(h.conns, pid)
		}
	}
}

// Send sends E to every connection of one player.
func (h *Hub) Send(pid string, e teamchess.Event) {
	data := marshal(e)
	if data == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[pid]
	for c := range set {
		if !c.push(data) {
			delete(set, c)
		}
	}
	if len(set) == 0 {
		delete(h.conns, pid)
	}
}

// Drop closes every connection of one player.
func (h *Hub) Drop(pid string) {
	h.mu.Lock()
	set := h.conns[pid]
	delete(h.conns, pid)
	h.mu.Unlock()

	for c := range set {
		c.close()
	}
}
