// Game clock
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

package room

import (
	"time"

	"github.com/benbjohnson/clock"

	"teamchess"
)

// startClock begins (or resumes) the countdown for the side to move.
// Emits an initial snapshot.  No-op if already running.
func (r *Room) startClock() {
	if r.game.ticker != nil {
		return
	}
	r.broadcastClock()
	r.scheduleTick()
}

func (r *Room) scheduleTick() {
	var t *clock.Timer
	t = r.clk.AfterFunc(time.Second, func() {
		r.onTick(t)
	})
	r.game.ticker = t
}

// onTick decrements the side to move by one second.  Crossing zero
// ends the game in favour of the other side.
func (r *Room) onTick(t *clock.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.game
	if g.ticker != t || g.status != teamchess.AwaitingProposals {
		return
	}

	if g.side == teamchess.White {
		g.whiteTime--
	} else {
		g.blackTime--
	}
	r.broadcastClock()

	if g.whiteTime <= 0 || g.blackTime <= 0 {
		winner := g.side.Other()
		r.endGame(teamchess.Timeout, &winner)
		return
	}
	r.scheduleTick()
}

// stopClock is idempotent.
func (r *Room) stopClock() {
	if r.game.ticker != nil {
		r.game.ticker.Stop()
		r.game.ticker = nil
	}
}

func (r *Room) broadcastClock() {
	r.out.Broadcast(clockEvent(r.game.whiteTime, r.game.blackTime))
}
