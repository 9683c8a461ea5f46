// Room state and wiring
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

// Package room implements the game-room state machine: the turn
// lifecycle, the three vote subsystems, per-side clocks and the
// session lifecycle.  One Room exists per process.
//
// Every mutation happens under a single mutex; inbound commands,
// timer callbacks and engine replies all serialise on it.  The only
// suspension point is the wait for the engine's best-move reply,
// guarded by the FinalizingTurn status.
package room

import (
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/corentings/chess"

	"teamchess"
	"teamchess/conf"
)

type Room struct {
	mu sync.Mutex

	conf  *conf.Conf
	clk   clock.Clock
	out   teamchess.Transport
	spawn teamchess.EngineFactory

	engine teamchess.Engine

	sessions  map[string]*teamchess.Session
	conns     map[string]int
	grace     map[string]*clock.Timer
	blacklist map[string]struct{}

	game *gameState
}

// gameState is the resettable part of the room.  A reset replaces the
// whole record; only the blacklist (held by the Room) survives.
type gameState struct {
	whiteIds map[string]struct{}
	blackIds map[string]struct{}

	side       teamchess.Side
	moveNumber int
	proposals  map[string]teamchess.Proposal
	// Proposal insertion order, for crediting the first matching
	// proposer and for a stable candidate list.
	order []string

	whiteTime int
	blackTime int
	ticker    *clock.Timer

	chess *chess.Game

	status    teamchess.Status
	endReason teamchess.EndReason
	endWinner *teamchess.Side

	drawOffer *teamchess.Side

	whiteVote *teamVote
	blackVote *teamVote
	kickVote  *kickVote
	resetVote *resetVote
}

func newGameState(initial int) *gameState {
	return &gameState{
		whiteIds:   make(map[string]struct{}),
		blackIds:   make(map[string]struct{}),
		side:       teamchess.White,
		moveNumber: 1,
		proposals:  make(map[string]teamchess.Proposal),
		whiteTime:  initial,
		blackTime:  initial,
		chess:      chess.NewGame(),
		status:     teamchess.Lobby,
	}
}

func (g *gameState) teamIds(side teamchess.Side) map[string]struct{} {
	if side == teamchess.White {
		return g.whiteIds
	}
	return g.blackIds
}

func (g *gameState) teamVote(side teamchess.Side) *teamVote {
	if side == teamchess.White {
		return g.whiteVote
	}
	return g.blackVote
}

func (g *gameState) setTeamVote(side teamchess.Side, v *teamVote) {
	if side == teamchess.White {
		g.whiteVote = v
	} else {
		g.blackVote = v
	}
}

// New builds a room around the given clock, transport and engine
// factory.  The first engine is spawned immediately; a factory error
// here is fatal to the caller.
func New(c *conf.Conf, clk clock.Clock, out teamchess.Transport, spawn teamchess.EngineFactory) (*Room, error) {
	eng, err := spawn()
	if err != nil {
		return nil, err
	}
	return &Room{
		conf:      c,
		clk:       clk,
		out:       out,
		spawn:     spawn,
		engine:    eng,
		sessions:  make(map[string]*teamchess.Session),
		conns:     make(map[string]int),
		grace:     make(map[string]*clock.Timer),
		blacklist: make(map[string]struct{}),
		game:      newGameState(int(c.Clock.Initial)),
	}, nil
}

// connected reports whether the player has at least one live
// connection.
func (r *Room) connected(pid string) bool {
	return r.conns[pid] > 0
}

// connectedPids is the snapshot of all currently connected players,
// in stable order.
func (r *Room) connectedPids() []string {
	var pids []string
	for pid, n := range r.conns {
		if n > 0 {
			pids = append(pids, pid)
		}
	}
	sort.Strings(pids)
	return pids
}

// onlineTeam is the list of connected members of one team.
func (r *Room) onlineTeam(side teamchess.Side) []string {
	var pids []string
	for pid := range r.game.teamIds(side) {
		if r.connected(pid) {
			pids = append(pids, pid)
		}
	}
	sort.Strings(pids)
	return pids
}

func (r *Room) sessionName(pid string) string {
	if s := r.sessions[pid]; s != nil {
		return s.Name
	}
	return ""
}

func (r *Room) systemChat(message string) {
	r.out.Broadcast(chatEvent("System", "", message, true))
}

// stopTimers cancels every timer owned by the current game state.
func (r *Room) stopTimers() {
	g := r.game
	r.stopClock()
	for _, v := range []*teamVote{g.whiteVote, g.blackVote} {
		if v != nil && v.timer != nil {
			v.timer.Stop()
		}
	}
	if g.kickVote != nil && g.kickVote.timer != nil {
		g.kickVote.timer.Stop()
	}
	if g.resetVote != nil && g.resetVote.timer != nil {
		g.resetVote.timer.Stop()
	}
}

// doReset rebuilds the room state, preserving only the blacklist and
// the sessions.  The engine is replaced by a fresh instance.
func (r *Room) doReset() {
	r.stopTimers()

	if r.engine != nil {
		r.engine.Quit()
	}
	r.game = newGameState(int(r.conf.Clock.Initial))

	eng, err := r.spawn()
	if err != nil {
		teamchess.Log.Errorf("engine respawn failed: %s", err)
		eng = nil
	}
	r.engine = eng

	r.out.Broadcast(event("game_reset", nil))
	r.out.Broadcast(statusEvent(r.game.status))
	r.out.Broadcast(clockEvent(r.game.whiteTime, r.game.blackTime))
	r.broadcastTeamVote(teamchess.White)
	r.broadcastTeamVote(teamchess.Black)
	r.broadcastKickVote()
	r.broadcastResetVote()
	r.systemChat("The game has been reset")
}

// Shutdown stops all timers and the engine.  Used on process exit.
func (r *Room) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopTimers()
	for pid, t := range r.grace {
		t.Stop()
		delete(r.grace, pid)
	}
	if r.engine != nil {
		r.engine.Quit()
		r.engine = nil
	}
}
