// Session and connection management
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
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"teamchess"
	"teamchess/rules"
)

const maxNameLen = 30

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxNameLen {
		name = string(runes[:maxNameLen])
	}
	return name
}

// Connect admits a connection.  A known pid adopts its session and
// cancels any pending reconnect grace; an unknown or missing pid gets
// a fresh spectator session.  Blacklisted pids are rejected.
func (r *Room) Connect(pid, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, barred := r.blacklist[pid]; barred {
		return "", teamchess.ErrBlacklisted
	}

	s := r.sessions[pid]
	if s == nil {
		if pid == "" {
			pid = uuid.NewString()
		}
		n := cleanName(name)
		if n == "" {
			n = "Guest"
		}
		s = &teamchess.Session{ID: pid, Name: n, Side: teamchess.Spectator}
		r.sessions[pid] = s
	} else {
		if t := r.grace[pid]; t != nil {
			t.Stop()
			delete(r.grace, pid)
		}
		s.Grace = time.Time{}
		if n := cleanName(name); n != "" {
			s.Name = n
		}
	}
	r.conns[pid]++

	teamchess.Log.Infof("%s (%q) connected", pid, s.Name)
	r.sendSnapshot(pid, s)
	r.broadcastPlayers()
	return pid, nil
}

// sendSnapshot brings a fresh socket up to date with everything it is
// allowed to see.
func (r *Room) sendSnapshot(pid string, s *teamchess.Session) {
	g := r.game

	r.out.Send(pid, event("session", SessionPayload{ID: s.ID, Name: s.Name}))
	r.out.Send(pid, statusEvent(g.status))
	r.out.Send(pid, clockEvent(g.whiteTime, g.blackTime))

	if g.status != teamchess.Lobby {
		r.out.Send(pid, event("game_started", GameStartedPayload{
			MoveNumber: g.moveNumber,
			Side:       g.side,
			Proposals:  r.proposalList(),
		}))
		r.out.Send(pid, positionEvent(g.chess.Position().String()))
		if g.drawOffer != nil {
			r.out.Send(pid, drawOfferEvent(g.drawOffer))
		}
		if g.status == teamchess.Over {
			pgn := strings.TrimSpace(g.chess.String())
			r.out.Send(pid, gameOverEvent(g.endReason, g.endWinner, pgn))
		}
		if side, ok := r.memberSide(pid); ok {
			if v := g.teamVote(side); v != nil {
				r.out.Send(pid, event("team_vote_update", r.teamVotePayload(v)))
			}
		}
	}
	if v := g.kickVote; v != nil {
		r.out.Send(pid, event("kick_vote_update", v.payloadFor(pid, r.sessionName(v.initiator))))
	}
	if v := g.resetVote; v != nil {
		r.out.Send(pid, event("reset_vote_update", v.payloadFor(pid, r.sessionName(v.initiator))))
	}
}

// Disconnect drops one connection of PID.  When the last connection
// is gone the reconnect grace starts; only after it expires is the
// player removed from the room.
func (r *Room) Disconnect(pid string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[pid] > 0 {
		r.conns[pid]--
	}
	if r.conns[pid] > 0 {
		return
	}
	delete(r.conns, pid)

	s := r.sessions[pid]
	if s == nil {
		return
	}
	teamchess.Log.Infof("%s (%q) disconnected, grace %s", pid, s.Name, r.conf.GraceDuration())

	d := r.conf.GraceDuration()
	s.Grace = r.clk.Now().Add(d)
	var t *clock.Timer
	t = r.clk.AfterFunc(d, func() {
		r.onGraceExpired(pid, t)
	})
	r.grace[pid] = t
	r.broadcastPlayers()
}

// onGraceExpired removes a player who did not come back in time.
// Their absence can end the game (abandonment) or complete the
// active team's proposals.
func (r *Room) onGraceExpired(pid string, t *clock.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.grace[pid] != t {
		return
	}
	delete(r.grace, pid)
	if r.connected(pid) {
		return
	}

	s := r.sessions[pid]
	if s == nil {
		return
	}
	teamchess.Log.Infof("%s (%q) removed after grace", pid, s.Name)

	delete(r.sessions, pid)
	delete(r.game.whiteIds, pid)
	delete(r.game.blackIds, pid)
	r.broadcastPlayers()

	r.checkAbandonment()
	r.maybeFinalize()
}

// checkAbandonment ends a running game when one team has no members
// left.
func (r *Room) checkAbandonment() {
	g := r.game
	winner, over := rules.Abandoned(g.status, len(g.whiteIds), len(g.blackIds))
	if !over {
		return
	}
	r.endGame(teamchess.Abandonment, winner)
}

// SetName renames PID's session.
func (r *Room) SetName(pid, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[pid]
	if s == nil {
		return teamchess.ErrUnknownSession
	}
	n := cleanName(name)
	if n == "" {
		return teamchess.ErrEmptyName
	}
	s.Name = n
	r.broadcastPlayers()
	return nil
}

// JoinSide moves PID to a team or back to the spectators.  Outside
// the lobby the committed team sets follow, and the change can end
// the game or complete the turn.
func (r *Room) JoinSide(pid string, side teamchess.Side) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[pid]
	if s == nil {
		return teamchess.ErrUnknownSession
	}
	switch side {
	case teamchess.White, teamchess.Black, teamchess.Spectator:
	default:
		return teamchess.ErrIllegalFormat
	}
	s.Side = side

	g := r.game
	if g.status != teamchess.Lobby {
		delete(g.whiteIds, pid)
		delete(g.blackIds, pid)
		if side.Team() {
			g.teamIds(side)[pid] = struct{}{}
		}
	}
	r.broadcastPlayers()

	if g.status != teamchess.Lobby {
		r.checkAbandonment()
		r.maybeFinalize()
	}
	return nil
}

// Chat relays a user message.  Empty messages are dropped.
func (r *Room) Chat(pid, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[pid]
	if s == nil {
		return teamchess.ErrUnknownSession
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	r.out.Broadcast(chatEvent(s.Name, pid, message, false))
	return nil
}

// countSide counts sessions seated on one side.
func (r *Room) countSide(side teamchess.Side) int {
	n := 0
	for _, s := range r.sessions {
		if s.Side == side {
			n++
		}
	}
	return n
}

// broadcastPlayers emits the roster on any membership or
// connectivity change.
func (r *Room) broadcastPlayers() {
	payload := PlayersPayload{
		Spectators:   []PlayerInfo{},
		WhitePlayers: []PlayerInfo{},
		BlackPlayers: []PlayerInfo{},
	}

	pids := make([]string, 0, len(r.sessions))
	for pid := range r.sessions {
		pids = append(pids, pid)
	}
	sort.Strings(pids)

	for _, pid := range pids {
		s := r.sessions[pid]
		info := PlayerInfo{ID: pid, Name: s.Name, Connected: r.connected(pid)}
		switch s.Side {
		case teamchess.White:
			payload.WhitePlayers = append(payload.WhitePlayers, info)
		case teamchess.Black:
			payload.BlackPlayers = append(payload.BlackPlayers, info)
		default:
			payload.Spectators = append(payload.Spectators, info)
		}
	}
	r.out.Broadcast(event("players", payload))
}
