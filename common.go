// Common Interfaces and constants
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

package teamchess

import (
	"errors"
	"time"
)

type (
	// Side is the seat a session occupies.
	Side string
	// Status is the phase of the room state machine.
	Status string
	// EndReason explains why a game reached a terminal state.
	EndReason string
	// TeamVoteKind is the action a team vote decides on.
	TeamVoteKind string
)

const (
	White     Side = "white"
	Black     Side = "black"
	Spectator Side = "spectator"
)

const (
	Lobby             Status = "lobby"
	AwaitingProposals Status = "awaiting_proposals"
	FinalizingTurn    Status = "finalizing_turn"
	Over              Status = "over"
)

const (
	Checkmate            EndReason = "checkmate"
	Stalemate            EndReason = "stalemate"
	ThreefoldRepetition  EndReason = "threefold_repetition"
	InsufficientMaterial EndReason = "insufficient_material"
	FiftyMoveRule        EndReason = "fifty_move_rule"
	Resignation          EndReason = "resignation"
	DrawAgreement        EndReason = "draw_agreement"
	Timeout              EndReason = "timeout"
	Abandonment          EndReason = "abandonment"
)

const (
	Resign     TeamVoteKind = "resign"
	OfferDraw  TeamVoteKind = "offer_draw"
	AcceptDraw TeamVoteKind = "accept_draw"
)

// Other returns the opposing team.  Spectators have no opponent.
func (s Side) Other() Side {
	switch s {
	case White:
		return Black
	case Black:
		return White
	default:
		return Spectator
	}
}

// Team reports whether S is one of the two playing sides.
func (s Side) Team() bool {
	return s == White || s == Black
}

// Proposal is one team member's suggested move for the current turn.
type Proposal struct {
	Lan  string
	San  string
	Name string
}

// Session is the identity record for one known player.  A session is
// created on first connection and removed either immediately (kick)
// or after the disconnect grace period has expired.
type Session struct {
	ID   string
	Name string
	Side Side

	// Grace holds the deadline before which the player may
	// reconnect, zero while the player is connected.
	Grace time.Time
}

// Event is one outbound message of the external boundary.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// Transport delivers outbound events to clients.  Broadcasts are
// fire-and-forget; delivery is the transport's problem.
type Transport interface {
	// Broadcast sends E to every connection.
	Broadcast(e Event)
	// Send sends E to every connection of one player.
	Send(pid string, e Event)
	// Drop closes every connection of one player.
	Drop(pid string)
}

// Engine selects the best move among candidate LANs.  Choose must
// deliver exactly one call to reply, possibly before returning.  The
// room never issues a second Choose before the first has replied.
type Engine interface {
	Choose(fen string, candidates []string, reply func(lan string, err error))
	Quit()
}

// EngineFactory spawns a fresh engine, used at start-up and on reset.
type EngineFactory func() (Engine, error)

// Validation errors returned on the acknowledgement path of inbound
// commands.  They are never broadcast.
var (
	ErrIllegalMove           = errors.New("illegal move")
	ErrIllegalFormat         = errors.New("illegal format")
	ErrNotYourTurn           = errors.New("not your turn")
	ErrAlreadyMoved          = errors.New("already moved")
	ErrNotAcceptingProposals = errors.New("not accepting proposals")
	ErrOnlyWhiteStarts       = errors.New("only white team can start")
	ErrBothTeamsRequired     = errors.New("both teams required")
	ErrNotEligible           = errors.New("you cannot vote - joined late")
	ErrTargetNotFound        = errors.New("target not found")
	ErrVoteActive            = errors.New("a vote is already running")
	ErrNoVote                = errors.New("no vote is running")
	ErrSelfKick              = errors.New("cannot start a kick vote against yourself")
	ErrDrawOfferPending      = errors.New("a draw offer is already pending")
	ErrNoDrawOffer           = errors.New("no draw offer to accept")
	ErrEmptyName             = errors.New("name must not be empty")
	ErrBlacklisted           = errors.New("you have been removed from this room")
	ErrNotOnTeam             = errors.New("spectators cannot vote")
	ErrNotPlaying            = errors.New("game is not running")
	ErrUnknownSession        = errors.New("unknown session")
	ErrUnknownCommand        = errors.New("unknown command")
)
