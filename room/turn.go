// Turn coordinator
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
	"strings"

	"github.com/corentings/chess"

	"teamchess"
	"teamchess/rules"
)

// SubmitProposal records PID's suggested move for the current turn.
// The first proposal from a white-team player starts the game.
func (r *Room) SubmitProposal(pid, lan string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[pid]
	if s == nil {
		return teamchess.ErrUnknownSession
	}

	g := r.game
	switch g.status {
	case teamchess.Lobby:
		if s.Side != teamchess.White {
			return teamchess.ErrOnlyWhiteStarts
		}
		if r.countSide(teamchess.Black) == 0 {
			return teamchess.ErrBothTeamsRequired
		}
		r.startGame()
	case teamchess.AwaitingProposals:
		// proposals are open
	default:
		return teamchess.ErrNotAcceptingProposals
	}

	if _, ok := g.teamIds(g.side)[pid]; !ok {
		return teamchess.ErrNotYourTurn
	}
	if _, ok := g.proposals[pid]; ok {
		return teamchess.ErrAlreadyMoved
	}

	// Validate against the current position without touching the
	// board; nothing is applied until the turn is finalized.
	pos := g.chess.Position()
	move, err := chess.UCINotation{}.Decode(pos, lan)
	if err != nil {
		return teamchess.ErrIllegalFormat
	}
	if !legalAt(pos, move) {
		return teamchess.ErrIllegalMove
	}
	san := chess.AlgebraicNotation{}.Encode(pos, move)

	g.proposals[pid] = teamchess.Proposal{Lan: move.String(), San: san, Name: s.Name}
	g.order = append(g.order, pid)

	// Playing on answers a pending draw offer from the other side.
	if g.drawOffer != nil && *g.drawOffer == g.side.Other() {
		if v := g.teamVote(g.side); v != nil && v.kind == teamchess.AcceptDraw {
			r.failTeamVote(v)
		} else {
			r.clearDrawOffer()
		}
	}

	r.out.Broadcast(event("move_submitted", MoveSubmittedPayload{
		ID:         pid,
		Name:       s.Name,
		MoveNumber: g.moveNumber,
		Side:       g.side,
		Lan:        move.String(),
		San:        san,
	}))

	r.maybeFinalize()
	return nil
}

func legalAt(pos *chess.Position, move *chess.Move) bool {
	for _, m := range pos.ValidMoves() {
		if m.String() == move.String() {
			return true
		}
	}
	return false
}

// startGame commits the lobby rosters into team sets and opens the
// first turn.
func (r *Room) startGame() {
	g := r.game
	for pid, s := range r.sessions {
		switch s.Side {
		case teamchess.White:
			g.whiteIds[pid] = struct{}{}
		case teamchess.Black:
			g.blackIds[pid] = struct{}{}
		}
	}
	g.status = teamchess.AwaitingProposals

	r.out.Broadcast(statusEvent(g.status))
	r.out.Broadcast(event("game_started", GameStartedPayload{
		MoveNumber: g.moveNumber,
		Side:       g.side,
		Proposals:  r.proposalList(),
	}))
	r.startClock()
}

func (r *Room) proposalList() []ProposalInfo {
	g := r.game
	list := make([]ProposalInfo, 0, len(g.order))
	for _, pid := range g.order {
		p := g.proposals[pid]
		list = append(list, ProposalInfo{ID: pid, Name: p.Name, Lan: p.Lan, San: p.San})
	}
	return list
}

// maybeFinalize fires the finalization once every online member of
// the active team has proposed.
func (r *Room) maybeFinalize() {
	g := r.game
	if !rules.FinalizeReady(g.status, r.onlineTeam(g.side), g.proposals) {
		return
	}
	r.finalize()
}

// finalize asks the engine to pick among the candidates and applies
// the result.  The room lock is released while the request is in
// flight; the FinalizingTurn status keeps proposals out in the
// meantime.
func (r *Room) finalize() {
	g := r.game
	g.status = teamchess.FinalizingTurn
	r.stopClock()
	r.out.Broadcast(statusEvent(g.status))

	var candidates []string
	seen := make(map[string]struct{})
	for _, pid := range g.order {
		lan := g.proposals[pid].Lan
		if _, ok := seen[lan]; ok {
			continue
		}
		seen[lan] = struct{}{}
		candidates = append(candidates, lan)
	}

	if r.engine == nil {
		r.revertFinalize("no engine available")
		return
	}

	var (
		fen   = g.chess.Position().String()
		turn  = g.moveNumber
		mover = g.side
		eng   = r.engine
	)
	r.mu.Unlock()
	eng.Choose(fen, candidates, func(lan string, err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.applyEngineChoice(g, turn, mover, candidates, lan, err)
	})
	r.mu.Lock()
}

// revertFinalize backs out of a failed finalization: the turn stays
// open and clients are told the status so they do not hang.
func (r *Room) revertFinalize(reason string) {
	teamchess.Log.Errorf("turn finalization failed: %s", reason)
	g := r.game
	g.status = teamchess.AwaitingProposals
	r.out.Broadcast(statusEvent(g.status))
	r.startClock()
	r.maybeOpenAcceptVote(teamchess.White)
	r.maybeOpenAcceptVote(teamchess.Black)
}

// applyEngineChoice runs when the engine has answered.  ST, TURN and
// MOVER pin the request to the turn it was issued for; a reset or
// game end in the meantime makes the reply a no-op.
func (r *Room) applyEngineChoice(st *gameState, turn int, mover teamchess.Side, candidates []string, lan string, err error) {
	g := r.game
	if g != st || g.status != teamchess.FinalizingTurn || g.moveNumber != turn {
		return
	}
	if err != nil {
		r.revertFinalize(err.Error())
		return
	}

	pos := g.chess.Position()
	move, derr := chess.UCINotation{}.Decode(pos, lan)
	if derr != nil || !legalAt(pos, move) {
		r.revertFinalize("engine chose unplayable move " + lan)
		return
	}
	san := chess.AlgebraicNotation{}.Encode(pos, move)
	if merr := g.chess.Move(move); merr != nil {
		r.revertFinalize("engine chose unplayable move " + lan)
		return
	}

	// Credit the first proposer of the winning move.
	var winnerPid, winnerName string
	for _, pid := range g.order {
		if g.proposals[pid].Lan == move.String() {
			winnerPid = pid
			winnerName = g.proposals[pid].Name
			break
		}
	}

	// Low-time increment for the side that just moved.
	remaining := &g.whiteTime
	if mover == teamchess.Black {
		remaining = &g.blackTime
	}
	*remaining += rules.Increment(*remaining,
		int(r.conf.Clock.LowTime), int(r.conf.Clock.Bonus), int(r.conf.Clock.BonusAbove))

	fen := g.chess.Position().String()
	r.out.Broadcast(event("move_selected", MoveSelectedPayload{
		ID:         winnerPid,
		Name:       winnerName,
		MoveNumber: turn,
		Side:       mover,
		Lan:        move.String(),
		San:        san,
		Fen:        fen,
		Candidates: candidates,
	}))
	r.broadcastClock()
	r.out.Broadcast(positionEvent(fen))

	// Slow draws must be claimed with the rules library.
	for _, m := range g.chess.EligibleDraws() {
		switch m {
		case chess.ThreefoldRepetition, chess.FiftyMoveRule:
			g.chess.Draw(m)
		}
	}
	if g.chess.Outcome() != chess.NoOutcome {
		reason, winner := terminal(g.chess, mover)
		r.endGame(reason, winner)
		return
	}

	g.proposals = make(map[string]teamchess.Proposal)
	g.order = nil
	g.side = mover.Other()
	g.moveNumber++
	g.status = teamchess.AwaitingProposals
	r.out.Broadcast(statusEvent(g.status))
	r.out.Broadcast(event("turn_change", TurnChangePayload{
		MoveNumber: g.moveNumber,
		Side:       g.side,
	}))
	r.startClock()

	// A vote slot may have cleared while the turn was finalizing;
	// a deferred accept-draw vote can open now.
	r.maybeOpenAcceptVote(teamchess.White)
	r.maybeOpenAcceptVote(teamchess.Black)
}

// terminal maps the library's game-over verdict onto an end reason
// and winner.  Checkmate is delivered by the side that just moved.
func terminal(g *chess.Game, mover teamchess.Side) (teamchess.EndReason, *teamchess.Side) {
	switch g.Method() {
	case chess.Checkmate:
		return teamchess.Checkmate, &mover
	case chess.Stalemate:
		return teamchess.Stalemate, nil
	case chess.ThreefoldRepetition, chess.FivefoldRepetition:
		return teamchess.ThreefoldRepetition, nil
	case chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		return teamchess.FiftyMoveRule, nil
	case chess.InsufficientMaterial:
		return teamchess.InsufficientMaterial, nil
	default:
		return teamchess.Stalemate, nil
	}
}

// endGame moves the room into its terminal state.  Idempotent.
func (r *Room) endGame(reason teamchess.EndReason, winner *teamchess.Side) {
	g := r.game
	if g.status == teamchess.Over {
		return
	}

	r.stopClock()
	r.clearTeamVotes()

	if r.engine != nil {
		r.engine.Quit()
		r.engine = nil
	}

	g.status = teamchess.Over
	g.endReason = reason
	g.endWinner = winner
	if g.drawOffer != nil {
		g.drawOffer = nil
		r.out.Broadcast(drawOfferEvent(nil))
	}

	// Record the result on the game so the PGN carries it.
	if g.chess.Outcome() == chess.NoOutcome {
		switch {
		case winner != nil:
			g.chess.Resign(color(winner.Other()))
		case reason == teamchess.DrawAgreement:
			g.chess.Draw(chess.DrawOffer)
		}
	}
	pgn := strings.TrimSpace(g.chess.String())

	r.out.Broadcast(statusEvent(g.status))
	r.out.Broadcast(gameOverEvent(reason, winner, pgn))
}

func color(s teamchess.Side) chess.Color {
	if s == teamchess.White {
		return chess.White
	}
	return chess.Black
}
