// Team votes
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
	"time"

	"github.com/benbjohnson/clock"

	"teamchess"
	"teamchess/rules"
)

// teamVote is a resign, offer-draw or accept-draw vote scoped to one
// team.  Eligibility is the snapshot of connected teammates at start;
// unanimity among them is required.
type teamVote struct {
	kind      teamchess.TeamVoteKind
	side      teamchess.Side
	initiator string
	system    bool
	eligible  map[string]struct{}
	yes       map[string]struct{}
	deadline  time.Time
	timer     *clock.Timer
}

// memberSide finds which team PID belongs to, by the committed team
// sets.
func (r *Room) memberSide(pid string) (teamchess.Side, bool) {
	if _, ok := r.game.whiteIds[pid]; ok {
		return teamchess.White, true
	}
	if _, ok := r.game.blackIds[pid]; ok {
		return teamchess.Black, true
	}
	return teamchess.Spectator, false
}

// StartTeamVote opens a vote for PID's team, or executes the action
// directly when PID is the only connected teammate.
func (r *Room) StartTeamVote(pid string, kind teamchess.TeamVoteKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[pid]
	if s == nil {
		return teamchess.ErrUnknownSession
	}
	if r.game.status != teamchess.AwaitingProposals {
		return teamchess.ErrNotPlaying
	}
	side, ok := r.memberSide(pid)
	if !ok {
		return teamchess.ErrNotOnTeam
	}

	autoExec, err := rules.TeamVotePrereq(kind, side, r.game.drawOffer,
		r.game.teamVote(side) != nil, len(r.onlineTeam(side)), false)
	if err != nil {
		return err
	}
	if autoExec {
		r.execTeamAction(kind, side)
		return nil
	}
	r.openTeamVote(side, kind, pid, false)
	return nil
}

// openTeamVote snapshots the connected teammates and starts the
// deadline timer.  The initiator counts as yes unless the vote was
// system-triggered.
func (r *Room) openTeamVote(side teamchess.Side, kind teamchess.TeamVoteKind, initiator string, system bool) {
	eligible := make(map[string]struct{})
	for _, pid := range r.onlineTeam(side) {
		eligible[pid] = struct{}{}
	}
	if len(eligible) == 0 {
		teamchess.Log.Debugf("no connected %s members, not opening %s vote", side, kind)
		return
	}

	yes := make(map[string]struct{})
	if !system && initiator != "" {
		yes[initiator] = struct{}{}
	}

	v := &teamVote{
		kind:      kind,
		side:      side,
		initiator: initiator,
		system:    system,
		eligible:  eligible,
		yes:       yes,
		deadline:  r.clk.Now().Add(r.conf.TeamVoteDuration()),
	}
	v.timer = r.clk.AfterFunc(r.conf.TeamVoteDuration(), func() {
		r.onTeamVoteDeadline(side, v)
	})
	r.game.setTeamVote(side, v)
	r.broadcastTeamVote(side)
}

// VoteTeam casts PID's vote on their team's active vote.
func (r *Room) VoteTeam(pid string, approve bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[pid] == nil {
		return teamchess.ErrUnknownSession
	}
	side, ok := r.memberSide(pid)
	if !ok {
		return teamchess.ErrNotOnTeam
	}
	v := r.game.teamVote(side)
	if v == nil {
		return teamchess.ErrNoVote
	}

	outcome, yes := rules.UnanimousCast(v.eligible, v.yes, pid, approve)
	switch outcome {
	case rules.Rejected:
		return teamchess.ErrNotEligible
	case rules.Continue:
		v.yes = yes
		r.broadcastTeamVote(side)
	case rules.Passed:
		v.yes = yes
		r.clearTeamVote(v)
		r.execTeamAction(v.kind, v.side)
	case rules.Failed:
		r.failTeamVote(v)
	}
	return nil
}

func (r *Room) onTeamVoteDeadline(side teamchess.Side, v *teamVote) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.game.teamVote(side) != v {
		return
	}
	r.failTeamVote(v)
}

// execTeamAction performs the voted (or solo) action.
func (r *Room) execTeamAction(kind teamchess.TeamVoteKind, side teamchess.Side) {
	switch kind {
	case teamchess.Resign:
		r.systemChat(title(side) + " team resigns")
		winner := side.Other()
		r.endGame(teamchess.Resignation, &winner)
	case teamchess.OfferDraw:
		r.setDrawOffer(side)
	case teamchess.AcceptDraw:
		r.systemChat("Draw agreed")
		r.endGame(teamchess.DrawAgreement, nil)
	}
}

// setDrawOffer records the offer and opens the system-triggered
// accept-draw vote on the receiving side with an empty yes set.
func (r *Room) setDrawOffer(side teamchess.Side) {
	r.game.drawOffer = &side
	r.out.Broadcast(drawOfferEvent(r.game.drawOffer))
	r.systemChat(title(side) + " team offers a draw")

	r.maybeOpenAcceptVote(side.Other())
}

// maybeOpenAcceptVote opens the system accept-draw vote for SIDE when
// an offer from the other side is pending and SIDE's vote slot is
// free.  Called when the offer is made and again whenever SIDE's vote
// slot clears, so an offer arriving while SIDE is deciding something
// else is picked up once that vote is over instead of dangling with
// no way to accept it.
func (r *Room) maybeOpenAcceptVote(side teamchess.Side) {
	g := r.game
	if g.status != teamchess.AwaitingProposals {
		return
	}
	if g.drawOffer == nil || *g.drawOffer != side.Other() {
		return
	}
	if v := g.teamVote(side); v != nil {
		if v.kind != teamchess.AcceptDraw {
			teamchess.Log.Debugf("accept-draw vote for %s deferred until their %s vote clears",
				side, v.kind)
		}
		return
	}
	r.openTeamVote(side, teamchess.AcceptDraw, "", true)
}

// clearDrawOffer withdraws the pending offer.
func (r *Room) clearDrawOffer() {
	if r.game.drawOffer == nil {
		return
	}
	r.game.drawOffer = nil
	r.out.Broadcast(drawOfferEvent(nil))
	r.systemChat("The draw offer was declined")
}

// failTeamVote ends a vote without its action.  A failed accept-draw
// vote also withdraws the offer it was deciding on; any other failed
// vote frees the slot for a deferred accept-draw vote.
func (r *Room) failTeamVote(v *teamVote) {
	r.clearTeamVote(v)
	r.systemChat("Vote failed")
	if v.kind == teamchess.AcceptDraw {
		r.clearDrawOffer()
		return
	}
	r.maybeOpenAcceptVote(v.side)
}

func (r *Room) clearTeamVote(v *teamVote) {
	if v.timer != nil {
		v.timer.Stop()
	}
	r.game.setTeamVote(v.side, nil)
	r.broadcastTeamVote(v.side)
}

// clearTeamVotes drops both team votes, on game over.
func (r *Room) clearTeamVotes() {
	for _, side := range []teamchess.Side{teamchess.White, teamchess.Black} {
		if v := r.game.teamVote(side); v != nil {
			if v.timer != nil {
				v.timer.Stop()
			}
			r.game.setTeamVote(side, nil)
			r.broadcastTeamVote(side)
		}
	}
}

func (r *Room) teamVotePayload(v *teamVote) TeamVotePayload {
	names := make([]string, 0, len(v.yes))
	for pid := range v.yes {
		names = append(names, r.sessionName(pid))
	}
	sort.Strings(names)
	return TeamVotePayload{
		IsActive:      true,
		Type:          v.kind,
		InitiatorName: r.sessionName(v.initiator),
		YesVotes:      names,
		RequiredVotes: len(v.eligible),
		EndTime:       v.deadline.UnixMilli(),
	}
}

// broadcastTeamVote sends the vote state to the members of one team.
func (r *Room) broadcastTeamVote(side teamchess.Side) {
	payload := TeamVotePayload{}
	if v := r.game.teamVote(side); v != nil {
		payload = r.teamVotePayload(v)
	}
	ev := event("team_vote_update", payload)
	for pid := range r.game.teamIds(side) {
		r.out.Send(pid, ev)
	}
}

func title(side teamchess.Side) string {
	switch side {
	case teamchess.White:
		return "White"
	case teamchess.Black:
		return "Black"
	default:
		return "Spectator"
	}
}
