// Reset votes
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
	"teamchess/rules"
)

// resetVote is the process-wide unanimous vote to restart the game.
type resetVote struct {
	initiator string
	eligible  map[string]struct{}
	yes       map[string]struct{}
	deadline  time.Time
	timer     *clock.Timer
}

// StartResetVote opens a reset vote, or resets directly when PID is
// the only connected user.
func (r *Room) StartResetVote(pid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[pid] == nil {
		return teamchess.ErrUnknownSession
	}
	if r.game.resetVote != nil {
		return teamchess.ErrVoteActive
	}

	eligible := make(map[string]struct{})
	for _, p := range r.connectedPids() {
		eligible[p] = struct{}{}
	}
	yes := map[string]struct{}{pid: {}}
	if len(yes) >= len(eligible) {
		// A solo user does not need a timer to agree with
		// themselves.
		r.doReset()
		return nil
	}

	v := &resetVote{
		initiator: pid,
		eligible:  eligible,
		yes:       yes,
		deadline:  r.clk.Now().Add(r.conf.ResetVoteDuration()),
	}
	v.timer = r.clk.AfterFunc(r.conf.ResetVoteDuration(), func() {
		r.onResetVoteDeadline(v)
	})
	r.game.resetVote = v
	r.broadcastResetVote()
	return nil
}

// VoteReset casts PID's vote on the active reset vote.
func (r *Room) VoteReset(pid string, approve bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[pid] == nil {
		return teamchess.ErrUnknownSession
	}
	v := r.game.resetVote
	if v == nil {
		return teamchess.ErrNoVote
	}

	outcome, yes := rules.UnanimousCast(v.eligible, v.yes, pid, approve)
	switch outcome {
	case rules.Rejected:
		return teamchess.ErrNotEligible
	case rules.Continue:
		v.yes = yes
		r.broadcastResetVote()
	case rules.Passed:
		if v.timer != nil {
			v.timer.Stop()
		}
		r.game.resetVote = nil
		// doReset broadcasts the cleared vote states itself.
		r.doReset()
	case rules.Failed:
		r.failResetVote(v)
	}
	return nil
}

func (r *Room) onResetVoteDeadline(v *resetVote) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.game.resetVote != v {
		return
	}
	r.failResetVote(v)
}

func (r *Room) failResetVote(v *resetVote) {
	if v.timer != nil {
		v.timer.Stop()
	}
	r.game.resetVote = nil
	r.systemChat("Reset vote failed")
	r.broadcastResetVote()
}

func (v *resetVote) payloadFor(pid string, initiatorName string) ResetVotePayload {
	payload := ResetVotePayload{
		IsActive:      true,
		InitiatorName: initiatorName,
		YesCount:      len(v.yes),
		RequiredVotes: len(v.eligible),
		EndTime:       v.deadline.UnixMilli(),
	}
	if _, ok := v.eligible[pid]; ok {
		payload.MyVoteEligible = true
	}
	if _, ok := v.yes[pid]; ok {
		payload.MyCurrentVote = strptr("yes")
	}
	return payload
}

// broadcastResetVote sends each connected viewer their personalised
// view of the vote.
func (r *Room) broadcastResetVote() {
	v := r.game.resetVote
	if v == nil {
		r.out.Broadcast(event("reset_vote_update", ResetVotePayload{MyCurrentVote: nil}))
		return
	}
	for _, pid := range r.connectedPids() {
		r.out.Send(pid, event("reset_vote_update", v.payloadFor(pid, r.sessionName(v.initiator))))
	}
}
