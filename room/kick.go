// Kick votes
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
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"teamchess"
	"teamchess/rules"
)

// kickVote is the process-wide majority vote to remove and blacklist
// a player.  The target is part of the snapshot total but may not
// vote.
type kickVote struct {
	target     string
	targetName string
	initiator  string
	eligible   map[string]struct{}
	yes        map[string]struct{}
	no         map[string]struct{}
	total      int
	required   int
	deadline   time.Time
	timer      *clock.Timer
}

// StartKickVote opens a kick vote against TARGET.
func (r *Room) StartKickVote(pid, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[pid] == nil {
		return teamchess.ErrUnknownSession
	}
	if r.game.kickVote != nil {
		return teamchess.ErrVoteActive
	}
	if pid == target {
		return teamchess.ErrSelfKick
	}
	ts := r.sessions[target]
	if ts == nil {
		return teamchess.ErrTargetNotFound
	}

	snapshot := r.connectedPids()
	eligible := make(map[string]struct{}, len(snapshot))
	for _, p := range snapshot {
		if p != target {
			eligible[p] = struct{}{}
		}
	}

	v := &kickVote{
		target:     target,
		targetName: ts.Name,
		initiator:  pid,
		eligible:   eligible,
		yes:        map[string]struct{}{pid: {}},
		no:         make(map[string]struct{}),
		total:      len(snapshot),
		required:   rules.KickRequired(len(snapshot)),
		deadline:   r.clk.Now().Add(r.conf.KickVoteDuration()),
	}
	v.timer = r.clk.AfterFunc(r.conf.KickVoteDuration(), func() {
		r.onKickVoteDeadline(v)
	})
	r.game.kickVote = v
	r.broadcastKickVote()

	// A majority of one passes on the spot.
	if len(v.yes) >= v.required {
		r.passKickVote(v)
	}
	return nil
}

// VoteKick casts or switches PID's vote on the active kick vote.
func (r *Room) VoteKick(pid string, approve bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[pid] == nil {
		return teamchess.ErrUnknownSession
	}
	v := r.game.kickVote
	if v == nil {
		return teamchess.ErrNoVote
	}

	outcome, yes, no := rules.KickCast(v.eligible, v.yes, v.no, v.required, pid, approve)
	switch outcome {
	case rules.Rejected:
		return teamchess.ErrNotEligible
	case rules.Continue:
		v.yes, v.no = yes, no
		r.broadcastKickVote()
	case rules.Passed:
		v.yes, v.no = yes, no
		r.passKickVote(v)
	case rules.Failed:
		v.yes, v.no = yes, no
		r.failKickVote(v)
	}
	return nil
}

func (r *Room) onKickVoteDeadline(v *kickVote) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.game.kickVote != v {
		return
	}
	r.failKickVote(v)
}

// passKickVote blacklists the target and throws them out.
func (r *Room) passKickVote(v *kickVote) {
	if v.timer != nil {
		v.timer.Stop()
	}
	r.game.kickVote = nil

	r.blacklist[v.target] = struct{}{}
	r.out.Send(v.target, event("kicked", KickedPayload{
		Message: "You have been removed from the room by vote",
	}))

	if t := r.grace[v.target]; t != nil {
		t.Stop()
		delete(r.grace, v.target)
	}
	delete(r.sessions, v.target)
	delete(r.conns, v.target)
	delete(r.game.whiteIds, v.target)
	delete(r.game.blackIds, v.target)
	r.out.Drop(v.target)

	r.broadcastPlayers()
	r.systemChat(fmt.Sprintf("%s was kicked from the room", v.targetName))
	r.broadcastKickVote()

	r.checkAbandonment()
	r.maybeFinalize()
}

func (r *Room) failKickVote(v *kickVote) {
	if v.timer != nil {
		v.timer.Stop()
	}
	r.game.kickVote = nil
	r.systemChat(fmt.Sprintf("Kick vote against %s failed (%d yes, %d no)",
		v.targetName, len(v.yes), len(v.no)))
	r.broadcastKickVote()
}

func (v *kickVote) payloadFor(pid string, initiatorName string) KickVotePayload {
	payload := KickVotePayload{
		IsActive:      true,
		TargetID:      v.target,
		TargetName:    v.targetName,
		InitiatorName: initiatorName,
		YesCount:      len(v.yes),
		NoCount:       len(v.no),
		RequiredVotes: v.required,
		EndTime:       v.deadline.UnixMilli(),
		AmTarget:      pid == v.target,
	}
	if _, ok := v.eligible[pid]; ok {
		payload.MyVoteEligible = true
	}
	if _, ok := v.yes[pid]; ok {
		payload.MyCurrentVote = strptr("yes")
	} else if _, ok := v.no[pid]; ok {
		payload.MyCurrentVote = strptr("no")
	}
	return payload
}

// broadcastKickVote sends each connected viewer their personalised
// view of the vote.
func (r *Room) broadcastKickVote() {
	v := r.game.kickVote
	if v == nil {
		r.out.Broadcast(event("kick_vote_update", KickVotePayload{MyCurrentVote: nil}))
		return
	}
	for _, pid := range r.connectedPids() {
		r.out.Send(pid, event("kick_vote_update", v.payloadFor(pid, r.sessionName(v.initiator))))
	}
}

func strptr(s string) *string {
	return &s
}
