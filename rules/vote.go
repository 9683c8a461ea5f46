// Pure vote tallying
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

package rules

import (
	"teamchess"
)

// Outcome of casting a single vote.
type Outcome uint8

const (
	// Rejected: the voter is not in the eligibility snapshot.
	Rejected Outcome = iota
	// Continue: the vote stays open.
	Continue
	// Passed: the threshold has been reached.
	Passed
	// Failed: passing has become impossible.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "Rejected"
	case Continue:
		return "Continue"
	case Passed:
		return "Passed"
	case Failed:
		return "Failed"
	default:
		panic("illegal outcome")
	}
}

func clone(set map[string]struct{}) map[string]struct{} {
	c := make(map[string]struct{}, len(set))
	for k := range set {
		c[k] = struct{}{}
	}
	return c
}

// TeamVotePrereq decides whether a team vote may start, and whether
// the action should skip the vote and execute directly.  A solo team
// does not need to vote against itself, but a system-triggered vote
// (the accept-draw vote opened for the receiving side) never takes
// the shortcut.
func TeamVotePrereq(kind teamchess.TeamVoteKind, side teamchess.Side, drawOffer *teamchess.Side, voteActive bool, teammates int, system bool) (autoExec bool, err error) {
	if voteActive {
		return false, teamchess.ErrVoteActive
	}
	switch kind {
	case teamchess.AcceptDraw:
		if drawOffer == nil || *drawOffer != side.Other() {
			return false, teamchess.ErrNoDrawOffer
		}
	case teamchess.OfferDraw:
		if drawOffer != nil {
			return false, teamchess.ErrDrawOfferPending
		}
	}
	return teammates <= 1 && !system, nil
}

// UnanimousCast applies one vote to a unanimity vote (team and reset
// votes).  The input sets are not modified.  A "no" fails the vote
// immediately; a duplicate "yes" is a silent no-op.
func UnanimousCast(eligible, yes map[string]struct{}, voter string, approve bool) (Outcome, map[string]struct{}) {
	if _, ok := eligible[voter]; !ok {
		return Rejected, yes
	}
	if !approve {
		return Failed, yes
	}
	if _, ok := yes[voter]; ok {
		return Continue, yes
	}
	next := clone(yes)
	next[voter] = struct{}{}
	if len(next) >= len(eligible) {
		return Passed, next
	}
	return Continue, next
}

// KickRequired is the strict majority over the connected-user
// snapshot taken at vote start, target included.
func KickRequired(total int) int {
	return total/2 + 1
}

// KickCast applies one vote to a kick vote.  Voters may switch sides;
// duplicates are silent no-ops.  The vote passes as soon as the yes
// count reaches the threshold and fails as soon as passing has become
// impossible.  The input sets are not modified.
func KickCast(eligible, yes, no map[string]struct{}, required int, voter string, approve bool) (Outcome, map[string]struct{}, map[string]struct{}) {
	if _, ok := eligible[voter]; !ok {
		return Rejected, yes, no
	}

	_, votedYes := yes[voter]
	_, votedNo := no[voter]
	if (approve && votedYes) || (!approve && votedNo) {
		return Continue, yes, no
	}

	yes, no = clone(yes), clone(no)
	if approve {
		delete(no, voter)
		yes[voter] = struct{}{}
	} else {
		delete(yes, voter)
		no[voter] = struct{}{}
	}

	if len(yes) >= required {
		return Passed, yes, no
	}
	if len(eligible)-len(no) < required {
		return Failed, yes, no
	}
	return Continue, yes, no
}
