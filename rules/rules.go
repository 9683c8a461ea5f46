// Pure room rules
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

// Package rules holds the stateless decision functions of the room.
// Nothing in here touches a clock, a socket or the board; every
// function maps plain values to plain values so the managers above
// stay thin and the rules stay testable.
package rules

import (
	"teamchess"
)

// FinalizeReady reports whether the current turn can be finalized:
// the room is collecting proposals, at least one member of the active
// team is online, and every online member has proposed.  Offline
// members' earlier proposals count towards the engine choice but not
// towards this predicate.
func FinalizeReady(status teamchess.Status, activeOnline []string, proposals map[string]teamchess.Proposal) bool {
	if status != teamchess.AwaitingProposals {
		return false
	}
	if len(activeOnline) == 0 {
		return false
	}
	for _, pid := range activeOnline {
		if _, ok := proposals[pid]; !ok {
			return false
		}
	}
	return true
}

// Abandoned reports whether a running game has lost one of its teams
// entirely.  The winner is the side that still has members; if both
// teams are gone there is nobody left to win.
func Abandoned(status teamchess.Status, whiteMembers, blackMembers int) (winner *teamchess.Side, over bool) {
	if status != teamchess.AwaitingProposals && status != teamchess.FinalizingTurn {
		return nil, false
	}
	if whiteMembers > 0 && blackMembers > 0 {
		return nil, false
	}
	if whiteMembers > 0 {
		w := teamchess.White
		return &w, true
	}
	if blackMembers > 0 {
		b := teamchess.Black
		return &b, true
	}
	return nil, true
}

// Increment is the low-time bonus granted to the side that just
// moved: below (at or under the threshold) or above it.
func Increment(remaining, threshold, below, above int) int {
	if remaining <= threshold {
		return below
	}
	return above
}
