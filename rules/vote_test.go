// Pure vote tallying tests
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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamchess"
)

func set(pids ...string) map[string]struct{} {
	s := make(map[string]struct{})
	for _, pid := range pids {
		s[pid] = struct{}{}
	}
	return s
}

func TestKickRequired(t *testing.T) {
	for _, test := range []struct {
		total    int
		required int
	}{
		{total: 2, required: 2},
		{total: 3, required: 2},
		{total: 4, required: 3},
		{total: 5, required: 3},
	} {
		assert.Equal(t, test.required, KickRequired(test.total),
			"total %d", test.total)
	}
}

func TestUnanimousCast(t *testing.T) {
	eligible := set("a", "b", "c")

	outcome, yes := UnanimousCast(eligible, set("a"), "stranger", true)
	assert.Equal(t, Rejected, outcome)
	assert.Len(t, yes, 1)

	outcome, _ = UnanimousCast(eligible, set("a"), "b", false)
	assert.Equal(t, Failed, outcome)

	outcome, yes = UnanimousCast(eligible, set("a"), "b", true)
	assert.Equal(t, Continue, outcome)
	assert.Len(t, yes, 2)

	outcome, yes = UnanimousCast(eligible, yes, "c", true)
	assert.Equal(t, Passed, outcome)
	assert.Len(t, yes, 3)

	// A duplicate yes is a silent no-op.
	outcome, yes = UnanimousCast(eligible, set("a"), "a", true)
	assert.Equal(t, Continue, outcome)
	assert.Len(t, yes, 1)
}

func TestUnanimousCastDoesNotMutate(t *testing.T) {
	eligible := set("a", "b")
	yes := set("a")
	UnanimousCast(eligible, yes, "b", true)
	assert.Len(t, yes, 1)
}

func TestKickCast(t *testing.T) {
	// Five connected users, one of them the target: four eligible
	// voters, three votes required.
	eligible := set("p1", "p2", "p3", "p4")
	required := KickRequired(5)
	require.Equal(t, 3, required)

	outcome, yes, no := KickCast(eligible, set("p1"), set(), required, "p5", true)
	assert.Equal(t, Rejected, outcome, "the target may not vote")

	outcome, yes, no = KickCast(eligible, set("p1"), set(), required, "p2", true)
	assert.Equal(t, Continue, outcome)

	outcome, yes, no = KickCast(eligible, yes, no, required, "p3", true)
	assert.Equal(t, Passed, outcome)
	assert.Len(t, yes, 3)

	// Early fail: two no votes leave only two potential yes
	// voters, below the threshold.
	outcome, yes, no = KickCast(eligible, set("p1"), set(), required, "p2", false)
	assert.Equal(t, Continue, outcome)
	outcome, yes, no = KickCast(eligible, yes, no, required, "p3", false)
	assert.Equal(t, Failed, outcome)
	assert.Len(t, no, 2)
}

func TestKickCastSwitching(t *testing.T) {
	eligible := set("p1", "p2", "p3", "p4")

	outcome, yes, no := KickCast(eligible, set("p1"), set(), 3, "p1", false)
	assert.Equal(t, Continue, outcome)
	assert.Empty(t, yes)
	assert.Len(t, no, 1)

	outcome, yes, no = KickCast(eligible, yes, no, 3, "p1", false)
	assert.Equal(t, Continue, outcome, "duplicate vote is a no-op")
	assert.Len(t, no, 1)

	outcome, yes, no = KickCast(eligible, yes, no, 3, "p1", true)
	assert.Equal(t, Continue, outcome)
	assert.Len(t, yes, 1)
	assert.Empty(t, no)
}

func TestTeamVotePrereq(t *testing.T) {
	white := teamchess.White
	black := teamchess.Black

	_, err := TeamVotePrereq(teamchess.Resign, white, nil, true, 3, false)
	assert.ErrorIs(t, err, teamchess.ErrVoteActive)

	_, err = TeamVotePrereq(teamchess.AcceptDraw, black, nil, false, 3, false)
	assert.ErrorIs(t, err, teamchess.ErrNoDrawOffer)

	// The offer must come from the other side.
	_, err = TeamVotePrereq(teamchess.AcceptDraw, black, &black, false, 3, false)
	assert.ErrorIs(t, err, teamchess.ErrNoDrawOffer)

	auto, err := TeamVotePrereq(teamchess.AcceptDraw, black, &white, false, 1, false)
	assert.NoError(t, err)
	assert.True(t, auto)

	_, err = TeamVotePrereq(teamchess.OfferDraw, white, &white, false, 3, false)
	assert.ErrorIs(t, err, teamchess.ErrDrawOfferPending)

	auto, err = TeamVotePrereq(teamchess.Resign, white, nil, false, 1, false)
	assert.NoError(t, err)
	assert.True(t, auto)

	auto, err = TeamVotePrereq(teamchess.Resign, white, nil, false, 2, false)
	assert.NoError(t, err)
	assert.False(t, auto)

	// System-triggered votes never take the solo shortcut.
	auto, err = TeamVotePrereq(teamchess.AcceptDraw, black, &white, false, 1, true)
	assert.NoError(t, err)
	assert.False(t, auto)
}
