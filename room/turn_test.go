// Turn coordinator tests
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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamchess"
)

func TestLobbyStartGuards(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("B", "Bob", teamchess.Black)
	f.room.Connect("S", "Sam")

	assert.ErrorIs(t, f.room.SubmitProposal("B", "e7e5"), teamchess.ErrOnlyWhiteStarts)
	assert.ErrorIs(t, f.room.SubmitProposal("S", "e2e4"), teamchess.ErrOnlyWhiteStarts)
	assert.Equal(t, teamchess.Lobby, f.room.game.status)
}

func TestLobbyNeedsBothTeams(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)

	assert.ErrorIs(t, f.room.SubmitProposal("A", "e2e4"), teamchess.ErrBothTeamsRequired)
	assert.Equal(t, teamchess.Lobby, f.room.game.status)
}

func TestFirstProposalStartsGame(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("A2", "Anna", teamchess.White)
	f.join("B", "Bob", teamchess.Black)

	f.play("A", "e2e4")

	g := f.room.game
	assert.Equal(t, teamchess.AwaitingProposals, g.status)
	assert.Contains(t, g.whiteIds, "A")
	assert.Contains(t, g.whiteIds, "A2")
	assert.Contains(t, g.blackIds, "B")
	assert.NotNil(t, g.ticker, "clock must run")

	_, ok := f.rec.lastBroadcast("game_started")
	assert.True(t, ok)
	ev, ok := f.rec.lastBroadcast("move_submitted")
	require.True(t, ok)
	payload := ev.Data.(MoveSubmittedPayload)
	assert.Equal(t, "A", payload.ID)
	assert.Equal(t, "e2e4", payload.Lan)
	assert.Equal(t, "e4", payload.San)
}

func TestProposalValidation(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("A2", "Anna", teamchess.White)
	f.join("B", "Bob", teamchess.Black)

	f.play("A", "e2e4")
	assert.ErrorIs(t, f.room.SubmitProposal("A", "d2d4"), teamchess.ErrAlreadyMoved)
	assert.ErrorIs(t, f.room.SubmitProposal("B", "e7e5"), teamchess.ErrNotYourTurn)
	assert.ErrorIs(t, f.room.SubmitProposal("A2", "not-a-move"), teamchess.ErrIllegalFormat)
	assert.ErrorIs(t, f.room.SubmitProposal("A2", "e2e5"), teamchess.ErrIllegalMove)
	assert.Len(t, f.room.game.proposals, 1)
}

func TestFoolsMateFinalization(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("B", "Bob", teamchess.Black)

	f.play("A", "f2f3")
	f.play("B", "e7e5")
	f.play("A", "g2g4")
	f.play("B", "d8h4")

	assert.Equal(t, teamchess.Over, f.room.game.status)
	ev, ok := f.rec.lastBroadcast("game_over")
	require.True(t, ok)
	payload := ev.Data.(GameOverPayload)
	assert.Equal(t, teamchess.Checkmate, payload.Reason)
	require.NotNil(t, payload.Winner)
	assert.Equal(t, teamchess.Black, *payload.Winner)
	assert.NotEmpty(t, payload.Pgn)

	assert.Equal(t, 1, f.engine().quits, "engine is quit on game over")
	assert.Nil(t, f.room.game.ticker)
}

func TestFinalizationWaitsForOnlineTeammates(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("A2", "Anna", teamchess.White)
	f.join("B", "Bob", teamchess.Black)

	f.play("A", "e2e4")
	assert.Empty(t, f.engine().calls, "A2 has not proposed yet")

	f.play("A2", "d2d4")
	require.Len(t, f.engine().calls, 1)
	assert.Equal(t, []string{"e2e4", "d2d4"}, f.engine().calls[0])
	assert.Equal(t, teamchess.Black, f.room.game.side)
}

func TestFinalizationAfterGraceDrop(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("A2", "Anna", teamchess.White)
	f.join("B", "Bob", teamchess.Black)

	f.play("A", "e2e4")
	f.room.Disconnect("A2")
	assert.Empty(t, f.engine().calls)

	f.clk.Add(20 * time.Second)

	require.Len(t, f.engine().calls, 1)
	assert.Equal(t, []string{"e2e4"}, f.engine().calls[0])
	assert.Equal(t, teamchess.Black, f.room.game.side)
	assert.Nil(t, f.room.sessions["A2"])
}

func TestOfflineProposalStillCounts(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("A2", "Anna", teamchess.White)
	f.join("B", "Bob", teamchess.Black)

	f.play("A2", "d2d4")
	f.room.Disconnect("A2")

	// A2 is offline but not yet dropped; their proposal rides
	// along when A completes the online set.
	f.play("A", "e2e4")
	require.Len(t, f.engine().calls, 1)
	assert.Equal(t, []string{"d2d4", "e2e4"}, f.engine().calls[0])

	ev, ok := f.rec.lastBroadcast("move_selected")
	require.True(t, ok)
	payload := ev.Data.(MoveSelectedPayload)
	assert.Equal(t, "A2", payload.ID, "first matching proposer is credited")
	assert.Equal(t, "Anna", payload.Name)
	assert.Equal(t, []string{"d2d4", "e2e4"}, payload.Candidates)
}

func TestTimeoutLoss(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("B", "Bob", teamchess.Black)

	f.play("A", "e2e4")
	require.Equal(t, teamchess.Black, f.room.game.side)

	f.clk.Add(600 * time.Second)

	assert.Equal(t, teamchess.Over, f.room.game.status)
	assert.Equal(t, 0, f.room.game.blackTime)
	ev, ok := f.rec.lastBroadcast("game_over")
	require.True(t, ok)
	payload := ev.Data.(GameOverPayload)
	assert.Equal(t, teamchess.Timeout, payload.Reason)
	require.NotNil(t, payload.Winner)
	assert.Equal(t, teamchess.White, *payload.Winner)
}

func TestLowTimeIncrement(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("B", "Bob", teamchess.Black)

	f.room.mu.Lock()
	f.room.game.whiteTime = 60
	f.room.game.blackTime = 61
	f.room.mu.Unlock()

	f.play("A", "e2e4")
	assert.Equal(t, 70, f.room.game.whiteTime, "60s is at the threshold: +10")

	f.play("B", "e7e5")
	assert.Equal(t, 61, f.room.game.blackTime, "61s is above the threshold: +0")
}

func TestEngineErrorRevertsTurn(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("B", "Bob", teamchess.Black)
	f.engine().pick = func([]string) (string, error) {
		return "", errors.New("engine crashed")
	}

	f.play("A", "e2e4")

	g := f.room.game
	assert.Equal(t, teamchess.AwaitingProposals, g.status)
	assert.Len(t, g.proposals, 1, "proposals are kept")
	assert.NotNil(t, g.ticker, "clock restarts")
	assert.Equal(t, 1, g.moveNumber, "the turn did not advance")

	ev, ok := f.rec.lastBroadcast("game_status_update")
	require.True(t, ok)
	assert.Equal(t, teamchess.AwaitingProposals, ev.Data.(StatusPayload).Status)
}

func TestEngineIllegalChoiceReverts(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("B", "Bob", teamchess.Black)
	f.engine().pick = func([]string) (string, error) {
		return "a1a5", nil
	}

	f.play("A", "e2e4")

	g := f.room.game
	assert.Equal(t, teamchess.AwaitingProposals, g.status)
	assert.Equal(t, 1, g.moveNumber)
	assert.Equal(t, 0, f.rec.countBroadcasts("move_selected"))
}

func TestEndGameIdempotent(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("B", "Bob", teamchess.Black)
	f.play("A", "e2e4")

	white := teamchess.White
	f.room.mu.Lock()
	f.room.endGame(teamchess.Timeout, &white)
	f.room.endGame(teamchess.Resignation, nil)
	f.room.mu.Unlock()

	g := f.room.game
	assert.Equal(t, teamchess.Over, g.status)
	assert.Equal(t, teamchess.Timeout, g.endReason)
	require.NotNil(t, g.endWinner)
	assert.Equal(t, teamchess.White, *g.endWinner)
	assert.Equal(t, 1, f.rec.countBroadcasts("game_over"))
}
