// Room test harness and session lifecycle tests
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
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamchess"
	"teamchess/conf"
)

// recorder collects everything the room emits, in place of a real
// transport.
type recorder struct {
	mu         sync.Mutex
	broadcasts []teamchess.Event
	sends      map[string][]teamchess.Event
	dropped    []string
}

func newRecorder() *recorder {
	return &recorder{sends: make(map[string][]teamchess.Event)}
}

func (rec *recorder) Broadcast(e teamchess.Event) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.broadcasts = append(rec.broadcasts, e)
}

func (rec *recorder) Send(pid string, e teamchess.Event) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.sends[pid] = append(rec.sends[pid], e)
}

func (rec *recorder) Drop(pid string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.dropped = append(rec.dropped, pid)
}

// lastBroadcast returns the most recent broadcast with the given
// name.
func (rec *recorder) lastBroadcast(name string) (teamchess.Event, bool) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := len(rec.broadcasts) - 1; i >= 0; i-- {
		if rec.broadcasts[i].Name == name {
			return rec.broadcasts[i], true
		}
	}
	return teamchess.Event{}, false
}

func (rec *recorder) countBroadcasts(name string) int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	n := 0
	for _, e := range rec.broadcasts {
		if e.Name == name {
			n++
		}
	}
	return n
}

// lastSent returns the most recent event with the given name sent to
// one player.
func (rec *recorder) lastSent(pid, name string) (teamchess.Event, bool) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	events := rec.sends[pid]
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Name == name {
			return events[i], true
		}
	}
	return teamchess.Event{}, false
}

func (rec *recorder) wasDropped(pid string) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, p := range rec.dropped {
		if p == pid {
			return true
		}
	}
	return false
}

// fakeEngine is a scripted stand-in for the analysis engine.  With no
// pick function it replies with the first candidate, like the real
// adapter's singleton shortcut.
type fakeEngine struct {
	mu    sync.Mutex
	calls [][]string
	pick  func(candidates []string) (string, error)
	quits int
}

func (f *fakeEngine) Choose(fen string, candidates []string, reply func(string, error)) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), candidates...))
	pick := f.pick
	f.mu.Unlock()

	if pick == nil {
		reply(candidates[0], nil)
		return
	}
	reply(pick(candidates))
}

func (f *fakeEngine) Quit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quits++
}

type fixture struct {
	t       *testing.T
	room    *Room
	clk     *clock.Mock
	rec     *recorder
	engines []*fakeEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{t: t, clk: clock.NewMock(), rec: newRecorder()}
	cfg := conf.Default()
	spawn := func() (teamchess.Engine, error) {
		e := &fakeEngine{}
		f.engines = append(f.engines, e)
		return e, nil
	}

	r, err := New(&cfg, f.clk, f.rec, spawn)
	require.NoError(t, err)
	f.room = r
	return f
}

// engine returns the currently active fake.
func (f *fixture) engine() *fakeEngine {
	return f.engines[len(f.engines)-1]
}

func (f *fixture) join(pid, name string, side teamchess.Side) {
	f.t.Helper()
	_, err := f.room.Connect(pid, name)
	require.NoError(f.t, err)
	require.NoError(f.t, f.room.JoinSide(pid, side))
}

func (f *fixture) play(pid, lan string) {
	f.t.Helper()
	require.NoError(f.t, f.room.SubmitProposal(pid, lan))
}

func TestConnectMintsSpectatorSession(t *testing.T) {
	f := newFixture(t)

	pid, err := f.room.Connect("", "")
	require.NoError(t, err)
	require.NotEmpty(t, pid)

	s := f.room.sessions[pid]
	require.NotNil(t, s)
	assert.Equal(t, teamchess.Spectator, s.Side)
	assert.Equal(t, "Guest", s.Name)

	ev, ok := f.rec.lastSent(pid, "session")
	require.True(t, ok)
	assert.Equal(t, pid, ev.Data.(SessionPayload).ID)
}

func TestSetName(t *testing.T) {
	f := newFixture(t)
	pid, _ := f.room.Connect("A", "Alice")

	assert.ErrorIs(t, f.room.SetName(pid, "   "), teamchess.ErrEmptyName)

	long := "0123456789012345678901234567890123456789"
	require.NoError(t, f.room.SetName(pid, long))
	assert.Len(t, []rune(f.room.sessions[pid].Name), 30)
}

func TestReconnectCancelsGrace(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("B", "Bob", teamchess.Black)
	f.play("A", "e2e4")

	f.room.Disconnect("B")
	f.clk.Add(10 * time.Second)

	_, err := f.room.Connect("B", "")
	require.NoError(t, err)
	f.clk.Add(30 * time.Second)

	s := f.room.sessions["B"]
	require.NotNil(t, s, "session must survive after reconnect")
	assert.Equal(t, "Bob", s.Name)
	_, member := f.room.game.blackIds["B"]
	assert.True(t, member)
}

func TestGraceExpiryInLobby(t *testing.T) {
	f := newFixture(t)
	f.room.Connect("A", "Alice")

	f.room.Disconnect("A")
	f.clk.Add(20 * time.Second)

	assert.Nil(t, f.room.sessions["A"])
	assert.Equal(t, teamchess.Lobby, f.room.game.status)
}

func TestAbandonmentEndsGame(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("B", "Bob", teamchess.Black)
	f.play("A", "e2e4")

	f.room.Disconnect("B")
	f.clk.Add(20 * time.Second)

	assert.Equal(t, teamchess.Over, f.room.game.status)
	ev, ok := f.rec.lastBroadcast("game_over")
	require.True(t, ok)
	payload := ev.Data.(GameOverPayload)
	assert.Equal(t, teamchess.Abandonment, payload.Reason)
	require.NotNil(t, payload.Winner)
	assert.Equal(t, teamchess.White, *payload.Winner)
}

func TestSecondConnectionPreventsGrace(t *testing.T) {
	f := newFixture(t)
	f.room.Connect("A", "Alice")
	f.room.Connect("A", "")

	f.room.Disconnect("A")
	f.clk.Add(60 * time.Second)

	require.NotNil(t, f.room.sessions["A"], "still connected through the second socket")
}

func TestConnectSnapshotCatchesUp(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("B", "Bob", teamchess.Black)
	f.play("A", "e2e4")

	_, err := f.room.Connect("Z", "Zed")
	require.NoError(t, err)

	for _, name := range []string{
		"session", "game_status_update", "clock_update",
		"game_started", "position_update",
	} {
		_, ok := f.rec.lastSent("Z", name)
		assert.True(t, ok, "missing %s in catch-up", name)
	}
}

func TestShutdownStopsEverything(t *testing.T) {
	f := newFixture(t)
	f.join("A", "Alice", teamchess.White)
	f.join("B", "Bob", teamchess.Black)
	f.play("A", "e2e4")

	f.room.Shutdown()
	assert.Equal(t, 1, f.engine().quits)

	// Time passing afterwards must not touch the game.
	status := f.room.game.status
	f.clk.Add(10 * time.Minute)
	assert.Equal(t, status, f.room.game.status)
}
