// Inbound command dispatch
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
	"encoding/json"

	"teamchess"
)

// Dispatch interprets one inbound event from PID.  The returned error
// is the acknowledgement for the sending connection; it is never
// broadcast.
func (r *Room) Dispatch(pid, name string, data json.RawMessage) error {
	teamchess.Log.Debugf("%s < %s %s", pid, name, data)

	switch name {
	case "set_name":
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return teamchess.ErrIllegalFormat
		}
		return r.SetName(pid, s)
	case "join_side":
		var p struct {
			Side teamchess.Side `json:"side"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return teamchess.ErrIllegalFormat
		}
		return r.JoinSide(pid, p.Side)
	case "play_move":
		var lan string
		if err := json.Unmarshal(data, &lan); err != nil {
			return teamchess.ErrIllegalFormat
		}
		return r.SubmitProposal(pid, lan)
	case "chat_message":
		var msg string
		if err := json.Unmarshal(data, &msg); err != nil {
			return teamchess.ErrIllegalFormat
		}
		return r.Chat(pid, msg)
	case "start_team_vote":
		var p struct {
			Type teamchess.TeamVoteKind `json:"type"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return teamchess.ErrIllegalFormat
		}
		switch p.Type {
		case teamchess.Resign, teamchess.OfferDraw, teamchess.AcceptDraw:
		default:
			return teamchess.ErrIllegalFormat
		}
		return r.StartTeamVote(pid, p.Type)
	case "vote_team":
		approve, err := parseChoice(data)
		if err != nil {
			return err
		}
		return r.VoteTeam(pid, approve)
	case "start_kick_vote":
		var target string
		if err := json.Unmarshal(data, &target); err != nil {
			return teamchess.ErrIllegalFormat
		}
		return r.StartKickVote(pid, target)
	case "vote_kick":
		approve, err := parseChoice(data)
		if err != nil {
			return err
		}
		return r.VoteKick(pid, approve)
	case "start_reset_vote":
		return r.StartResetVote(pid)
	case "vote_reset":
		approve, err := parseChoice(data)
		if err != nil {
			return err
		}
		return r.VoteReset(pid, approve)
	default:
		return teamchess.ErrUnknownCommand
	}
}

func parseChoice(data json.RawMessage) (bool, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return false, teamchess.ErrIllegalFormat
	}
	switch s {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, teamchess.ErrIllegalFormat
	}
}
