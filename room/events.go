// Outbound event payloads
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
	"teamchess"
)

type SessionPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

type PlayersPayload struct {
	Spectators   []PlayerInfo `json:"spectators"`
	WhitePlayers []PlayerInfo `json:"whitePlayers"`
	BlackPlayers []PlayerInfo `json:"blackPlayers"`
}

type StatusPayload struct {
	Status teamchess.Status `json:"status"`
}

type ProposalInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Lan  string `json:"lan"`
	San  string `json:"san"`
}

type GameStartedPayload struct {
	MoveNumber int            `json:"moveNumber"`
	Side       teamchess.Side `json:"side"`
	Proposals  []ProposalInfo `json:"proposals"`
}

type MoveSubmittedPayload struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	MoveNumber int            `json:"moveNumber"`
	Side       teamchess.Side `json:"side"`
	Lan        string         `json:"lan"`
	San        string         `json:"san"`
}

type MoveSelectedPayload struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	MoveNumber int            `json:"moveNumber"`
	Side       teamchess.Side `json:"side"`
	Lan        string         `json:"lan"`
	San        string         `json:"san"`
	Fen        string         `json:"fen"`
	Candidates []string       `json:"candidates"`
}

type TurnChangePayload struct {
	MoveNumber int            `json:"moveNumber"`
	Side       teamchess.Side `json:"side"`
}

type PositionPayload struct {
	Fen string `json:"fen"`
}

type ClockPayload struct {
	WhiteTime int `json:"whiteTime"`
	BlackTime int `json:"blackTime"`
}

type DrawOfferPayload struct {
	Side *teamchess.Side `json:"side"`
}

type TeamVotePayload struct {
	IsActive      bool                   `json:"isActive"`
	Type          teamchess.TeamVoteKind `json:"type,omitempty"`
	InitiatorName string                 `json:"initiatorName,omitempty"`
	YesVotes      []string               `json:"yesVotes,omitempty"`
	RequiredVotes int                    `json:"requiredVotes,omitempty"`
	EndTime       int64                  `json:"endTime,omitempty"`
}

type KickVotePayload struct {
	IsActive      bool   `json:"isActive"`
	TargetID      string `json:"targetId,omitempty"`
	TargetName    string `json:"targetName,omitempty"`
	InitiatorName string `json:"initiatorName,omitempty"`
	YesCount      int    `json:"yesCount"`
	NoCount       int    `json:"noCount"`
	RequiredVotes int    `json:"requiredVotes,omitempty"`
	EndTime       int64  `json:"endTime,omitempty"`

	MyVoteEligible bool    `json:"myVoteEligible"`
	MyCurrentVote  *string `json:"myCurrentVote"`
	AmTarget       bool    `json:"amTarget"`
}

type ResetVotePayload struct {
	IsActive      bool   `json:"isActive"`
	InitiatorName string `json:"initiatorName,omitempty"`
	YesCount      int    `json:"yesCount"`
	RequiredVotes int    `json:"requiredVotes,omitempty"`
	EndTime       int64  `json:"endTime,omitempty"`

	MyVoteEligible bool    `json:"myVoteEligible"`
	MyCurrentVote  *string `json:"myCurrentVote"`
}

type KickedPayload struct {
	Message string `json:"message"`
}

type GameOverPayload struct {
	Reason teamchess.EndReason `json:"reason"`
	Winner *teamchess.Side     `json:"winner"`
	Pgn    string              `json:"pgn"`
}

type ChatPayload struct {
	Sender   string `json:"sender"`
	SenderID string `json:"senderId"`
	Message  string `json:"message"`
	System   bool   `json:"system,omitempty"`
}

func event(name string, data interface{}) teamchess.Event {
	return teamchess.Event{Name: name, Data: data}
}

func statusEvent(s teamchess.Status) teamchess.Event {
	return event("game_status_update", StatusPayload{Status: s})
}

func clockEvent(white, black int) teamchess.Event {
	return event("clock_update", ClockPayload{WhiteTime: white, BlackTime: black})
}

func positionEvent(fen string) teamchess.Event {
	return event("position_update", PositionPayload{Fen: fen})
}

func drawOfferEvent(side *teamchess.Side) teamchess.Event {
	return event("draw_offer_update", DrawOfferPayload{Side: side})
}

func gameOverEvent(reason teamchess.EndReason, winner *teamchess.Side, pgn string) teamchess.Event {
	return event("game_over", GameOverPayload{Reason: reason, Winner: winner, Pgn: pgn})
}

func chatEvent(sender, senderID, message string, system bool) teamchess.Event {
	return event("chat_message", ChatPayload{
		Sender:   sender,
		SenderID: senderID,
		Message:  message,
		System:   system,
	})
}
