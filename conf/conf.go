// Configuration Specification and Management
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

package conf

import (
	"time"
)

type ClockConf struct {
	// Initial time per side, in seconds
	Initial uint `toml:"initial"`
	// Threshold at or below which the low-time bonus applies
	LowTime uint `toml:"lowtime"`
	// Bonus granted after a move at or below the threshold
	Bonus uint `toml:"bonus"`
	// Bonus granted above the threshold
	BonusAbove uint `toml:"bonus-above"`
}

type VoteConf struct {
	// Deadlines, in seconds
	Team  uint `toml:"team"`
	Kick  uint `toml:"kick"`
	Reset uint `toml:"reset"`
}

type SessionConf struct {
	// Reconnect grace after a disconnect, in seconds
	Grace uint `toml:"grace"`
}

type EngineConf struct {
	// Command and arguments to spawn the analysis engine
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	// Search depth passed to "go depth"
	Depth uint `toml:"depth"`
}

type WebConf struct {
	Host string `toml:"host"`
	Port uint   `toml:"port"`
}

type Conf struct {
	Debug   bool        `toml:"debug"`
	Clock   ClockConf   `toml:"clock"`
	Votes   VoteConf    `toml:"votes"`
	Session SessionConf `toml:"session"`
	Engine  EngineConf  `toml:"engine"`
	Web     WebConf     `toml:"web"`
}

var defaultConfig = Conf{
	Debug: false,
	Clock: ClockConf{
		Initial:    600,
		LowTime:    60,
		Bonus:      10,
		BonusAbove: 0,
	},
	Votes: VoteConf{
		Team:  30,
		Kick:  60,
		Reset: 60,
	},
	Session: SessionConf{
		Grace: 20,
	},
	Engine: EngineConf{
		Command: "stockfish",
		Depth:   15,
	},
	Web: WebConf{
		Host: "0.0.0.0",
		Port: 8080,
	},
}

// Default returns a copy of the default configuration.
func Default() Conf {
	return defaultConfig
}

func (c *Conf) TeamVoteDuration() time.Duration {
	return time.Duration(c.Votes.Team) * time.Second
}

func (c *Conf) KickVoteDuration() time.Duration {
	return time.Duration(c.Votes.Kick) * time.Second
}

func (c *Conf) ResetVoteDuration() time.Duration {
	return time.Duration(c.Votes.Reset) * time.Second
}

func (c *Conf) GraceDuration() time.Duration {
	return time.Duration(c.Session.Grace) * time.Second
}
