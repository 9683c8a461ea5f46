// Entry point
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

package main

import (
	"flag"
	"os"
	"os/signal"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"teamchess"
	"teamchess/conf"
	"teamchess/engine"
	"teamchess/room"
	"teamchess/web"
)

// Default file name for the configuration file
const defConfName = "teamchess.toml"

func main() {
	confFile := flag.String("conf", defConfName, "Name of configuration file")
	dumpConf := flag.Bool("dump-config", false, "Dump default configuration")
	debug := flag.Bool("debug", false, "Enable debug output")
	port := flag.Uint("port", 0, "Override the listen port")
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(1)
	}

	if *dumpConf {
		c := conf.Default()
		if err := c.Dump(os.Stdout); err != nil {
			teamchess.Log.Fatalf("cannot dump default configuration: %s", err)
		}
		os.Exit(0)
	}

	c := conf.Default()
	if loaded, err := conf.Open(*confFile); err != nil {
		if !os.IsNotExist(err) || *confFile != defConfName {
			teamchess.Log.Fatal(err)
		}
	} else {
		c = *loaded
	}
	if *debug {
		c.Debug = true
	}
	if c.Debug {
		teamchess.Log.SetLevel(logrus.DebugLevel)
	}
	if *port != 0 {
		c.Web.Port = *port
	}

	spawn := func() (teamchess.Engine, error) {
		return engine.Start(c.Engine.Command, c.Engine.Args, c.Engine.Depth)
	}

	hub := web.NewHub()
	rm, err := room.New(&c, clock.New(), hub, spawn)
	if err != nil {
		teamchess.Log.Fatalf("cannot start engine %q: %s", c.Engine.Command, err)
	}

	go func() {
		intr := make(chan os.Signal, 1)
		signal.Notify(intr, os.Interrupt)
		<-intr
		teamchess.Log.Info("caught interrupt, shutting down")
		rm.Shutdown()
		os.Exit(0)
	}()

	if err := web.New(&c, rm, hub).ListenAndServe(); err != nil {
		teamchess.Log.Fatal(err)
	}
}
