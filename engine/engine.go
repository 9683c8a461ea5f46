// Analysis engine adapter
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

// Package engine drives a UCI engine subprocess over a line-oriented
// protocol.  The room owns exactly one engine at a time; it is quit
// on game over and replaced on reset.
package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"teamchess"
)

// ErrGone is reported to pending callbacks when the subprocess has
// terminated or been quit.
var ErrGone = errors.New("engine process gone")

// request is one command line, optionally waiting for the next
// acknowledgement line from the engine.
type request struct {
	cmd string
	ack bool
	cb  func(line string, err error)
}

// Proc wraps an engine subprocess into a teamchess.Engine.
type Proc struct {
	depth uint

	run *exec.Cmd
	in  io.WriteCloser

	reqs chan request
	acks chan string

	mu   sync.Mutex
	gone bool
	dead chan struct{}
	once sync.Once
}

// Start spawns COMMAND and performs the UCI handshake.  The handshake
// runs through the ordinary request queue, so a Choose issued right
// after Start is processed once the engine has answered readyok.
func Start(command string, args []string, depth uint) (*Proc, error) {
	run := exec.Command(command, args...)
	in, err := run.StdinPipe()
	if err != nil {
		return nil, err
	}
	out, err := run.StdoutPipe()
	if err != nil {
		return nil, err
	}
	run.Stderr = io.Discard
	if err := run.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", command, err)
	}

	p := attach(in, out, depth)
	p.run = run
	go func() {
		run.Wait()
		p.markGone()
	}()
	return p, nil
}

// attach wires an adapter onto an existing command stream.  Separated
// from Start so tests can drive the protocol over pipes.
func attach(in io.WriteCloser, out io.Reader, depth uint) *Proc {
	p := &Proc{
		depth: depth,
		in:    in,
		reqs:  make(chan request, 16),
		acks:  make(chan string, 1),
		dead:  make(chan struct{}),
	}
	go p.read(out)
	go p.write()

	p.send("uci", true, nil)
	p.send("isready", true, nil)
	p.send("ucinewgame", false, nil)
	return p
}

// read scans the engine's output.  Only bestmove, uciok and readyok
// resolve a pending request; everything else (info lines mostly) is
// debug noise.
func (p *Proc) read(out io.Reader) {
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		teamchess.Log.Debugf("engine < %s", line)
		if strings.HasPrefix(line, "bestmove") || line == "uciok" || line == "readyok" {
			select {
			case p.acks <- line:
			default:
				teamchess.Log.Debugf("engine: unsolicited %q", line)
			}
		}
	}
	p.markGone()
}

// write serialises requests: one command at a time, and at most one
// outstanding acknowledgement.
func (p *Proc) write() {
	for {
		var r request
		select {
		case <-p.dead:
			for {
				select {
				case r = <-p.reqs:
					r.fail()
				default:
					return
				}
			}
		case r = <-p.reqs:
		}

		teamchess.Log.Debugf("engine > %s", r.cmd)
		if _, err := fmt.Fprintf(p.in, "%s\n", r.cmd); err != nil {
			p.markGone()
			r.fail()
			continue
		}
		if !r.ack {
			if r.cb != nil {
				// No acknowledgement to wait for; deliver
				// on the next scheduling tick.
				go r.cb("", nil)
			}
			continue
		}
		select {
		case line := <-p.acks:
			if r.cb != nil {
				r.cb(line, nil)
			}
		case <-p.dead:
			r.fail()
		}
	}
}

func (r request) fail() {
	if r.cb != nil {
		r.cb("", ErrGone)
	}
}

func (p *Proc) markGone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.gone {
		p.gone = true
		close(p.dead)
	}
}

// send queues one command.  A request enqueued before the engine dies
// is guaranteed to see its callback, with ErrGone at worst.
func (p *Proc) send(cmd string, ack bool, cb func(line string, err error)) {
	p.mu.Lock()
	if p.gone {
		p.mu.Unlock()
		if cb != nil {
			go cb("", ErrGone)
		}
		return
	}
	p.reqs <- request{cmd: cmd, ack: ack, cb: cb}
	p.mu.Unlock()
}

// Choose asks the engine to pick the best move among the candidate
// LANs.  A single distinct candidate is returned without a query.
func (p *Proc) Choose(fen string, candidates []string, reply func(lan string, err error)) {
	var distinct []string
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		distinct = append(distinct, c)
	}

	if len(distinct) == 0 {
		go reply("", errors.New("no candidates"))
		return
	}
	if len(distinct) == 1 {
		lan := distinct[0]
		go reply(lan, nil)
		return
	}

	p.send("position fen "+fen, false, nil)
	p.send(fmt.Sprintf("go depth %d searchmoves %s", p.depth, strings.Join(distinct, " ")),
		true, func(line string, err error) {
			if err != nil {
				reply("", err)
				return
			}
			fields := strings.Fields(line)
			if len(fields) < 2 {
				reply("", fmt.Errorf("malformed bestmove %q", line))
				return
			}
			reply(fields[1], nil)
		})
}

// Quit terminates the subprocess.  Idempotent.  The waiter goroutine
// started in Start reaps the process.
func (p *Proc) Quit() {
	p.once.Do(func() {
		p.send("quit", false, nil)
		p.markGone()
		if p.run != nil {
			p.run.Process.Kill()
		}
		p.in.Close()
	})
}
