// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/warthog618/go-ledctl"
	"github.com/warthog618/go-ledctl/pm"
)

// shell is the interactive reporting surface for the device.
type shell struct {
	rl *readline.Instance

	mu  sync.Mutex
	dev *ledctl.Device
}

func newShell() (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "led> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create readline")
	}
	return &shell{rl: rl}, nil
}

// Expose makes the device available to the shell commands.
func (s *shell) Expose(d *ledctl.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dev = d
	return nil
}

// Remove withdraws the device from the shell commands.
func (s *shell) Remove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dev = nil
}

func (s *shell) device() *ledctl.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev
}

func (s *shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

func (s *shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

func (s *shell) Close() error {
	return s.rl.Close()
}

// Run runs the command loop until the user quits or the context is done.
func (s *shell) Run(ctx context.Context, rt *pm.Runtime) {
	go func() {
		<-ctx.Done()
		s.rl.Close()
	}()
	s.printHelp()
	for {
		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		d := s.device()
		if d == nil {
			fmt.Fprintln(s.Stdout(), "device removed")
			return
		}
		switch strings.ToLower(fields[0]) {
		case "help", "?":
			s.printHelp()
		case "toggle", "t":
			s.cmdToggle(ctx, d, fields[1:])
		case "status", "s":
			fmt.Fprint(s.Stdout(), d.Report())
		case "state":
			fmt.Fprintf(s.Stdout(), "%s\n", d.State())
		case "suspend":
			s.result(rt.ForceSuspend(ctx))
		case "resume":
			s.cmdResume(ctx, rt)
		case "quit", "exit", "q":
			return
		default:
			fmt.Fprintf(s.Stdout(), "Unknown command: %s (type 'help' for commands)\n", fields[0])
		}
	}
}

func (s *shell) cmdToggle(ctx context.Context, d *ledctl.Device, args []string) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			fmt.Fprintf(s.Stdout(), "invalid count: %s\n", args[0])
			return
		}
		n = v
	}
	for i := 0; i < n; i++ {
		l, err := d.Toggle(ctx)
		if err != nil {
			s.result(err)
			return
		}
		fmt.Fprintf(s.Stdout(), "toggled in %dns\n", l)
	}
}

// cmdResume resumes the device via the power manager, which suspends it
// again once the autosuspend delay expires.
func (s *shell) cmdResume(ctx context.Context, rt *pm.Runtime) {
	err := rt.Activate(ctx)
	if err == nil {
		rt.Release()
	}
	s.result(err)
}

func (s *shell) result(err error) {
	if err != nil {
		fmt.Fprintln(s.Stdout(), "error:", err)
		return
	}
	fmt.Fprintln(s.Stdout(), "ok")
}

func (s *shell) printHelp() {
	fmt.Fprint(s.Stdout(), `
LED Commands:
  toggle [n]   - Toggle the LED n times (default 1)
  status       - Show toggle count and average latency
  state        - Show the device power state
  suspend      - Wait for the device to idle and suspend it
  resume       - Resume a suspended device until it next idles
  quit         - Unbind the device and exit
`)
}
