// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// ledctl binds a LED device and provides an interactive shell to toggle it
// and report its telemetry.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/warthog618/go-ledctl"
	"github.com/warthog618/go-ledctl/config"
	"github.com/warthog618/go-ledctl/ledsim"
	"github.com/warthog618/go-ledctl/pm"
)

func main() {
	cfgPath := flag.String("config", "/etc/ledctl.yaml", "Configuration file path")
	simulate := flag.Bool("simulate", false, "Bind a simulated device instead of hardware")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	if err := run(*cfgPath, *simulate, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "ledctl:", err)
		os.Exit(1)
	}
}

func run(cfgPath string, simulate bool, logLevel string) error {
	cfg := &config.Config{Name: "ledsim", LogLevel: "warn"}
	if !simulate {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
	}
	if len(logLevel) != 0 {
		cfg.LogLevel = logLevel
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}

	sh, err := newShell()
	if err != nil {
		return err
	}
	defer sh.Close()
	logger := slog.New(slog.NewTextHandler(sh.Stderr(), &slog.HandlerOptions{Level: level}))

	var res ledctl.Resources
	var rt *pm.Runtime
	if simulate {
		s := ledsim.New()
		rt = pm.New(pm.WithLogger(logger))
		res = s.Resources()
		res.Power = rt
	} else {
		hw, err := cfg.Open(logger)
		if err != nil {
			return err
		}
		defer hw.Close()
		res = hw.Resources
		rt = hw.Runtime
	}

	opts := append(cfg.BindOptions(logger), ledctl.WithSurface(sh))
	d, err := ledctl.Bind(res, opts...)
	if err != nil {
		return err
	}
	rt.Enable(d)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	sh.Run(ctx, rt)

	if err := rt.Disable(); err != nil {
		logger.Warn("disable power management failed", "err", err)
	}
	return d.Unbind()
}
