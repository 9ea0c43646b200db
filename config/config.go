// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package config describes how a LED device is wired up on a board, and opens
// the corresponding hardware resources.
//
// A configuration file looks like:
//
//	name: led0
//	uio: mtk-led
//	gpio:
//	  chip: gpiochip0
//	  irq_line: 5
//	  clock_line: 4
//	power:
//	  autosuspend: 100ms
//	resume_retry:
//	  attempts: 3
//	  min: 1ms
//	  max: 10ms
//	log_level: info
//
// The register window is always the first map of the UIO device. The
// interrupt is delivered by the UIO device unless a GPIO irq_line is
// provided, and the clock is assumed always running unless a GPIO clock_line
// is provided.
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-ledctl"
	"github.com/warthog618/go-ledctl/gpio"
	"github.com/warthog618/go-ledctl/pm"
	"github.com/warthog618/go-ledctl/uio"
	"gopkg.in/yaml.v3"
)

// Config is the device configuration.
type Config struct {
	// The name of the device, used in logs.
	Name string `yaml:"name"`

	// The name of the UIO device providing the register window.
	UIO string `yaml:"uio"`

	// The GPIO lines, if any, wired to the device.
	GPIO GPIO `yaml:"gpio"`

	Power Power `yaml:"power"`

	ResumeRetry Retry `yaml:"resume_retry"`

	// One of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
}

// GPIO describes the GPIO lines wired to the device.
type GPIO struct {
	// The name or path of the GPIO chip.
	Chip string `yaml:"chip"`

	// The line the device interrupt is wired to.
	IRQLine *int `yaml:"irq_line"`

	// Trigger the interrupt on the falling edge.
	FallingEdge bool `yaml:"falling_edge"`

	// The line gating the device clock.
	ClockLine *int `yaml:"clock_line"`
}

// Power is the runtime power management configuration.
type Power struct {
	// How long the device must be idle before it is suspended.
	Autosuspend time.Duration `yaml:"autosuspend"`
}

// Retry is the clock enable retry policy on resume.
type Retry struct {
	Attempts int           `yaml:"attempts"`
	Min      time.Duration `yaml:"min"`
	Max      time.Duration `yaml:"max"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return c, nil
}

// Parse parses the configuration, applying defaults.
func Parse(data []byte) (*Config, error) {
	c := Config{
		Power:    Power{Autosuspend: 100 * time.Millisecond},
		LogLevel: "warn",
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if len(c.UIO) == 0 {
		return errors.New("uio device not specified")
	}
	if (c.GPIO.IRQLine != nil || c.GPIO.ClockLine != nil) && len(c.GPIO.Chip) == 0 {
		return errors.New("gpio lines specified without a chip")
	}
	if c.GPIO.IRQLine != nil && *c.GPIO.IRQLine < 0 {
		return errors.Errorf("invalid irq_line %d", *c.GPIO.IRQLine)
	}
	if c.GPIO.ClockLine != nil && *c.GPIO.ClockLine < 0 {
		return errors.Errorf("invalid clock_line %d", *c.GPIO.ClockLine)
	}
	if c.Power.Autosuspend < 0 {
		return errors.Errorf("invalid autosuspend %s", c.Power.Autosuspend)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, errors.Errorf("invalid log_level '%s'", c.LogLevel)
	}
	return l, nil
}

// BindOptions returns the options to bind the device with.
func (c *Config) BindOptions(logger *slog.Logger) []ledctl.BindOption {
	opts := []ledctl.BindOption{ledctl.WithLogger(logger)}
	if len(c.Name) != 0 {
		opts = append(opts, ledctl.WithName(c.Name))
	}
	if c.ResumeRetry.Attempts > 1 {
		opts = append(opts, ledctl.WithResumeRetry(c.ResumeRetry.Attempts, c.ResumeRetry.Min, c.ResumeRetry.Max))
	}
	return opts
}

// Hardware contains the opened hardware resources of the device.
type Hardware struct {
	// The resources to bind the device with.
	Resources ledctl.Resources

	// The power manager, to be enabled once the device is bound.
	Runtime *pm.Runtime

	uio *uio.Device
	clk *gpio.GateClock
}

// Open opens the hardware resources described by the configuration.
func (c *Config) Open(logger *slog.Logger) (*Hardware, error) {
	u, err := uio.Open(c.UIO)
	if err != nil {
		return nil, err
	}
	h := &Hardware{
		uio:     u,
		Runtime: pm.New(pm.WithAutosuspendDelay(c.Power.Autosuspend), pm.WithLogger(logger)),
	}
	var clk ledctl.Clock = fixedClock{}
	if c.GPIO.ClockLine != nil {
		h.clk, err = gpio.NewGateClock(c.GPIO.Chip, *c.GPIO.ClockLine, c.consumer("clk"))
		if err != nil {
			u.Close()
			return nil, err
		}
		clk = h.clk
	}
	irqFunc := u.IRQ
	var ic ledctl.InterruptController = u
	if c.GPIO.IRQLine != nil {
		line := *c.GPIO.IRQLine
		irqFunc = func() (int, error) { return line, nil }
		ic = &gpio.Interrupts{Chip: c.GPIO.Chip, FallingEdge: c.GPIO.FallingEdge}
	}
	h.Resources = ledctl.Resources{
		Provider: ledctl.ProviderFuncs{
			MapFunc:   u.MapRegisters,
			ClockFunc: func() (ledctl.Clock, error) { return clk, nil },
			IRQFunc:   irqFunc,
		},
		Interrupts: ic,
		Power:      h.Runtime,
	}
	return h, nil
}

// Close releases the hardware resources.
//
// The device must be unbound first.
func (h *Hardware) Close() error {
	var err error
	if h.clk != nil {
		err = h.clk.Close()
	}
	if uerr := h.uio.Close(); err == nil {
		err = uerr
	}
	return err
}

func (c *Config) consumer(suffix string) string {
	if len(c.Name) == 0 {
		return "ledctl-" + suffix
	}
	return c.Name + "-" + suffix
}

// fixedClock is a clock that is always running.
type fixedClock struct{}

func (fixedClock) PrepareEnable() error    { return nil }
func (fixedClock) DisableUnprepare() error { return nil }
