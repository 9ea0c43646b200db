// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledctl_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-ledctl"
	"github.com/warthog618/go-ledctl/ledsim"
)

func bindSim(t *testing.T, options ...ledsim.NewOption) (*ledsim.Sim, *ledctl.Device) {
	t.Helper()
	s := ledsim.New(options...)
	d, err := ledctl.Bind(s.Resources(),
		ledctl.WithName("led_test"),
		ledctl.WithTimeSource(s.Time))
	require.Nil(t, err)
	require.NotNil(t, d)
	return s, d
}

func TestBind(t *testing.T) {
	s, d := bindSim(t, ledsim.WithIRQ(7))
	defer d.Unbind()

	assert.Equal(t, "led_test", d.Name())
	assert.Equal(t, ledctl.Active, d.State())
	assert.ElementsMatch(t, []string{"registers", "clock", "irq"}, s.Held())
	assert.True(t, s.IRQs.Installed(7))
	assert.Equal(t, ledctl.IntBit, s.Regs.Peek(ledctl.RegIntEnable))
	count, avg := d.Snapshot()
	assert.Zero(t, count)
	assert.Zero(t, avg)
}

func TestBindUniqueName(t *testing.T) {
	s1 := ledsim.New()
	d1, err := ledctl.Bind(s1.Resources())
	require.Nil(t, err)
	defer d1.Unbind()
	s2 := ledsim.New()
	d2, err := ledctl.Bind(s2.Resources())
	require.Nil(t, err)
	defer d2.Unbind()
	assert.NotEmpty(t, d1.Name())
	assert.NotEqual(t, d1.Name(), d2.Name())
}

func TestBindFailure(t *testing.T) {
	patterns := []struct {
		name string
		step ledsim.Step
		kind error
	}{
		{"map", ledsim.StepMap, ledctl.ErrResourceUnavailable},
		{"clock", ledsim.StepClock, ledctl.ErrClock},
		{"clock enable", ledsim.StepClockEnable, ledctl.ErrClock},
		{"irq", ledsim.StepIRQ, ledctl.ErrInvalidInterrupt},
		{"handler", ledsim.StepHandler, ledctl.ErrHandlerInstall},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			s := ledsim.New(ledsim.WithFailAt(p.step))
			d, err := ledctl.Bind(s.Resources())
			assert.Nil(t, d)
			require.NotNil(t, err)
			assert.True(t, errors.Is(err, p.kind), err)
			assert.True(t, errors.Is(err, ledsim.ErrInjected), err)
			var e *ledctl.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, "bind", e.Op)
			assert.Empty(t, s.Held())
		}
		t.Run(p.name, tf)
	}
}

func TestBindFailureReleasesWindow(t *testing.T) {
	s := ledsim.New(ledsim.WithFailAt(ledsim.StepClock))
	d, err := ledctl.Bind(s.Resources())
	assert.Nil(t, d)
	assert.True(t, errors.Is(err, ledctl.ErrClock))
	assert.False(t, s.Regs.Mapped())
	// window can be mapped again
	m, err := s.MapRegisters()
	require.Nil(t, err)
	assert.Nil(t, m.Close())
}

func TestBindIncompleteResources(t *testing.T) {
	d, err := ledctl.Bind(ledctl.Resources{})
	assert.Nil(t, d)
	assert.True(t, errors.Is(err, ledctl.ErrResourceUnavailable))
}

type testSurface struct {
	mu      sync.Mutex
	fail    error
	exposed *ledctl.Device
	removed int
}

func (s *testSurface) Expose(d *ledctl.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.exposed = d
	return nil
}

func (s *testSurface) Remove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exposed = nil
	s.removed++
}

func TestBindSurface(t *testing.T) {
	s := ledsim.New()
	ts := &testSurface{}
	d, err := ledctl.Bind(s.Resources(), ledctl.WithSurface(ts))
	require.Nil(t, err)
	assert.Equal(t, d, ts.exposed)

	err = d.Unbind()
	assert.Nil(t, err)
	assert.Nil(t, ts.exposed)
	assert.Equal(t, 1, ts.removed)
	assert.Empty(t, s.Held())
}

func TestBindSurfaceFailure(t *testing.T) {
	s := ledsim.New()
	ts := &testSurface{fail: errors.New("no surface")}
	d, err := ledctl.Bind(s.Resources(), ledctl.WithSurface(ts))
	assert.Nil(t, d)
	assert.True(t, errors.Is(err, ledctl.ErrResourceUnavailable))
	assert.Empty(t, s.Held())
}

func TestUnbind(t *testing.T) {
	s, d := bindSim(t)
	_, err := d.Toggle(context.Background())
	require.Nil(t, err)

	err = d.Unbind()
	assert.Nil(t, err)
	assert.Equal(t, ledctl.Unbound, d.State())
	assert.Empty(t, s.Held())

	// telemetry survives
	count, _ := d.Snapshot()
	assert.Equal(t, uint64(1), count)

	err = d.Unbind()
	assert.True(t, errors.Is(err, ledctl.ErrUnbound))
	_, err = d.Toggle(context.Background())
	assert.True(t, errors.Is(err, ledctl.ErrUnbound))
	err = d.Suspend()
	assert.True(t, errors.Is(err, ledctl.ErrUnbound))
	err = d.Resume()
	assert.True(t, errors.Is(err, ledctl.ErrUnbound))
	assert.False(t, s.Raise())
}

func TestUnbindSuspended(t *testing.T) {
	s, d := bindSim(t)
	require.Nil(t, d.Suspend())
	assert.False(t, s.Clk.Enabled())

	err := d.Unbind()
	assert.Nil(t, err)
	assert.Empty(t, s.Held())
}

func TestSuspendResume(t *testing.T) {
	s, d := bindSim(t, ledsim.WithToggleDelays(100, 200))
	defer d.Unbind()
	ctx := context.Background()

	_, err := d.Toggle(ctx)
	require.Nil(t, err)
	_, err = d.Toggle(ctx)
	require.Nil(t, err)
	count, total := d.TotalLatency()

	err = d.Suspend()
	assert.Nil(t, err)
	assert.Equal(t, ledctl.Suspended, d.State())
	assert.False(t, s.Clk.Enabled())

	err = d.Suspend()
	assert.True(t, errors.Is(err, ledctl.ErrNotActive))

	err = d.Resume()
	assert.Nil(t, err)
	assert.Equal(t, ledctl.Active, d.State())
	assert.True(t, s.Clk.Enabled())

	err = d.Resume()
	assert.True(t, errors.Is(err, ledctl.ErrNotSuspended))

	xcount, xtotal := d.TotalLatency()
	assert.Equal(t, count, xcount)
	assert.Equal(t, total, xtotal)
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, uint64(300), total)
}

func TestSuspendClockFailure(t *testing.T) {
	s, d := bindSim(t)
	s.Clk.FailDisable(true)

	err := d.Suspend()
	assert.True(t, errors.Is(err, ledctl.ErrClock))
	assert.Equal(t, ledctl.Active, d.State())

	s.Clk.FailDisable(false)
	assert.Nil(t, d.Unbind())
}

func TestResumeClockFailure(t *testing.T) {
	s, d := bindSim(t)
	defer d.Unbind()
	require.Nil(t, d.Suspend())

	s.Clk.FailEnable(1)
	err := d.Resume()
	assert.True(t, errors.Is(err, ledctl.ErrClock))
	assert.Equal(t, ledctl.Suspended, d.State())
	assert.False(t, s.Clk.Enabled())

	// one failure consumed, so next works
	err = d.Resume()
	assert.Nil(t, err)
	assert.Equal(t, ledctl.Active, d.State())
}

func TestResumeRetry(t *testing.T) {
	s := ledsim.New()
	d, err := ledctl.Bind(s.Resources(),
		ledctl.WithResumeRetry(3, time.Millisecond, 2*time.Millisecond))
	require.Nil(t, err)
	defer d.Unbind()
	require.Nil(t, d.Suspend())

	s.Clk.FailEnable(2)
	err = d.Resume()
	assert.Nil(t, err)
	assert.Equal(t, ledctl.Active, d.State())

	require.Nil(t, d.Suspend())
	s.Clk.FailEnable(3)
	err = d.Resume()
	assert.True(t, errors.Is(err, ledctl.ErrClock))
	assert.Equal(t, ledctl.Suspended, d.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unbound", ledctl.Unbound.String())
	assert.Equal(t, "binding", ledctl.Binding.String())
	assert.Equal(t, "active", ledctl.Active.String())
	assert.Equal(t, "suspended", ledctl.Suspended.String())
	assert.Equal(t, "state(42)", ledctl.State(42).String())
}
