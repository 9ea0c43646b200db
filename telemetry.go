// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledctl

import "fmt"

// stats is the toggle telemetry.
//
// Both fields move together, under the device guard.
type stats struct {
	count        uint64
	totalLatency uint64
}

func (s *stats) add(latency uint64) {
	s.count++
	s.totalLatency += latency
}

func (s stats) average() uint64 {
	if s.count == 0 {
		return 0
	}
	return s.totalLatency / s.count
}

// Snapshot returns the number of successful toggles and their average
// latency, in nanoseconds.
//
// The average is zero if there have been no toggles.
func (d *Device) Snapshot() (count uint64, avgLatency uint64) {
	d.guard.Lock()
	s := d.stats
	d.guard.Unlock()
	return s.count, s.average()
}

// TotalLatency returns the number of successful toggles and the sum of their
// latencies, in nanoseconds.
func (d *Device) TotalLatency() (count uint64, totalLatency uint64) {
	d.guard.Lock()
	s := d.stats
	d.guard.Unlock()
	return s.count, s.totalLatency
}

// Report returns the telemetry as a human readable report.
//
// e.g.
//
//	Toggles: 3
//	Avg latency(ns): 200
func (d *Device) Report() string {
	count, avg := d.Snapshot()
	return fmt.Sprintf("Toggles: %d\nAvg latency(ns): %d\n", count, avg)
}
