// Package concert owns the read-only concert catalog: the fixed table of
// events, the simulated lookup latency in front of it, and the display
// helpers (countdown, date) that catalog cards use.
package concert
