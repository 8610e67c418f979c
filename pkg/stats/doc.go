// Package stats keeps per-calendar counters of how often each recipe was planned.
package stats
