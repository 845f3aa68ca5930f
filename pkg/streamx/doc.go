// Package streamx provides channel-based stream plumbing shared by the
// reactive parts of the project: a broadcast [Source] whose emitters never
// block on slow subscribers, and [Conflate], a single-slot mailbox that
// keeps only the most recent value under backpressure.
package streamx
