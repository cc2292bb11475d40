// Package pipeline correlates independently clocked capture streams
// into synchronized bundles and runs the session state machine.
//
// Samples from all sources funnel into a single delivery goroutine.
// A correlator groups samples that share a presentation timestamp
// within a tolerance into ticks; each tick resolves to at most one
// bundle, applying the per-stream drop policy: a dropped video sample
// aborts the tick, a dropped depth sample downgrades the bundle to
// video-only. Calibration extracted from correlated depth samples is
// handed to the persistence sink without ever blocking delivery.
package pipeline
