// Package orchestrator implements run lifecycle management above the
// scheduler.
//
// The manager coordinates graph execution by:
//   - Validating graph structure and executor refs before acceptance
//   - Starting one scheduler per run and tracking live runs
//   - Cancelling and resuming runs against the checkpoint store
//
// The validator ensures submitted graphs are well-formed and every
// executor ref resolves against the configured registry.
package orchestrator
