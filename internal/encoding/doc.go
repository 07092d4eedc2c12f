// Package encoding turns a set of PNG frames into one encoded artifact.
//
// The Orchestrator validates frames against the device tier limits, acquires
// the codec runtime, stages the frames in name order, runs the command plan
// stage by stage, and extracts the output. Every staged frame, intermediate,
// and output file is removed from the runtime filesystem before Process
// returns, whatever the outcome.
//
// Progress flows through a per-job tracker that keeps percentages
// non-decreasing and maps multi-stage plans onto one 0-100 scale. Process
// reports 100 before returning a successful artifact.
package encoding
