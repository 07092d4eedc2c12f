// Package services defines shared utilities consumed by the encoding pipeline
// and its external tool adapters.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Kind, which maps any
//     pipeline failure onto its taxonomy tag (validation, runtime_init,
//     unsupported_codec, staging, encode_invocation, output_missing).
//
// Use these helpers when wiring new pipeline code so error handling and
// observability stay uniform.
package services
