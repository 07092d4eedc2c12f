// Package ffprobe provides a typed wrapper around ffprobe JSON output and
// an artifact policy that checks encoded output kept its alpha channel.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: video stream properties including pixel format and tags
//   - Format: container-level metadata (duration, size, bitrate)
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - AlphaPolicy: an encoding.ArtifactPolicy for `alphareel encode --verify`
package ffprobe
