// Package ffmpeg adapts the FFmpeg command-line encoder to the engine
// capability interface.
//
// Each CLI owns a private scratch workspace under the configured scratch root.
// The workspace is named with a UUID and guarded by an exclusive file lock for
// as long as the runtime stays loaded, so stale-workspace cleanup can tell
// live workspaces from abandoned ones. Invocations run with the workspace as
// working directory and report progress from FFmpeg's -progress stream.
package ffmpeg
