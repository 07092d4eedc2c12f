// Package command translates per-job processing options into FFmpeg argument
// plans.
//
// Build is pure. Single-pass codecs produce a one-stage plan. GIF produces a
// two-stage plan (palette generation, then palette use) whose palette is an
// intermediate the orchestrator removes with the staged frames. The container
// and MIME type of the output are a function of the codec alone.
package command
