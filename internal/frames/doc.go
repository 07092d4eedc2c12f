// Package frames reads PNG frames from disk into encoding.Frame values.
//
// Arguments may name directories, whose *.png entries are read
// non-recursively, or individual files. The file's base name becomes the
// frame's display name, which the orchestrator sorts on. The declared MIME
// type is left empty so the orchestrator sniffs the bytes.
package frames
