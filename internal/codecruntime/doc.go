// Package codecruntime owns the lifecycle of the codec runtime.
//
// A Manager lazily loads one engine, sharing a single in-flight load between
// concurrent callers, and admits one job at a time through a Session. The
// Session is the only way to reach the runtime's filesystem, so staged inputs
// of different jobs never interleave. When an invocation leaves the runtime
// unloaded the Manager drops it and the next job starts from a fresh load.
package codecruntime
