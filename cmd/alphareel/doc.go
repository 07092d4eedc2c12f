// Package main hosts the alphareel CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration, picks a capability tier for the
// host, and drives the encoding orchestrator against the FFmpeg engine. Side
// commands inspect limits and codecs, list job history, reclaim stale scratch
// workspaces, and check the environment.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through a dedicated command or flag here.
package main
