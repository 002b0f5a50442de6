// Package render drives the external manim toolchain for a normalized scene.
//
// An Orchestrator persists the scene source into its working directory, runs
// the renderer under a wall-clock deadline, locates the video the tool wrote
// through an ordered cascade of path patterns, and copies it to one canonical
// path. Every call returns an Outcome whose Kind the caller branches on; the
// orchestrator performs no retries and never writes the canonical path unless
// the render succeeded.
//
// The Orchestrator is not safe for concurrent renders that share a working
// directory. Callers serialize access (see internal/generate).
package render
