// Package generate turns a prompt into a published video.
//
// Service.Generate is the whole request policy: ask the model, normalize,
// render, and when the render fails render the fixed failure scene once.
// Model errors never fail a request; quota exhaustion yields the quota
// scene and anything else the minimal scene. Only a failed fallback render
// surfaces ErrGenerationFailed.
//
// Renders share one working directory and one canonical artifact, so they
// are serialized: an in-process mutex for concurrent HTTP requests and a
// file lock for separate processes (the CLI and the server) pointed at the
// same directory.
package generate
