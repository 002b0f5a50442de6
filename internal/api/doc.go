// Package api is manimate's HTTP boundary.
//
// Routes:
//
//	GET  /                 liveness greeting
//	POST /generate         {"prompt": "..."} -> {"video_url": "/videos/output.mp4"}
//	GET  /videos/*         the published artifact (static files from the output dir)
//	GET  /api/status       preflight checks and paths
//	GET  /api/renders      recent render attempts (?limit=)
//	GET  /api/renders/:id  one render attempt
//
// /generate only fails when the fallback scene also failed to render; the
// body then carries a fixed detail message so renderer output never leaks to
// clients. /api routes require a bearer token when server.api_token is set.
package api
