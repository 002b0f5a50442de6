// Package preflight provides readiness checks for the directories, binaries
// and services a render depends on.
//
// These checks run in two contexts:
//   - "manimate doctor" prints every check, including a live LLM ping.
//   - GET /api/status returns RunAll results so operators can see why
//     requests are falling back without reading logs.
package preflight
