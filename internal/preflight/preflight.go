package preflight

import (
	"context"

	"manimate/internal/config"
)

// MinFreeBytes is the free space below which the work directory check fails.
// Low-quality renders of short scenes stay well under this.
const MinFreeBytes = 256 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional,omitempty"`
	Detail   string `json:"detail"`
}

// RunAll executes the local checks for cfg. It never touches the network;
// callers that want the LLM ping add CheckLLM themselves.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir)}
	if cfg.Paths.OutputDir != "" && cfg.Paths.OutputDir != cfg.Paths.WorkDir {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}
	results = append(results, CheckDiskSpace("Free space", cfg.Paths.WorkDir, MinFreeBytes))
	results = append(results, CheckSystemDeps(ctx, cfg)...)
	results = append(results, CheckLLMConfigured(cfg.LLM))
	return results
}

// Failed reports whether any non-optional result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
