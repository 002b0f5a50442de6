package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary manimate relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// RendererRequirements lists the binaries a render needs. Only the manim
// executable is mandatory; the rest are needed by scenes that typeset math.
func RendererRequirements(manimBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "Manim",
			Command:     manimBinary,
			Description: "Required to render scenes",
		},
		{
			Name:        "LaTeX",
			Command:     "latex",
			Description: "Needed by scenes using Tex or MathTex",
			Optional:    true,
		},
		{
			Name:        "dvisvgm",
			Command:     "dvisvgm",
			Description: "Converts LaTeX output for Tex objects",
			Optional:    true,
		},
		{
			Name:        "FFmpeg",
			Command:     "ffmpeg",
			Description: "Used by older manim releases to encode video",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if resolved, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
				status.Command = resolved
			}
		}
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the required dependencies that are unavailable.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
