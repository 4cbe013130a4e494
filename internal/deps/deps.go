package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"booksync/internal/config"
)

// Requirement defines an external binary a pipeline may rely on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries cfg refers to. The analyzer is mandatory
// only when the configured matcher is external.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	external := cfg.Pipeline.Matcher == "external"
	if cfg.Analyzer.Command == "" && !external {
		return nil
	}
	return []Requirement{{
		Name:        "Analyzer",
		Command:     cfg.Analyzer.Command,
		Description: "external linguistic analysis for the external matcher",
		Optional:    !external,
	}}
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
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the unavailable statuses that are not optional.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
