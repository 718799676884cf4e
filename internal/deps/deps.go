package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary a dispatcher job relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// CommandRequirement derives a requirement from a job command line. The
// binary is the first whitespace-separated field; a placeholder in that
// position cannot be resolved ahead of time and is reported as such.
func CommandRequirement(name, commandLine string) Requirement {
	binary := ""
	if fields := strings.Fields(commandLine); len(fields) > 0 {
		binary = fields[0]
	}
	return Requirement{
		Name:        name,
		Command:     binary,
		Description: fmt.Sprintf("Runs dispatcher job %s", name),
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
		case strings.ContainsAny(cmd, "{}"):
			status.Detail = fmt.Sprintf("binary %q is a placeholder", cmd)
		default:
			path, err := exec.LookPath(cmd)
			if err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
				break
			}
			status.Available = true
			status.Path = path
		}
		results = append(results, status)
	}
	return results
}
