package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"jobgraph/internal/job"
	"jobgraph/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = [...]struct {
	badge  string
	colors text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed}},
}

const statusLabelWidth = 24

func paint(kind statusKind, s string, colorize bool) string {
	if !colorize {
		return s
	}
	return statusStyles[kind].colors.Sprint(s)
}

// renderStatusLine renders "  label:   [BADGE] message"; only the badge is
// coloured.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", paint(kind, "["+statusStyles[kind].badge+"]", colorize))
	if message != "" {
		line += " " + message
	}
	return line
}

// renderChecks renders preflight results under a summary heading.
func renderChecks(results []preflight.Result, colorize bool) []string {
	failed := len(preflight.Failed(results))
	kind := statusOK
	if failed > 0 {
		kind = statusError
	}
	lines := []string{paint(kind, fmt.Sprintf("Preflight: %d checks, %d failed", len(results), failed), colorize)}
	for _, r := range results {
		rk := statusOK
		if !r.Passed {
			rk = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, rk, r.Detail, colorize))
	}
	return lines
}

func jobStatusKind(s job.Status) statusKind {
	switch s {
	case job.StatusCompleted:
		return statusOK
	case job.StatusFailed:
		return statusError
	case job.StatusUnknown:
		return statusWarn
	default:
		return statusInfo
	}
}

func jobStatusText(s job.Status, colorize bool) string {
	return paint(jobStatusKind(s), s.Label(), colorize)
}

// shouldColorize reports whether writer is a terminal.
func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
