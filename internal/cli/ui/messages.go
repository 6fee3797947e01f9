package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Problem describes a failure with optional hints
type Problem struct {
	Level   Level
	Context string
	Message string
	Details []string
	Hints   []string
	NoColor bool
}

// Format renders p as
//
//	✗ CONTEXT: message
//	   detail
//
//	   → hint
func (p Problem) Format() string {
	var b strings.Builder

	var head, body *color.Color
	var symbol string
	switch p.Level {
	case LevelWarning:
		head, body, symbol = color.New(color.FgYellow, color.Bold), color.New(color.FgYellow), "!"
	case LevelInfo:
		head, body, symbol = color.New(color.FgCyan, color.Bold), color.New(color.FgCyan), "i"
	default:
		head, body, symbol = color.New(color.FgRed, color.Bold), color.New(color.FgRed), "✗"
	}
	hint := color.New(color.FgCyan)
	if p.NoColor {
		head.DisableColor()
		body.DisableColor()
		hint.DisableColor()
	}

	if p.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(p.Context), p.Message)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, p.Message)
	}
	for _, d := range p.Details {
		body.Fprintf(&b, "   %s\n", d)
	}
	if len(p.Hints) > 0 {
		b.WriteString("\n")
		for _, h := range p.Hints {
			hint.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// WriteProblem writes a formatted problem
func WriteProblem(w io.Writer, p Problem) {
	fmt.Fprint(w, p.Format())
}

// WriteSuccess writes a green check line
func WriteSuccess(w io.Writer, message string, noColor bool) {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	green.Fprintf(w, "✓ %s\n", message)
}

// ConfigProblem reports an unreadable or invalid configuration
func ConfigProblem(err error, noColor bool) Problem {
	return Problem{
		Context: "configuration",
		Message: err.Error(),
		Hints: []string{
			"Create a config file: dimgraph init",
			"Override a key: DIMGRAPH_<SECTION>_<KEY>=value",
		},
		NoColor: noColor,
	}
}

// DatabaseProblem reports a failed database operation
func DatabaseProblem(err error, noColor bool) Problem {
	return Problem{
		Context: "database",
		Message: err.Error(),
		Hints: []string{
			"Check database.driver and database.url in dimgraph.yaml",
			"Apply migrations: dimgraph migrate",
		},
		NoColor: noColor,
	}
}
